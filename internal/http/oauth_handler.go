package http

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"gatehouse/internal/identity"
	"gatehouse/internal/metrics"
	"gatehouse/internal/oauth"
)

// oauthStatePayload holds the CSRF state and optional redirect path.
type oauthStatePayload struct {
	State      string `json:"s"`
	RedirectTo string `json:"r,omitempty"`
}

const (
	oauthStateCookieName = "gatehouse_oauth_state"
	oauthStateCookieTTL  = 10 * time.Minute
	defaultLandingPath   = "/dashboard"
)

type reconciler interface {
	Reconcile(ctx context.Context, profile identity.FederatedProfile) (identity.LoginResult, error)
}

// OAuthHandler drives the provider login flow: consent redirect out,
// callback in, reconciliation, and the access-token cookie.
type OAuthHandler struct {
	providers    map[string]oauth.Provider
	reconciler   reconciler
	collector    *metrics.Collector
	logger       *slog.Logger
	secureCookie bool
	frontendURL  string
	tokenTTL     time.Duration
}

// NewOAuthHandler creates an OAuthHandler over the configured providers.
func NewOAuthHandler(providers []oauth.Provider, rec reconciler, collector *metrics.Collector, frontendURL, env string, tokenTTL time.Duration, logger *slog.Logger) *OAuthHandler {
	byName := make(map[string]oauth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &OAuthHandler{
		providers:    byName,
		reconciler:   rec,
		collector:    collector,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		frontendURL:  strings.TrimSuffix(frontendURL, "/"),
		tokenTTL:     tokenTTL,
	}
}

// Initiate handles GET /api/auth/{provider}: stores CSRF state in a cookie
// and redirects the user to the provider's consent screen.
func (h *OAuthHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	state, err := oauth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	payload := oauthStatePayload{State: state}
	if redirectTo := r.URL.Query().Get("redirectTo"); redirectTo != "" && isValidRedirectPath(redirectTo) {
		payload.RedirectTo = redirectTo
	}

	// Base64 JSON keeps the redirect path clear of delimiter issues.
	stateJSON, _ := json.Marshal(payload)
	fullState := base64.RawURLEncoding.EncodeToString(stateJSON)

	http.Redirect(w, r, provider.AuthURL(fullState), http.StatusTemporaryRedirect)
}

// Callback handles GET /api/auth/{provider}/callback: verifies state,
// exchanges the code, reconciles the identity, and parks the session token
// in an HttpOnly cookie. Failures redirect generically so the flow cannot
// be used to probe which emails exist.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil {
		h.logger.Warn("oauth callback: missing state cookie", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request")
		return
	}

	stateBytes, err := base64.RawURLEncoding.DecodeString(r.URL.Query().Get("state"))
	if err != nil {
		h.logger.Warn("oauth callback: invalid state encoding", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request")
		return
	}

	var statePayload oauthStatePayload
	if err := json.Unmarshal(stateBytes, &statePayload); err != nil {
		h.logger.Warn("oauth callback: invalid state JSON", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request")
		return
	}

	if subtle.ConstantTimeCompare([]byte(statePayload.State), []byte(stateCookie.Value)) != 1 {
		h.logger.Warn("oauth callback: state mismatch", "provider", provider.Name())
		h.redirectWithError(w, r, "invalid_request")
		return
	}

	h.clearStateCookie(w)

	redirectTo := defaultLandingPath
	if statePayload.RedirectTo != "" && isValidRedirectPath(statePayload.RedirectTo) {
		redirectTo = statePayload.RedirectTo
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "invalid_request")
		return
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed", "provider", provider.Name(), "error", err)
		h.collector.RecordLogin(provider.Name(), "exchange_error")
		h.redirectWithError(w, r, "exchange_error")
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), profile)
	if err != nil {
		h.logger.Error("oauth callback: reconciliation failed", "provider", provider.Name(), "error", err)
		h.collector.RecordLogin(provider.Name(), "error")
		h.redirectWithError(w, r, "login_failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    result.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.tokenTTL.Seconds()),
	})

	h.collector.RecordLogin(provider.Name(), "success")
	h.logger.Info("oauth login successful", "provider", provider.Name(), "user_id", result.User.ID)

	http.Redirect(w, r, h.frontendURL+redirectTo, http.StatusTemporaryRedirect)
}

// Logout clears the access-token cookie.
func (h *OAuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *OAuthHandler) provider(r *http.Request) (oauth.Provider, bool) {
	name := providerParam(r)
	p, ok := h.providers[name]
	return p, ok
}

func (h *OAuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectWithError sends the browser back to the frontend login page with
// an error code only. No detail about accounts or emails leaks here.
func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	target := h.frontendURL + "/login?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// isValidRedirectPath validates that a path is a safe relative redirect:
// a single leading "/", no scheme, no host, no encoded bypass.
func isValidRedirectPath(path string) bool {
	if path == "" {
		return false
	}

	decoded, err := url.QueryUnescape(path)
	if err != nil {
		return false
	}

	if !strings.HasPrefix(decoded, "/") || strings.HasPrefix(decoded, "//") {
		return false
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return false
	}

	return parsed.Scheme == "" && parsed.Host == ""
}
