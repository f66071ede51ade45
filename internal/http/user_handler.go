package http

import (
	"net/http"

	"log/slog"

	"gatehouse/internal/identity"
	"gatehouse/internal/metrics"
)

// UserHandler exposes local registration and the authenticated user
// endpoints.
type UserHandler struct {
	credentials *identity.Credentials
	repo        identity.Repository
	collector   *metrics.Collector
	logger      *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(credentials *identity.Credentials, repo identity.Repository, collector *metrics.Collector, logger *slog.Logger) *UserHandler {
	return &UserHandler{credentials: credentials, repo: repo, collector: collector, logger: logger}
}

// Register handles POST /api/auth/register.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	user, err := h.credentials.RegisterLocal(r.Context(), payload.Email, payload.Name, payload.Password)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Me handles GET /api/user/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	user, err := h.repo.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		handleServiceError(w, err, h.logger)
		return
	}
	if user == nil {
		// Token subject no longer exists; the account was deleted.
		unauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// ChangePassword handles PUT /api/user/me/password. The target account is
// always the token subject, never a caller-supplied id.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	var payload struct {
		OldPassword        string `json:"oldPassword"`
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	user, err := h.credentials.ChangePassword(r.Context(), claims.UserID, payload.OldPassword, payload.NewPassword, payload.ConfirmNewPassword)
	if err != nil {
		h.collector.RecordPasswordChange("failure")
		handleServiceError(w, err, h.logger)
		return
	}

	h.collector.RecordPasswordChange("success")
	writeJSON(w, http.StatusOK, user)
}
