package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"gatehouse/internal/identity"
)

const githubAPIBase = "https://api.github.com"

// GitHubProvider handles the GitHub authorization-code flow. GitHub is not
// an OIDC provider, so the profile comes from its REST API instead of an
// ID token.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider creates a GitHubProvider.
func NewGitHubProvider(clientID, clientSecret, redirectURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: githubAPIBase,
	}
}

// Name implements Provider.
func (p *GitHubProvider) Name() string { return "github" }

// AuthURL returns the GitHub consent URL with the given state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades the code for a token, fetches the user profile, and
// returns the normalized result. When the profile email is hidden it falls
// back to the primary address from the emails endpoint.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (identity.FederatedProfile, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return identity.FederatedProfile{}, fmt.Errorf("token exchange: %w", err)
	}

	client := p.config.Client(ctx, tok)

	var user githubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return identity.FederatedProfile{}, err
	}
	if user.ID == 0 {
		return identity.FederatedProfile{}, fmt.Errorf("github returned an invalid user")
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return identity.FederatedProfile{}, err
		}
		for _, e := range emails {
			if e.Primary {
				email = e.Email
				break
			}
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	var expires int64
	if !tok.Expiry.IsZero() {
		expires = tok.Expiry.Unix()
	}

	return identity.FederatedProfile{
		Provider:      p.Name(),
		ProviderID:    strconv.FormatInt(user.ID, 10),
		Email:         email,
		Name:          optional(name),
		Picture:       optional(user.AvatarURL),
		AccessToken:   optional(tok.AccessToken),
		RefreshToken:  optional(tok.RefreshToken),
		ExpiresAtUnix: expires,
	}, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("github %s: decode: %w", path, err)
	}
	return nil
}
