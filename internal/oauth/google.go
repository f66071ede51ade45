package oauth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"gatehouse/internal/identity"
)

// GoogleProvider handles Google OAuth 2.0 / OIDC authentication.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider creates a GoogleProvider. It fetches the Google OIDC
// discovery document once at construction.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &GoogleProvider{
		config:   config,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Name implements Provider.
func (g *GoogleProvider) Name() string { return "google" }

// AuthURL generates the Google OAuth consent URL with the given state.
func (g *GoogleProvider) AuthURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange exchanges the authorization code, verifies the ID token, and
// returns the normalized profile.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (identity.FederatedProfile, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return identity.FederatedProfile{}, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return identity.FederatedProfile{}, fmt.Errorf("no id_token in response")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.FederatedProfile{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return identity.FederatedProfile{}, fmt.Errorf("parse claims: %w", err)
	}

	var expires int64
	if !tok.Expiry.IsZero() {
		expires = tok.Expiry.Unix()
	}

	return identity.FederatedProfile{
		Provider:      g.Name(),
		ProviderID:    claims.Sub,
		Email:         claims.Email,
		Name:          optional(claims.Name),
		Picture:       optional(claims.Picture),
		AccessToken:   optional(tok.AccessToken),
		RefreshToken:  optional(tok.RefreshToken),
		ExpiresAtUnix: expires,
	}, nil
}
