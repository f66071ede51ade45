// Package oauth adapts third-party OAuth providers to the identity core.
// Each adapter completes the authorization-code exchange and normalizes the
// provider response into an identity.FederatedProfile; everything past that
// boundary is provider-agnostic.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"gatehouse/internal/identity"
)

// Provider is one configured OAuth identity provider.
type Provider interface {
	// Name is the stable provider key stored on linked accounts,
	// e.g. "google" or "github".
	Name() string

	// AuthURL returns the consent-screen URL carrying the given CSRF state.
	AuthURL(state string) string

	// Exchange trades the authorization code for tokens and returns the
	// normalized profile. ExpiresAtUnix on the profile is unix seconds;
	// that unit is this package's contract with the reconciler.
	Exchange(ctx context.Context, code string) (identity.FederatedProfile, error)
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// optional returns nil for empty strings so absent provider fields stay
// absent instead of erasing stored values downstream.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
