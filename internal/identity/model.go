package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is a local account. PasswordHash is nil for users who only ever
// authenticated through an OAuth provider.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         *string
	Picture      *string
	PasswordHash *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public strips everything callers outside this package may not see.
// The credential hash never leaves the repository through any other path.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Picture: u.Picture,
	}
}

// PublicUser is the projection of User returned to transport layers.
type PublicUser struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Name    *string   `json:"name"`
	Picture *string   `json:"picture"`
}

// LinkedAccount binds one federated identity, keyed by (provider, provider
// ID), to exactly one User. The owning user never changes after creation;
// only the token fields are refreshed on subsequent logins.
type LinkedAccount struct {
	ID           uuid.UUID
	Provider     string
	ProviderID   string
	UserID       uuid.UUID
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FederatedProfile is the normalized output of an OAuth provider adapter,
// handed to the reconciler once per callback. It is never persisted as-is.
//
// ExpiresAtUnix is the access token expiry in unix seconds, 0 when the
// provider did not report one. The seconds unit is the adapter contract;
// the reconciler converts it to an absolute timestamp before storage.
type FederatedProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	Name          *string
	Picture       *string
	AccessToken   *string
	RefreshToken  *string
	ExpiresAtUnix int64
}

// LoginResult is what a successful reconciliation hands back to the
// transport layer: a signed session token and the public user.
type LoginResult struct {
	Token string
	User  PublicUser
}

// TokenIssuer signs session tokens over {subject, email} claims.
// Implemented by internal/token; declared here so the reconciler depends on
// the capability, not the package.
type TokenIssuer interface {
	Sign(userID uuid.UUID, email string) (string, error)
}
