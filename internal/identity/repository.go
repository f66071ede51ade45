package identity

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines transactional persistence for users and linked
// accounts. The store's unique constraints on users.email and
// linked_accounts(provider, provider_id) are the final arbiter for
// concurrent first-time logins; implementations translate violations into
// ErrConflict.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// CreateUser inserts a new user. Returns ErrConflict when the email
	// is already taken by a concurrent creator.
	CreateUser(ctx context.Context, user User) (User, error)

	// UpdateUserProfile overwrites name and picture with the given
	// values. Callers decide the merge policy; this is a plain write.
	UpdateUserProfile(ctx context.Context, id uuid.UUID, name, picture *string) (User, error)

	// UpsertLinkedAccount inserts the account when (provider, provider
	// ID) is absent, otherwise refreshes only the token and expiry
	// fields of the existing row. The owning user is never reassigned.
	UpsertLinkedAccount(ctx context.Context, account LinkedAccount) (LinkedAccount, error)

	ReadCredentialHash(ctx context.Context, id uuid.UUID) (*string, error)
	UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash string) error

	// InTransaction runs fn against a Repository bound to a single
	// atomic transaction, with a bounded lock-acquisition wait and a
	// bounded execution time. When either bound is exceeded the
	// transaction aborts, no partial state is visible to other readers,
	// and the call returns ErrTxTimeout. Any error from fn rolls the
	// transaction back.
	InTransaction(ctx context.Context, fn func(Repository) error) error
}
