package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	defaultLockWait    = 10 * time.Second
	defaultExecTimeout = 15 * time.Second
)

// PostgresRepository implements Repository using PostgreSQL. The unique
// constraints on users.email and linked_accounts(provider, provider_id)
// back the conflict detection.
type PostgresRepository struct {
	db          sqlx.ExtContext
	root        *sqlx.DB // nil when bound to a transaction
	lockWait    time.Duration
	execTimeout time.Duration
}

// NewPostgresRepository creates a PostgresRepository. lockWait bounds how
// long a transaction waits on row locks; execTimeout bounds its total
// execution. Zero values fall back to the defaults.
func NewPostgresRepository(db *sqlx.DB, lockWait, execTimeout time.Duration) *PostgresRepository {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	if execTimeout <= 0 {
		execTimeout = defaultExecTimeout
	}
	return &PostgresRepository{db: db, root: db, lockWait: lockWait, execTimeout: execTimeout}
}

// InTransaction runs fn against a repository bound to one transaction.
// Nested calls reuse the surrounding transaction.
func (r *PostgresRepository) InTransaction(ctx context.Context, fn func(Repository) error) error {
	if r.root == nil {
		return fn(r)
	}

	ctx, cancel := context.WithTimeout(ctx, r.execTimeout)
	defer cancel()

	tx, err := r.root.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translatePgError(err)
	}

	bound := &PostgresRepository{db: tx}

	lockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockWait.Milliseconds())
	if _, err := tx.ExecContext(ctx, lockTimeout); err != nil {
		_ = tx.Rollback()
		return translatePgError(err)
	}

	if err := fn(bound); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return translatePgError(err)
	}
	return nil
}

// FindUserByEmail looks up a user by email. Returns (nil, nil) when absent.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	const query = `
		SELECT id, email, name, picture, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	var row userRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePgError(err)
	}
	return row.toUser(), nil
}

// FindUserByID looks up a user by ID. Returns (nil, nil) when absent.
func (r *PostgresRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	const query = `
		SELECT id, email, name, picture, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var row userRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, translatePgError(err)
	}
	return row.toUser(), nil
}

// CreateUser inserts a new user. A racing creator of the same email loses
// with ErrConflict.
func (r *PostgresRepository) CreateUser(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (id, email, name, picture, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Picture,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return User{}, translatePgError(err)
	}
	return user, nil
}

// UpdateUserProfile overwrites name and picture.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id uuid.UUID, name, picture *string) (User, error) {
	const query = `
		UPDATE users
		SET name = $2, picture = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, email, name, picture, password_hash, created_at, updated_at
	`

	var row userRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, id, name, picture, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, translatePgError(err)
	}
	return *row.toUser(), nil
}

// UpsertLinkedAccount inserts or refreshes a linked account. The ON
// CONFLICT clause deliberately leaves user_id untouched so a federated
// identity can never migrate to another user.
func (r *PostgresRepository) UpsertLinkedAccount(ctx context.Context, account LinkedAccount) (LinkedAccount, error) {
	const query = `
		INSERT INTO linked_accounts (id, provider, provider_id, user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (provider, provider_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, provider, provider_id, user_id, access_token, refresh_token, expires_at, created_at, updated_at
	`

	var row linkedAccountRow
	err := sqlx.GetContext(ctx, r.db, &row, query,
		account.ID,
		account.Provider,
		account.ProviderID,
		account.UserID,
		account.AccessToken,
		account.RefreshToken,
		account.ExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return LinkedAccount{}, translatePgError(err)
	}
	return *row.toLinkedAccount(), nil
}

// ReadCredentialHash returns the stored password hash, or nil for an
// OAuth-only account. ErrNotFound when the user does not exist.
func (r *PostgresRepository) ReadCredentialHash(ctx context.Context, id uuid.UUID) (*string, error) {
	const query = `SELECT password_hash FROM users WHERE id = $1`

	var hash sql.NullString
	if err := sqlx.GetContext(ctx, r.db, &hash, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	if !hash.Valid {
		return nil, nil
	}
	return &hash.String, nil
}

// UpdateCredential replaces the stored password hash.
func (r *PostgresRepository) UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return translatePgError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return translatePgError(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Postgres error codes this repository cares about.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
)

func translatePgError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTxTimeout, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
		case pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %v", ErrTxTimeout, pqErr.Message)
		}
	}
	return err
}

// userRow is the database row representation of User.
type userRow struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	Name         *string   `db:"name"`
	Picture      *string   `db:"picture"`
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *userRow) toUser() *User {
	return &User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		Picture:      r.Picture,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// linkedAccountRow is the database row representation of LinkedAccount.
type linkedAccountRow struct {
	ID           uuid.UUID  `db:"id"`
	Provider     string     `db:"provider"`
	ProviderID   string     `db:"provider_id"`
	UserID       uuid.UUID  `db:"user_id"`
	AccessToken  *string    `db:"access_token"`
	RefreshToken *string    `db:"refresh_token"`
	ExpiresAt    *time.Time `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r *linkedAccountRow) toLinkedAccount() *LinkedAccount {
	return &LinkedAccount{
		ID:           r.ID,
		Provider:     r.Provider,
		ProviderID:   r.ProviderID,
		UserID:       r.UserID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
