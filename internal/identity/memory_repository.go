package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository stores users and linked accounts in in-process maps,
// ideal for local development or tests. Transactions are serialized by a
// single mutex; a failed transaction restores the pre-transaction snapshot,
// so callers observe the same atomicity as the Postgres implementation.
type InMemoryRepository struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	users    map[uuid.UUID]User
	byEmail  map[string]uuid.UUID
	accounts map[string]LinkedAccount // keyed by provider + "\x00" + providerID
}

func accountKey(provider, providerID string) string {
	return provider + "\x00" + providerID
}

func newMemoryState() *memoryState {
	return &memoryState{
		users:    make(map[uuid.UUID]User),
		byEmail:  make(map[string]uuid.UUID),
		accounts: make(map[string]LinkedAccount),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for id, u := range s.users {
		c.users[id] = u
	}
	for email, id := range s.byEmail {
		c.byEmail[email] = id
	}
	for key, a := range s.accounts {
		c.accounts[key] = a
	}
	return c
}

// NewInMemoryRepository constructs an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{state: newMemoryState()}
}

// InTransaction serializes the whole fn under the repository mutex and
// rolls back to a snapshot when fn fails.
func (r *InMemoryRepository) InTransaction(ctx context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ErrTxTimeout
	}

	snapshot := r.state.clone()
	if err := fn(&memoryTx{state: r.state}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *InMemoryRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).FindUserByEmail(ctx, email)
}

func (r *InMemoryRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).FindUserByID(ctx, id)
}

func (r *InMemoryRepository) CreateUser(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).CreateUser(ctx, user)
}

func (r *InMemoryRepository) UpdateUserProfile(ctx context.Context, id uuid.UUID, name, picture *string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).UpdateUserProfile(ctx, id, name, picture)
}

func (r *InMemoryRepository) UpsertLinkedAccount(ctx context.Context, account LinkedAccount) (LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).UpsertLinkedAccount(ctx, account)
}

func (r *InMemoryRepository) ReadCredentialHash(ctx context.Context, id uuid.UUID) (*string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).ReadCredentialHash(ctx, id)
}

func (r *InMemoryRepository) UpdateCredential(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).UpdateCredential(ctx, id, passwordHash)
}

// CountUsers reports the number of stored users. Test helper.
func (r *InMemoryRepository) CountUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.users)
}

// CountLinkedAccounts reports the number of stored linked accounts. Test helper.
func (r *InMemoryRepository) CountLinkedAccounts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.accounts)
}

// memoryTx operates on the live state; the surrounding InMemoryRepository
// holds the mutex for the duration of every call.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) InTransaction(_ context.Context, fn func(Repository) error) error {
	// Already inside a transaction.
	return fn(t)
}

func (t *memoryTx) FindUserByEmail(_ context.Context, email string) (*User, error) {
	id, ok := t.state.byEmail[email]
	if !ok {
		return nil, nil
	}
	user := t.state.users[id]
	return &user, nil
}

func (t *memoryTx) FindUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	user, ok := t.state.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (t *memoryTx) CreateUser(_ context.Context, user User) (User, error) {
	if _, exists := t.state.byEmail[user.Email]; exists {
		return User{}, ErrConflict
	}
	if strings.TrimSpace(user.Email) == "" {
		return User{}, &ValidationError{Message: "email is required"}
	}
	t.state.users[user.ID] = user
	t.state.byEmail[user.Email] = user.ID
	return user, nil
}

func (t *memoryTx) UpdateUserProfile(_ context.Context, id uuid.UUID, name, picture *string) (User, error) {
	user, ok := t.state.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	user.Name = name
	user.Picture = picture
	user.UpdatedAt = time.Now().UTC()
	t.state.users[id] = user
	return user, nil
}

func (t *memoryTx) UpsertLinkedAccount(_ context.Context, account LinkedAccount) (LinkedAccount, error) {
	key := accountKey(account.Provider, account.ProviderID)
	if existing, ok := t.state.accounts[key]; ok {
		existing.AccessToken = account.AccessToken
		existing.RefreshToken = account.RefreshToken
		existing.ExpiresAt = account.ExpiresAt
		existing.UpdatedAt = time.Now().UTC()
		t.state.accounts[key] = existing
		return existing, nil
	}
	t.state.accounts[key] = account
	return account, nil
}

func (t *memoryTx) ReadCredentialHash(_ context.Context, id uuid.UUID) (*string, error) {
	user, ok := t.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return user.PasswordHash, nil
}

func (t *memoryTx) UpdateCredential(_ context.Context, id uuid.UUID, passwordHash string) error {
	user, ok := t.state.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = &passwordHash
	user.UpdatedAt = time.Now().UTC()
	t.state.users[id] = user
	return nil
}
