package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"gatehouse/internal/password"
)

func newTestCredentials(repo Repository) *Credentials {
	return NewCredentials(repo, password.MinCost, password.MinCost, discardLogger())
}

func TestRegisterLocalStoresHashNotPlaintext(t *testing.T) {
	repo := NewInMemoryRepository()
	creds := newTestCredentials(repo)

	public, err := creds.RegisterLocal(context.Background(), "b@x.com", "Bea", "hunter22")
	if err != nil {
		t.Fatalf("RegisterLocal returned error: %v", err)
	}
	if public.Email != "b@x.com" {
		t.Fatalf("expected email b@x.com, got %q", public.Email)
	}

	stored := repo.state.users[public.ID]
	if stored.PasswordHash == nil {
		t.Fatal("expected a stored password hash")
	}
	if strings.Contains(*stored.PasswordHash, "hunter22") {
		t.Fatal("plaintext must never appear in the stored hash")
	}
	if !password.Verify("hunter22", *stored.PasswordHash) {
		t.Fatal("stored hash must verify against the original password")
	}
}

func TestRegisterLocalRejectsDuplicateEmail(t *testing.T) {
	repo := NewInMemoryRepository()
	creds := newTestCredentials(repo)

	if _, err := creds.RegisterLocal(context.Background(), "b@x.com", "Bea", "hunter22"); err != nil {
		t.Fatalf("first RegisterLocal returned error: %v", err)
	}

	_, err := creds.RegisterLocal(context.Background(), "b@x.com", "Bee", "other-pass")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if repo.CountUsers() != 1 {
		t.Fatalf("expected 1 user after duplicate register, got %d", repo.CountUsers())
	}
}

func TestRegisterLocalValidatesInput(t *testing.T) {
	creds := newTestCredentials(NewInMemoryRepository())

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"blank email", "   ", "hunter22"},
		{"short password", "b@x.com", "abc"},
		{"oversized password", "b@x.com", strings.Repeat("a", 73)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := creds.RegisterLocal(context.Background(), tc.email, "", tc.password)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestChangePasswordRotatesHash(t *testing.T) {
	repo := NewInMemoryRepository()
	creds := newTestCredentials(repo)

	public, err := creds.RegisterLocal(context.Background(), "b@x.com", "Bea", "old-password")
	if err != nil {
		t.Fatalf("RegisterLocal returned error: %v", err)
	}
	before := *repo.state.users[public.ID].PasswordHash

	updated, err := creds.ChangePassword(context.Background(), public.ID, "old-password", "new-password", "new-password")
	if err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}
	if updated.ID != public.ID {
		t.Fatalf("expected same user id, got %s", updated.ID)
	}

	after := *repo.state.users[public.ID].PasswordHash
	if after == before {
		t.Fatal("expected a new hash after rotation")
	}
	if !password.Verify("new-password", after) {
		t.Fatal("new password must verify after rotation")
	}
	if password.Verify("old-password", after) {
		t.Fatal("old password must stop verifying after rotation")
	}
}

func TestChangePasswordConfirmationIsOptional(t *testing.T) {
	repo := NewInMemoryRepository()
	creds := newTestCredentials(repo)

	public, err := creds.RegisterLocal(context.Background(), "b@x.com", "Bea", "old-password")
	if err != nil {
		t.Fatalf("RegisterLocal returned error: %v", err)
	}

	if _, err := creds.ChangePassword(context.Background(), public.ID, "old-password", "new-password", ""); err != nil {
		t.Fatalf("ChangePassword without confirmation returned error: %v", err)
	}
}

func TestChangePasswordConfirmationMismatch(t *testing.T) {
	repo := NewInMemoryRepository()
	creds := newTestCredentials(repo)

	public, err := creds.RegisterLocal(context.Background(), "b@x.com", "Bea", "old-password")
	if err != nil {
		t.Fatalf("RegisterLocal returned error: %v", err)
	}
	before := *repo.state.users[public.ID].PasswordHash

	_, err = creds.ChangePassword(context.Background(), public.ID, "old-password", "new-password", "different")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if *repo.state.users[public.ID].PasswordHash != before {
		t.Fatal("hash must be untouched after a rejected confirmation")
	}
}

func TestChangePasswordWrongCurrentPassword(t *testing.T) {
	repo := NewInMemoryRepository()
	creds := newTestCredentials(repo)

	public, err := creds.RegisterLocal(context.Background(), "b@x.com", "Bea", "old-password")
	if err != nil {
		t.Fatalf("RegisterLocal returned error: %v", err)
	}
	before := *repo.state.users[public.ID].PasswordHash

	_, err = creds.ChangePassword(context.Background(), public.ID, "wrong-password", "new-password", "")
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if *repo.state.users[public.ID].PasswordHash != before {
		t.Fatal("hash must be untouched after a failed verification")
	}
}

func TestChangePasswordWithoutCredential(t *testing.T) {
	repo := NewInMemoryRepository()
	creds := newTestCredentials(repo)

	// OAuth-only user: no password hash on the row.
	rec := NewReconciler(repo, &stubIssuer{}, discardLogger())
	result, err := rec.Reconcile(context.Background(), googleProfile())
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	_, err = creds.ChangePassword(context.Background(), result.User.ID, "anything1", "new-password", "")
	if !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	creds := newTestCredentials(NewInMemoryRepository())

	_, err := creds.ChangePassword(context.Background(), uuid.New(), "old-password", "new-password", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewCredentialsRaisesWeakCosts(t *testing.T) {
	creds := NewCredentials(NewInMemoryRepository(), 4, 2, discardLogger())

	if creds.registerCost < password.MinCost {
		t.Fatalf("register cost %d below minimum %d", creds.registerCost, password.MinCost)
	}
	if creds.rotateCost < creds.registerCost {
		t.Fatalf("rotate cost %d below register cost %d", creds.rotateCost, creds.registerCost)
	}
}
