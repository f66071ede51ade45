package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
)

// Reconciler runs the OAuth-login flow: find-or-create the user, refresh
// profile fields when warranted, upsert the linked account, and issue a
// session token. The whole decision sequence executes inside one repository
// transaction; the store's unique constraints arbitrate concurrent
// first-time logins.
type Reconciler struct {
	repo   Repository
	tokens TokenIssuer
	logger *slog.Logger
}

// NewReconciler wires a Reconciler.
func NewReconciler(repo Repository, tokens TokenIssuer, logger *slog.Logger) *Reconciler {
	return &Reconciler{repo: repo, tokens: tokens, logger: logger}
}

// Reconcile resolves a federated profile to a local user and returns a
// signed session token plus the public projection.
//
// A concurrent first-time login for the same email makes the loser's insert
// fail on the email unique constraint. That race is benign: the whole
// transaction is retried exactly once, re-reading the row the winner
// created. A second conflict is surfaced to the caller.
func (r *Reconciler) Reconcile(ctx context.Context, profile FederatedProfile) (LoginResult, error) {
	if strings.TrimSpace(profile.Email) == "" {
		return LoginResult{}, fmt.Errorf("%w: profile has no email", ErrInvalidProfile)
	}
	if profile.Provider == "" || profile.ProviderID == "" {
		return LoginResult{}, fmt.Errorf("%w: profile has no provider identity", ErrInvalidProfile)
	}

	resolved, err := r.reconcileOnce(ctx, profile)
	if errors.Is(err, ErrConflict) {
		r.logger.Debug("reconcile lost creation race, retrying", "email", profile.Email, "provider", profile.Provider)
		resolved, err = r.reconcileOnce(ctx, profile)
	}
	if err != nil {
		return LoginResult{}, err
	}

	token, err := r.tokens.Sign(resolved.ID, resolved.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign session token: %w", err)
	}

	return LoginResult{Token: token, User: resolved.Public()}, nil
}

func (r *Reconciler) reconcileOnce(ctx context.Context, profile FederatedProfile) (User, error) {
	var resolved User

	err := r.repo.InTransaction(ctx, func(tx Repository) error {
		user, err := tx.FindUserByEmail(ctx, profile.Email)
		if err != nil {
			return fmt.Errorf("find user by email: %w", err)
		}

		now := time.Now().UTC()

		switch {
		case user == nil:
			created, err := tx.CreateUser(ctx, User{
				ID:        uuid.New(),
				Email:     profile.Email,
				Name:      profile.Name,
				Picture:   profile.Picture,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			resolved = created

		case profileRefreshWarranted(*user, profile):
			updated, err := tx.UpdateUserProfile(ctx, user.ID,
				mergeField(user.Name, profile.Name),
				mergeField(user.Picture, profile.Picture),
			)
			if err != nil {
				return fmt.Errorf("refresh user profile: %w", err)
			}
			resolved = updated

		default:
			resolved = *user
		}

		// Tokens are always stale on login: refresh them even when the
		// profile itself did not change.
		_, err = tx.UpsertLinkedAccount(ctx, LinkedAccount{
			ID:           uuid.New(),
			Provider:     profile.Provider,
			ProviderID:   profile.ProviderID,
			UserID:       resolved.ID,
			AccessToken:  profile.AccessToken,
			RefreshToken: profile.RefreshToken,
			ExpiresAt:    expiryFromUnixSeconds(profile.ExpiresAtUnix),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("upsert linked account: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return resolved, nil
}

// profileRefreshWarranted reports whether the incoming profile carries a
// truthy name or picture that differs from the stored value. Absent or
// unchanged incoming fields never trigger a write, so a provider that
// omits a field cannot clobber richer data from another provider.
func profileRefreshWarranted(user User, profile FederatedProfile) bool {
	return truthyAndChanged(profile.Name, user.Name) || truthyAndChanged(profile.Picture, user.Picture)
}

func truthyAndChanged(incoming, stored *string) bool {
	if incoming == nil || *incoming == "" {
		return false
	}
	return stored == nil || *stored != *incoming
}

// mergeField keeps the stored value unless the incoming one is truthy.
func mergeField(stored, incoming *string) *string {
	if incoming == nil || *incoming == "" {
		return stored
	}
	return incoming
}

// expiryFromUnixSeconds converts the adapter-contract unix-seconds expiry
// to an absolute timestamp. Zero means the provider reported none.
func expiryFromUnixSeconds(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
