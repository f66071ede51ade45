package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"gatehouse/internal/password"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input beyond 72 bytes, so longer passwords would
	// silently verify on a truncated prefix.
	maxPasswordLength = 72
)

// Credentials manages local password registration and rotation. Rotation
// hashes at a cost at least as strong as registration so the stored work
// factor never weakens over an account's lifetime.
type Credentials struct {
	repo         Repository
	registerCost int
	rotateCost   int
	logger       *slog.Logger
}

// NewCredentials wires a Credentials manager. Costs below the documented
// bcrypt minimum are raised to it, and the rotation cost is raised to the
// registration cost when configured lower.
func NewCredentials(repo Repository, registerCost, rotateCost int, logger *slog.Logger) *Credentials {
	if registerCost < password.MinCost {
		registerCost = password.MinCost
	}
	if rotateCost < registerCost {
		rotateCost = registerCost
	}
	return &Credentials{
		repo:         repo,
		registerCost: registerCost,
		rotateCost:   rotateCost,
		logger:       logger,
	}
}

// RegisterLocal creates a user with a password credential. The plaintext is
// hashed before anything is persisted and never stored or logged.
func (c *Credentials) RegisterLocal(ctx context.Context, email, name, plaintext string) (PublicUser, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return PublicUser{}, &ValidationError{Message: "email is required"}
	}
	if err := validatePasswordLength(plaintext); err != nil {
		return PublicUser{}, err
	}

	hash, err := password.Hash(plaintext, c.registerCost)
	if err != nil {
		return PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	var created User
	err = c.repo.InTransaction(ctx, func(tx Repository) error {
		existing, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("find user by email: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: email already registered", ErrConflict)
		}

		now := time.Now().UTC()
		var namePtr *string
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			namePtr = &trimmed
		}

		created, err = tx.CreateUser(ctx, User{
			ID:           uuid.New(),
			Email:        email,
			Name:         namePtr,
			PasswordHash: &hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return PublicUser{}, err
	}

	c.logger.Info("local account registered", "user_id", created.ID)
	return created.Public(), nil
}

// ChangePassword rotates a user's password after verifying the current
// one. The confirmation value is optional at this layer; when supplied it
// must match the new password. Verification and the hash replacement run
// inside one transaction so the credential cannot change underneath the
// check.
func (c *Credentials) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confirmNewPassword string) (PublicUser, error) {
	if confirmNewPassword != "" && confirmNewPassword != newPassword {
		return PublicUser{}, &ValidationError{Message: "new passwords do not match"}
	}
	if err := validatePasswordLength(newPassword); err != nil {
		return PublicUser{}, err
	}

	var updated *User
	err := c.repo.InTransaction(ctx, func(tx Repository) error {
		hash, err := tx.ReadCredentialHash(ctx, userID)
		if err != nil {
			return fmt.Errorf("read credential: %w", err)
		}
		if hash == nil {
			return ErrNoCredential
		}

		if !password.Verify(oldPassword, *hash) {
			return ErrAuthentication
		}

		newHash, err := password.Hash(newPassword, c.rotateCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		if err := tx.UpdateCredential(ctx, userID, newHash); err != nil {
			return fmt.Errorf("update credential: %w", err)
		}

		updated, err = tx.FindUserByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if updated == nil {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return PublicUser{}, err
	}

	c.logger.Info("password rotated", "user_id", userID)
	return updated.Public(), nil
}

func validatePasswordLength(plaintext string) error {
	if len(plaintext) < minPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	if len(plaintext) > maxPasswordLength {
		return &ValidationError{Message: fmt.Sprintf("password must be at most %d characters", maxPasswordLength)}
	}
	return nil
}
