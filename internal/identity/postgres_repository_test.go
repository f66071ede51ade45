package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestTranslatePgError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{
			"unique violation",
			&pq.Error{Code: pgUniqueViolation, Constraint: "users_email_key"},
			ErrConflict,
		},
		{
			"lock not available",
			&pq.Error{Code: pgLockNotAvailable, Message: "canceling statement due to lock timeout"},
			ErrTxTimeout,
		},
		{
			"query canceled",
			&pq.Error{Code: pgQueryCanceled},
			ErrTxTimeout,
		},
		{
			"context deadline",
			context.DeadlineExceeded,
			ErrTxTimeout,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translatePgError(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("translatePgError(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTranslatePgErrorPassesThroughUnknown(t *testing.T) {
	boom := errors.New("boom")
	if got := translatePgError(boom); !errors.Is(got, boom) {
		t.Fatalf("expected the original error, got %v", got)
	}
	if got := translatePgError(boom); errors.Is(got, ErrConflict) || errors.Is(got, ErrTxTimeout) {
		t.Fatal("unknown errors must not gain a sentinel")
	}
}

func TestTranslatePgErrorConflictNamesConstraint(t *testing.T) {
	got := translatePgError(&pq.Error{Code: pgUniqueViolation, Constraint: "linked_accounts_provider_key"})
	if got == nil || got.Error() == "" {
		t.Fatal("expected a descriptive error")
	}
	if !errors.Is(got, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", got)
	}
}
