package identity

import "errors"

// Sentinel errors for the identity core. Transport layers match these with
// errors.Is and map them to status codes; business logic never inspects
// driver errors directly.
var (
	// ErrConflict reports a uniqueness violation: an email or a
	// (provider, provider ID) pair already exists under a racing write.
	ErrConflict = errors.New("identity: already exists")

	// ErrValidation reports caller-supplied input that fails a business
	// rule, such as a mismatched password confirmation.
	ErrValidation = errors.New("identity: validation error")

	// ErrInvalidProfile reports a federated profile missing its linking
	// key. Reconciliation never proceeds without an email.
	ErrInvalidProfile = errors.New("identity: invalid profile")

	// ErrNoCredential reports a password operation against an account
	// that only ever authenticated via OAuth.
	ErrNoCredential = errors.New("identity: no password set for this account")

	// ErrAuthentication reports a wrong current password.
	ErrAuthentication = errors.New("identity: current password is incorrect")

	// ErrTxTimeout reports that a transaction exceeded its lock-wait or
	// execution bound. Retryable by the caller with backoff.
	ErrTxTimeout = errors.New("identity: transaction timed out")

	// ErrNotFound reports a lookup for a user that does not exist.
	ErrNotFound = errors.New("identity: user not found")
)

// ValidationError wraps a validation message so callers can surface it
// verbatim while still matching ErrValidation with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
