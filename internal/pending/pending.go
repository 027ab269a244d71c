// Package pending keeps the short-lived onboarding state that spans two
// requests: emailed sign-up codes and password reset tokens.  Entries expire
// on their own and are shared by every server instance.
package pending

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no live entry exists for a key.
var ErrNotFound = errors.New("pending entry not found")

// CodeRequest is a sign-up awaiting email verification.  CodeHash is the
// SHA-256 of the emailed code, never the code itself.
type CodeRequest struct {
	Email       string
	Name        string
	TenantName  string
	TenantPhone string
	CodeHash    string
	ExpiresAt   time.Time
	Used        bool
}

// Store is implemented by RedisStore and MemoryStore.
type Store interface {
	// PutCode stores req under its email, replacing any earlier request.
	// The entry is kept for keep, which should exceed the code lifetime so
	// an expired code can still be told apart from a missing one.
	PutCode(ctx context.Context, req CodeRequest, keep time.Duration) error
	GetCode(ctx context.Context, email string) (*CodeRequest, error)
	// ClaimCode marks the first successful verification.  Exactly one
	// caller gets true for a given request.
	ClaimCode(ctx context.Context, email string) (bool, error)
	// ReleaseCode undoes ClaimCode after a failed verification.
	ReleaseCode(ctx context.Context, email string) error
	// MarkCodeUsed records that the verification completed.
	MarkCodeUsed(ctx context.Context, email string) error
	DeleteCode(ctx context.Context, email string) error

	PutReset(ctx context.Context, token, userID string, ttl time.Duration) error
	// TakeReset returns the user id for token and deletes it atomically.
	TakeReset(ctx context.Context, token string) (string, error)
}
