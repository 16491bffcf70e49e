package repositories

import (
	"context"
	"errors"
	"time"
)

// ErrOTPNotFound is returned when no live code exists for an email, either
// because none was issued or because it has expired. Callers must not
// conflate this with a code mismatch.
var ErrOTPNotFound = errors.New("otp not found or expired")

// OTPStore is a key-value association from an email address to a short-lived
// one-time code. At most one live code exists per email: Set overwrites any
// previous code, invalidating it immediately.
type OTPStore interface {
	Set(ctx context.Context, email, code string, ttl time.Duration) error
	Get(ctx context.Context, email string) (string, error)
	Delete(ctx context.Context, email string) error
}
