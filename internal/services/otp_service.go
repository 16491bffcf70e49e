package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"clothify/internal/repositories"
	"clothify/pkg/mailer"
)

// ErrCodeMismatch is returned when a live code exists for the email but the
// presented code does not match it. The stored code is kept so the user can
// retry within the TTL.
var ErrCodeMismatch = errors.New("invalid code")

// OTPService is the single authority for one-time password issuance and
// verification. Codes are uniformly random six-digit strings (000000-999999,
// zero-padded), single-use, and live for the configured TTL.
type OTPService struct {
	store  repositories.OTPStore
	mailer mailer.Mailer
	ttl    time.Duration
}

// NewOTPService creates a new OTPService.
func NewOTPService(store repositories.OTPStore, m mailer.Mailer, ttl time.Duration) *OTPService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPService{
		store:  store,
		mailer: m,
		ttl:    ttl,
	}
}

// GenerateCode returns a uniformly random zero-padded six-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue generates a code for the email, stores it with the TTL (overwriting
// and thereby invalidating any previous code for that email), and delivers
// it by email.
func (s *OTPService) Issue(ctx context.Context, email string) error {
	code, err := GenerateCode()
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, email, code, s.ttl); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}

	subject := "Your Clothify verification code"
	body := fmt.Sprintf(
		"Your verification code is: %s\nThis code will expire in %d minutes.\nIf you didn't request this code, please ignore this email.",
		code, int(s.ttl.Minutes()),
	)
	if err := s.mailer.Send(email, subject, body); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}

	return nil
}

// Verify checks a presented code against the stored one. On a match the
// stored code is deleted so it can never verify twice. A mismatch keeps the
// stored code so the user may retry within the TTL.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	stored, err := s.store.Get(ctx, email)
	if err != nil {
		return err // repositories.ErrOTPNotFound for absent/expired
	}

	if stored != code {
		return ErrCodeMismatch
	}

	if err := s.store.Delete(ctx, email); err != nil {
		return fmt.Errorf("failed to retire otp: %w", err)
	}
	return nil
}
