package repositories

import (
	"context"
	"fmt"
	"log"
	"time"

	"clothify/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMOTPStore is a relational implementation of OTPStore. Email is the
// primary key of the otps table, so a new issuance replaces the old row.
type GORMOTPStore struct {
	db *gorm.DB
}

// NewGORMOTPStore creates a new instance of GORMOTPStore.
func NewGORMOTPStore(db *gorm.DB) *GORMOTPStore {
	return &GORMOTPStore{
		db: db,
	}
}

// Set upserts the code row for an email.
func (s *GORMOTPStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	record := models.OTP{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to store otp for %s: %w", email, err)
	}
	return nil
}

// Get returns the live code for an email. Expired rows are removed and
// reported as ErrOTPNotFound.
func (s *GORMOTPStore) Get(ctx context.Context, email string) (string, error) {
	var record models.OTP
	if err := s.db.WithContext(ctx).First(&record, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrOTPNotFound
		}
		return "", fmt.Errorf("failed to fetch otp for %s: %w", email, err)
	}
	if time.Now().After(record.ExpiresAt) {
		if err := s.db.WithContext(ctx).Delete(&models.OTP{}, "email = ?", email).Error; err != nil {
			log.Printf("Failed to clean up expired otp for %s: %v", email, err)
		}
		return "", ErrOTPNotFound
	}
	return record.Code, nil
}

// Delete removes the code row for an email.
func (s *GORMOTPStore) Delete(ctx context.Context, email string) error {
	if err := s.db.WithContext(ctx).Delete(&models.OTP{}, "email = ?", email).Error; err != nil {
		return fmt.Errorf("failed to delete otp for %s: %w", email, err)
	}
	return nil
}
