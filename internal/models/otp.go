package models

import "time"

// OTP is the relational variant of a stored one-time password. Email is the
// primary key, so issuing a new code for the same address replaces the row.
type OTP struct {
	Email     string    `json:"email" gorm:"primaryKey;type:varchar(255)"`
	Code      string    `json:"-" gorm:"type:varchar(6)"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
