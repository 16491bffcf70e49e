package services

import (
	"fmt"

	"clothify/internal/repositories"
	"clothify/pkg/mailer"

	"github.com/google/uuid"
)

// AccountService handles back-office account management: inviting employees
// and removing members.
type AccountService struct {
	userRepo repositories.UserRepository
	mailer   mailer.Mailer
}

// NewAccountService creates a new AccountService.
func NewAccountService(userRepo repositories.UserRepository, m mailer.Mailer) *AccountService {
	return &AccountService{
		userRepo: userRepo,
		mailer:   m,
	}
}

// InviteEmployee emails an invitation carrying a fresh invitation token and
// returns the token so the caller can record it.
func (s *AccountService) InviteEmployee(email string) (string, error) {
	if existingUser, err := s.userRepo.GetByEmail(email); err == nil && existingUser != nil {
		return "", fmt.Errorf("email '%s' already registered", email)
	}

	token := uuid.New().String()
	subject := "You're invited to the Clothify back office"
	body := fmt.Sprintf(
		"You have been invited to join the Clothify team.\nYour invitation token is: %s\nUse it to complete your registration.",
		token,
	)
	if err := s.mailer.Send(email, subject, body); err != nil {
		return "", fmt.Errorf("failed to send invitation email: %w", err)
	}

	return token, nil
}

// DeleteMember removes a user account by ID.
func (s *AccountService) DeleteMember(id string) error {
	if err := s.userRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}
