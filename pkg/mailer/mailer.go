package mailer

import (
	"fmt"
	"log"
	"net/smtp"
)

// Mailer sends plain-text emails to a single recipient.
type Mailer interface {
	Send(to, subject, body string) error
}

// Config holds SMTP connection details.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer is an SMTP implementation of Mailer.
type SMTPMailer struct {
	cfg Config
}

// NewSMTPMailer creates a new SMTPMailer.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers a single email via SMTP with PLAIN auth over STARTTLS.
func (m *SMTPMailer) Send(to, subject, body string) error {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return fmt.Errorf("email configuration not set")
	}

	message := fmt.Sprintf(
		"To: %s\r\nFrom: Clothify <%s>\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		to, m.cfg.From, subject, body,
	)

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := m.cfg.Host + ":" + m.cfg.Port

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(message)); err != nil {
		log.Printf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
