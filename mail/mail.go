// Package mail delivers verification links. The API process either sends
// them directly over SMTP, publishes them to Kafka for the mailer worker,
// or only logs them in development.
package mail

import (
	"context"
	"strings"
	"time"
)

const (
	// EventVerificationRequested is the Kafka event type of a verification mail.
	EventVerificationRequested = "email.verification.requested"

	// VerificationSubject is the subject line of the verification email.
	VerificationSubject = "Подтверждение email адреса"

	// DefaultAPIURL is used when no API url is configured.
	DefaultAPIURL = "http://localhost:4200/api"
)

// Mailer delivers the verification link for a token.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
}

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Sender transmits a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationEvent is the queued form of a verification mail.
type VerificationEvent struct {
	Type        string    `json:"type"`
	Email       string    `json:"email"`
	Token       string    `json:"token"`
	RequestedAt time.Time `json:"requested_at"`
}

// VerificationURL builds the link the user follows to confirm an address.
func VerificationURL(apiURL, token string) string {
	base := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if base == "" {
		base = DefaultAPIURL
	}
	return base + "/auth/verify-email/" + token
}
