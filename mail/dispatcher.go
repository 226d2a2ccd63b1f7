package mail

import (
	"context"

	"github.com/goliatone/go-spectra/logging"
)

// VerificationMailer renders the verification email and hands it to a
// Sender.
type VerificationMailer struct {
	apiURL   string
	renderer *Renderer
	sender   Sender
}

var _ Mailer = (*VerificationMailer)(nil)

func NewVerificationMailer(apiURL string, renderer *Renderer, sender Sender) *VerificationMailer {
	return &VerificationMailer{
		apiURL:   apiURL,
		renderer: renderer,
		sender:   sender,
	}
}

func (m *VerificationMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	msg, err := m.renderer.Verification(email, VerificationURL(m.apiURL, token))
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

// LogMailer only logs the verification link.
type LogMailer struct {
	apiURL string
	logger logging.Logger
}

var _ Mailer = (*LogMailer)(nil)

func NewLogMailer(apiURL string, logger logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Console("MAIL")
	}
	return &LogMailer{apiURL: apiURL, logger: logger}
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, email, token string) error {
	m.logger.Info("verification email", "to", email, "url", VerificationURL(m.apiURL, token))
	return nil
}
