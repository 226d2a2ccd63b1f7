package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/logging"
)

const defaultSMTPTimeout = 15 * time.Second

// SMTPConfig holds the relay settings.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPSecure() bool
	GetSMTPUser() string
	GetSMTPPassword() string
	GetSMTPFrom() string
	GetSMTPSkipVerify() bool
}

// SMTPSender delivers messages through an SMTP relay. With Secure set the
// connection is TLS from the start, otherwise STARTTLS is used when the
// server offers it.
type SMTPSender struct {
	host       string
	port       int
	secure     bool
	user       string
	password   string
	skipVerify bool
	timeout    time.Duration
	logger     logging.Logger
}

type SMTPOption func(*SMTPSender)

func WithSMTPTimeout(d time.Duration) SMTPOption {
	return func(s *SMTPSender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithSMTPLogger(logger logging.Logger) SMTPOption {
	return func(s *SMTPSender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSMTPSender(cfg SMTPConfig, opts ...SMTPOption) *SMTPSender {
	s := &SMTPSender{
		host:       cfg.GetSMTPHost(),
		port:       cfg.GetSMTPPort(),
		secure:     cfg.GetSMTPSecure(),
		user:       cfg.GetSMTPUser(),
		password:   cfg.GetSMTPPassword(),
		skipVerify: cfg.GetSMTPSkipVerify(),
		timeout:    defaultSMTPTimeout,
		logger:     logging.Console("MAIL"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to connect to smtp relay").
			WithMetadata(map[string]any{"addr": addr})
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{
		ServerName:         s.host,
		InsecureSkipVerify: s.skipVerify,
	}

	if s.secure {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, errors.CategoryOperation, "smtp handshake failed")
	}
	defer client.Close()

	if !s.secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return errors.Wrap(err, errors.CategoryOperation, "smtp starttls failed")
			}
		}
	}

	if s.user != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
				return errors.Wrap(err, errors.CategoryOperation, "smtp authentication failed")
			}
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp MAIL FROM rejected")
	}
	if err := client.Rcpt(msg.To); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp RCPT TO rejected")
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp DATA rejected")
	}
	if _, err := w.Write(BuildMIME(msg)); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.CategoryOperation, "failed to write smtp body")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp body rejected")
	}

	s.logger.Info("mail sent", "to", msg.To, "via", addr)

	return client.Quit()
}

// BuildMIME encodes msg as a single part HTML email.
func BuildMIME(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	_, _ = qp.Write([]byte(msg.HTML))
	_ = qp.Close()

	return buf.Bytes()
}
