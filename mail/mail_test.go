package mail_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/quotedprintable"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/mail"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationURL(t *testing.T) {
	cases := []struct {
		name   string
		apiURL string
		want   string
	}{
		{"plain", "https://api.example.com/api", "https://api.example.com/api/auth/verify-email/abc"},
		{"trailing slash", "https://api.example.com/api/", "https://api.example.com/api/auth/verify-email/abc"},
		{"empty falls back", "  ", mail.DefaultAPIURL + "/auth/verify-email/abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mail.VerificationURL(tc.apiURL, "abc"))
		})
	}
}

func TestRendererVerification(t *testing.T) {
	r, err := mail.NewRenderer("noreply@example.com", mail.WithTTLLabel("2 часов"))
	require.NoError(t, err)

	url := mail.VerificationURL("https://api.example.com/api", "deadbeef")
	msg, err := r.Verification("alice@example.com", url)
	require.NoError(t, err)

	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, mail.VerificationSubject, msg.Subject)
	assert.Equal(t, 2, strings.Count(msg.HTML, url))
	assert.Contains(t, msg.HTML, "2 часов")
	assert.Contains(t, msg.HTML, mail.VerificationSubject)
}

func TestBuildMIME(t *testing.T) {
	raw := string(mail.BuildMIME(mail.Message{
		From:    "noreply@example.com",
		To:      "alice@example.com",
		Subject: mail.VerificationSubject,
		HTML:    "<p>Привет</p>",
	}))

	head, body, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)

	assert.Contains(t, head, "From: noreply@example.com\r\n")
	assert.Contains(t, head, "To: alice@example.com\r\n")
	assert.Contains(t, head, "Subject: =?utf-8?q?")
	assert.Contains(t, head, "Content-Type: text/html; charset=\"UTF-8\"")
	assert.Contains(t, head, "Content-Transfer-Encoding: quoted-printable")

	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
	require.NoError(t, err)
	assert.Equal(t, "<p>Привет</p>", string(decoded))
}

// fakeSMTP accepts a single session and records the envelope.
type fakeSMTP struct {
	ln   net.Listener
	done chan struct{}

	mu   sync.Mutex
	from string
	rcpt string
	data string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	reply := func(line string) {
		rw.WriteString(line + "\r\n")
		rw.Flush()
	}

	reply("220 localhost ESMTP")
	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		switch verb {
		case "EHLO", "HELO":
			reply("250 localhost")
		case "MAIL":
			s.mu.Lock()
			s.from = line
			s.mu.Unlock()
			reply("250 OK")
		case "RCPT":
			s.mu.Lock()
			s.rcpt = line
			s.mu.Unlock()
			reply("250 OK")
		case "DATA":
			reply("354 go ahead")
			var sb strings.Builder
			for {
				l, err := rw.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			s.mu.Lock()
			s.data = sb.String()
			s.mu.Unlock()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

type smtpConfig struct {
	port int
}

func (c smtpConfig) GetSMTPHost() string     { return "127.0.0.1" }
func (c smtpConfig) GetSMTPPort() int        { return c.port }
func (c smtpConfig) GetSMTPSecure() bool     { return false }
func (c smtpConfig) GetSMTPUser() string     { return "" }
func (c smtpConfig) GetSMTPPassword() string { return "" }
func (c smtpConfig) GetSMTPFrom() string     { return "noreply@example.com" }
func (c smtpConfig) GetSMTPSkipVerify() bool { return true }

func TestVerificationMailerOverSMTP(t *testing.T) {
	server := startFakeSMTP(t)

	renderer, err := mail.NewRenderer("noreply@example.com")
	require.NoError(t, err)

	sender := mail.NewSMTPSender(smtpConfig{port: server.port()},
		mail.WithSMTPTimeout(5*time.Second),
		mail.WithSMTPLogger(logging.Nop()),
	)
	mailer := mail.NewVerificationMailer("http://localhost:4200/api", renderer, sender)

	require.NoError(t, mailer.SendVerificationEmail(context.Background(), "alice@example.com", "cafebabe"))

	select {
	case <-server.done:
	case <-time.After(5 * time.Second):
		t.Fatal("smtp session did not finish")
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Contains(t, server.from, "<noreply@example.com>")
	assert.Contains(t, server.rcpt, "<alice@example.com>")
	assert.Contains(t, server.data, "To: alice@example.com")

	_, body, _ := strings.Cut(server.data, "\r\n\r\n")
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "http://localhost:4200/api/auth/verify-email/cafebabe")
}

func TestSMTPSenderConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sender := mail.NewSMTPSender(smtpConfig{port: port}, mail.WithSMTPLogger(logging.Nop()))
	err = sender.Send(context.Background(), mail.Message{From: "a@example.com", To: "b@example.com"})
	assert.Error(t, err)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	pub := mail.NewKafkaPublisher(w)

	require.NoError(t, pub.SendVerificationEmail(context.Background(), "alice@example.com", "tok"))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "alice@example.com", string(msg.Key))

	event := mail.VerificationEvent{}
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, mail.EventVerificationRequested, event.Type)
	assert.Equal(t, "alice@example.com", event.Email)
	assert.Equal(t, "tok", event.Token)
	assert.False(t, event.RequestedAt.IsZero())

	w.err = errors.New("broker down")
	assert.Error(t, pub.SendVerificationEmail(context.Background(), "alice@example.com", "tok"))
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

type recordingMailer struct {
	calls  []string
	cancel context.CancelFunc
	expect int
	err    error
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, email, token string) error {
	m.calls = append(m.calls, email+":"+token)
	if len(m.calls) == m.expect && m.cancel != nil {
		m.cancel()
	}
	return m.err
}

func event(t *testing.T, typ, email, token string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(mail.VerificationEvent{Type: typ, Email: email, Token: token})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(email), Value: value}
}

func TestConsumerRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader := &fakeReader{msgs: []kafka.Message{
		{Value: []byte("not json")},
		event(t, "something.else", "x@example.com", "t0"),
		event(t, mail.EventVerificationRequested, "", "t1"),
		event(t, mail.EventVerificationRequested, "alice@example.com", "t2"),
		event(t, mail.EventVerificationRequested, "bob@example.com", "t3"),
	}}
	mailer := &recordingMailer{expect: 2, cancel: cancel}

	err := mail.NewConsumer(reader, mailer, logging.Nop()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@example.com:t2", "bob@example.com:t3"}, mailer.calls)
	assert.Len(t, reader.committed, 5)
}

func TestConsumerCommitsFailedDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{msgs: []kafka.Message{
		event(t, mail.EventVerificationRequested, "alice@example.com", "t1"),
	}}
	mailer := &recordingMailer{expect: 1, cancel: cancel, err: errors.New("smtp down")}

	err := mail.NewConsumer(reader, mailer, logging.Nop()).Run(ctx)
	require.NoError(t, err)
	assert.Len(t, mailer.calls, 1)
	assert.Len(t, reader.committed, 1)
}

func TestLogMailer(t *testing.T) {
	m := mail.NewLogMailer("http://localhost/api", logging.Nop())
	assert.NoError(t, m.SendVerificationEmail(context.Background(), "alice@example.com", "tok"))
}
