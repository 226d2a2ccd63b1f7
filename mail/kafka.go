package mail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-spectra/logging"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaConfig holds the broker settings.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	GetKafkaTopic() string
	GetKafkaGroupID() string
	GetKafkaUsername() string
	GetKafkaPassword() string
	GetKafkaTLS() bool
}

// MessageWriter is the subset of *kafka.Writer used to publish.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// MessageReader is the subset of *kafka.Reader used to consume.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds a synchronous writer for the configured topic.
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	transport := &kafka.Transport{}
	if cfg.GetKafkaUsername() != "" {
		transport.SASL = plain.Mechanism{
			Username: cfg.GetKafkaUsername(),
			Password: cfg.GetKafkaPassword(),
		}
	}
	if cfg.GetKafkaTLS() {
		transport.TLS = &tls.Config{}
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.GetKafkaBrokers()...),
		Topic:        cfg.GetKafkaTopic(),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Transport:    transport,
		WriteTimeout: 10 * time.Second,
	}
}

// NewKafkaReader builds a consumer group reader for the configured topic.
func NewKafkaReader(cfg KafkaConfig) *kafka.Reader {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if cfg.GetKafkaUsername() != "" {
		dialer.SASLMechanism = plain.Mechanism{
			Username: cfg.GetKafkaUsername(),
			Password: cfg.GetKafkaPassword(),
		}
	}
	if cfg.GetKafkaTLS() {
		dialer.TLS = &tls.Config{}
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.GetKafkaBrokers(),
		GroupID:  cfg.GetKafkaGroupID(),
		Topic:    cfg.GetKafkaTopic(),
		MinBytes: 1,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})
}

// KafkaPublisher queues verification mails for the mailer worker. Messages
// are keyed by email so events of one address stay ordered.
type KafkaPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

var _ Mailer = (*KafkaPublisher)(nil)

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, now: time.Now}
}

func (p *KafkaPublisher) SendVerificationEmail(ctx context.Context, email, token string) error {
	event := VerificationEvent{
		Type:        EventVerificationRequested,
		Email:       email,
		Token:       token,
		RequestedAt: p.now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode mail event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(email),
		Value: value,
		Time:  event.RequestedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventVerificationRequested)},
		},
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to publish mail event")
	}
	return nil
}

// Consumer reads verification events and delivers them with a Mailer.
type Consumer struct {
	reader MessageReader
	mailer Mailer
	logger logging.Logger
}

func NewConsumer(reader MessageReader, mailer Mailer, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.Console("MAILER")
	}
	return &Consumer{reader: reader, mailer: mailer, logger: logger}
}

// Run consumes until ctx is done. Every fetched message is committed once
// handled, including the ones that failed, so a bad event never blocks
// the partition.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.CategoryOperation, "failed to fetch mail event")
		}

		if err := c.Handle(ctx, msg); err != nil {
			c.logger.Error("mail event failed", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.CategoryOperation, "failed to commit mail event")
		}
	}
}

// Handle decodes and delivers a single message.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	event := VerificationEvent{}
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "malformed mail event")
	}

	if event.Type != EventVerificationRequested {
		c.logger.Debug("skipping mail event", "type", event.Type)
		return nil
	}

	if event.Email == "" || event.Token == "" {
		return errors.New("mail event without email or token", errors.CategoryBadInput)
	}

	c.logger.Info("delivering verification email", "to", event.Email)

	return c.mailer.SendVerificationEmail(ctx, event.Email, event.Token)
}
