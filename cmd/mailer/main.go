package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-spectra/config"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/mail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lgr := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := lgr.GetLogger("mailer")

	if err := cfg.ValidateKafka(); err != nil {
		logger.Error("invalid kafka configuration", "error", err)
		os.Exit(1)
	}

	if err := cfg.ValidateSMTP(); err != nil {
		logger.Error("invalid smtp configuration", "error", err)
		os.Exit(1)
	}

	logger.Debug("configuration loaded", "config", print.MaybePrettyJSON(cfg.Sanitized()))

	renderer, err := mail.NewRenderer(cfg.SMTPFrom)
	if err != nil {
		logger.Error("template setup failed", "error", err)
		os.Exit(1)
	}

	sender := mail.NewSMTPSender(cfg, mail.WithSMTPLogger(lgr.GetLogger("smtp")))
	mailer := mail.NewVerificationMailer(cfg.APIURL, renderer, sender)

	reader := mail.NewKafkaReader(cfg)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	logger.Info("consuming mail events", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)

	if err := mail.NewConsumer(reader, mailer, logger).Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("mailer stopped")
}
