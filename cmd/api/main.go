package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-spectra/auth"
	"github.com/goliatone/go-spectra/config"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/mail"
	"github.com/goliatone/go-spectra/persistence"
	"github.com/goliatone/go-spectra/repository"
	"github.com/goliatone/go-spectra/server"
	"github.com/uptrace/bun"
)

type App struct {
	config  *config.Config
	logger  *logging.LogrusLogger
	db      *bun.DB
	repo    *repository.Manager
	mailer  auth.Mailer
	closers []func() error
	srv     *fiber.App
}

func (a *App) GetLogger(name string) logging.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}),
	}

	app.GetLogger("config").Debug("configuration loaded", "config", print.MaybePrettyJSON(cfg.Sanitized()))

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		app.GetLogger("app").Error("persistence setup failed", "error", err)
		os.Exit(1)
	}

	if err := WithMailer(ctx, app); err != nil {
		app.GetLogger("app").Error("mailer setup failed", "error", err)
		os.Exit(1)
	}

	WithHTTPServer(app)

	go func() {
		app.GetLogger("app").Info("listening", "addr", cfg.HTTPAddr, "prefix", cfg.HTTPPrefix)
		if err := app.srv.Listen(cfg.HTTPAddr); err != nil {
			app.GetLogger("app").Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.ShutdownWithContext(shutdownCtx); err != nil {
		app.GetLogger("app").Error("server shutdown failed", "error", err)
	}

	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			app.GetLogger("app").Warn("close failed", "error", err)
		}
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := persistence.Open(ctx, app.config, app.GetLogger("persistence"))
	if err != nil {
		return err
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	if err := persistence.Migrate(ctx, db, app.config.DatabaseDriver, app.GetLogger("migrate")); err != nil {
		return err
	}

	app.repo = repository.NewManager(db)
	return app.repo.Validate()
}

func WithMailer(_ context.Context, app *App) error {
	cfg := app.config

	switch cfg.MailTransport {
	case config.MailTransportKafka:
		writer := mail.NewKafkaWriter(cfg)
		app.closers = append(app.closers, writer.Close)
		app.mailer = mail.NewKafkaPublisher(writer)
	case config.MailTransportLog:
		app.mailer = mail.NewLogMailer(cfg.APIURL, app.GetLogger("mail"))
	default:
		renderer, err := mail.NewRenderer(cfg.SMTPFrom, mail.WithTTLLabel(ttlLabel(cfg.VerificationTokenTTL)))
		if err != nil {
			return err
		}
		sender := mail.NewSMTPSender(cfg, mail.WithSMTPLogger(app.GetLogger("smtp")))
		app.mailer = mail.NewVerificationMailer(cfg.APIURL, renderer, sender)
	}

	app.GetLogger("mail").Info("mail transport ready", "transport", cfg.MailTransport)
	return nil
}

func WithHTTPServer(app *App) {
	access := app.logger.Writer()
	app.closers = append(app.closers, access.Close)

	app.srv, _ = server.Wire(app.config, app.repo, app.mailer, app.logger, nil,
		server.WithAccessLog(access),
	)
}

// ttlLabel renders whole hours the way the email copy expects.
func ttlLabel(ttl time.Duration) string {
	hours := int(ttl / time.Hour)
	if hours < 1 {
		return fmt.Sprintf("%d минут", int(ttl/time.Minute))
	}
	return fmt.Sprintf("%d часа", hours)
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
