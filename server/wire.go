package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-spectra/activitymap"
	"github.com/goliatone/go-spectra/apikey"
	"github.com/goliatone/go-spectra/auth"
	"github.com/goliatone/go-spectra/config"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/repository"
	"github.com/goliatone/go-spectra/site"
)

// Services groups the domain services built by Wire.
type Services struct {
	Auth    *auth.Authenticator
	Tokens  *auth.TokenServiceImpl
	APIKeys *apikey.Service
	Sites   *site.Service
}

type WireOption func(*wiring)

type wiring struct {
	hasher   auth.PasswordHasher
	activity auth.ActivitySink
}

// WithHasher replaces the default argon2 hasher.
func WithHasher(hasher auth.PasswordHasher) WireOption {
	return func(w *wiring) {
		if hasher != nil {
			w.hasher = hasher
		}
	}
}

// WithActivitySink replaces the normalized log sink.
func WithActivitySink(sink auth.ActivitySink) WireOption {
	return func(w *wiring) {
		if sink != nil {
			w.activity = sink
		}
	}
}

// Wire builds the services from cfg and returns them with the fiber app
// serving them.
func Wire(cfg *config.Config, mgr *repository.Manager, mailer auth.Mailer, log logging.Logger, opts []WireOption, appOpts ...Option) (*fiber.App, *Services) {
	mgr.MustValidate()

	if log == nil {
		log = logging.Console("APP")
	}

	w := &wiring{
		hasher:   auth.NewArgon2Hasher(),
		activity: activitymap.LogSink(logging.Named(log, "activity")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	tokens := auth.NewTokenService(cfg, auth.WithTokenLogger(logging.Named(log, "tokens")))

	verifier := auth.NewEmailVerifier(mgr.Users(), mgr, mailer,
		auth.WithVerificationConfig(cfg),
		auth.WithVerifierLogger(logging.Named(log, "verification")),
		auth.WithVerifierActivitySink(w.activity),
	)

	auther := auth.NewAuthenticator(mgr.Users(), w.hasher, tokens, verifier).
		WithLogger(logging.Named(log, "auth")).
		WithActivitySink(w.activity)

	apiKeys := apikey.NewService(mgr.APIKeys(),
		apikey.NewSigner(cfg.GetAPIKeySecret(), cfg.GetAPIKeyPrefix()),
		apikey.WithLogger(logging.Named(log, "apikeys")),
		apikey.WithActivitySink(w.activity),
	)

	sites := site.NewService(mgr.Sites(), site.WithLogger(logging.Named(log, "sites")))

	app := New(cfg,
		Guards{Tokens: tokens, APIKeys: apiKeys},
		Controllers{
			Auth: auth.NewAuthController(auther, auth.NewRefreshCookie(cfg),
				auth.WithControllerLogger(logging.Named(log, "auth"))),
			APIKeys: apikey.NewController(apiKeys),
			Sites:   site.NewController(sites),
		},
		append([]Option{WithLogger(logging.Named(log, "http"))}, appOpts...)...,
	)

	return app, &Services{
		Auth:    auther,
		Tokens:  tokens,
		APIKeys: apiKeys,
		Sites:   sites,
	}
}
