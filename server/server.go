// Package server assembles the fiber application: middleware stack, JSON
// error rendering and route registration.
package server

import (
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-spectra/apikey"
	"github.com/goliatone/go-spectra/auth"
	"github.com/goliatone/go-spectra/logging"
	"github.com/goliatone/go-spectra/middleware/authware"
	"github.com/goliatone/go-spectra/site"
)

const accessLogFormat = "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n"

// Config holds the HTTP settings.
type Config interface {
	GetHTTPPrefix() string
	GetCORSOrigins() string
}

// Controllers are the route groups mounted under the prefix.
type Controllers struct {
	Auth    *auth.AuthController
	APIKeys *apikey.Controller
	Sites   *site.Controller
}

// Guards authenticate protected routes. APIKeys is only accepted on the
// site routes.
type Guards struct {
	Tokens  authware.TokenValidator
	APIKeys authware.APIKeyValidator
}

type Option func(*options)

type options struct {
	logger    logging.Logger
	accessLog io.Writer
}

func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAccessLog sets the writer of the request log. A nil writer disables
// it.
func WithAccessLog(w io.Writer) Option {
	return func(o *options) {
		o.accessLog = w
	}
}

func New(cfg Config, guards Guards, ctrl Controllers, opts ...Option) *fiber.App {
	o := &options{
		logger:    logging.Console("HTTP"),
		accessLog: os.Stdout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "spectra",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(o.logger),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	if o.accessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: accessLogFormat,
			Output: o.accessLog,
		}))
	}
	app.Use(cors.New(corsConfig(cfg.GetCORSOrigins())))

	app.Get("/health", Health)

	api := app.Group(normalizePrefix(cfg.GetHTTPPrefix()))
	api.Get("/health", Health)

	bearer := authware.New(authware.Config{
		TokenValidator: guards.Tokens,
		Logger:         o.logger,
	})

	bearerOrKey := authware.New(authware.Config{
		TokenValidator:  guards.Tokens,
		APIKeyValidator: guards.APIKeys,
		Logger:          o.logger,
	})

	if ctrl.Auth != nil {
		ctrl.Auth.Mount(api.Group("/auth"), bearer)
	}

	if ctrl.APIKeys != nil {
		ctrl.APIKeys.Mount(api.Group("/api-keys"), bearer)
	}

	if ctrl.Sites != nil {
		ctrl.Sites.Mount(api.Group("/sites"), bearerOrKey)
	}

	return app
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func corsConfig(origins string) cors.Config {
	origins = strings.TrimSpace(origins)
	cfg := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key",
		AllowCredentials: true,
	}
	// fiber refuses credentials with a wildcard origin
	if origins == "" || origins == "*" {
		cfg.AllowOrigins = "*"
		cfg.AllowCredentials = false
	}
	return cfg
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// ErrorHandler renders every error as JSON:
//
//	{"statusCode": 400, "error": "Bad Request", "message": "...", "text_code": "..."}
func ErrorHandler(log logging.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logging.Console("HTTP")
	}

	return func(c *fiber.Ctx, err error) error {
		richErr := toRichError(err)

		status := richErr.Code
		if status == 0 {
			status = statusFor(richErr)
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				"path", c.Path(),
				"error", err,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			log.Debug("request rejected",
				"path", c.Path(),
				"status", status,
				"text_code", richErr.TextCode,
			)
		}

		body := fiber.Map{
			"statusCode": status,
			"error":      http.StatusText(status),
			"message":    richErr.Message,
		}
		if richErr.TextCode != "" {
			body["text_code"] = richErr.TextCode
		}
		if len(richErr.Metadata) > 0 && status < http.StatusInternalServerError {
			body["metadata"] = richErr.Metadata
		}

		return c.Status(status).JSON(body)
	}
}

func toRichError(err error) *errors.Error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}

	return errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
		WithCode(errors.CodeInternal)
}

func statusFor(richErr *errors.Error) int {
	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput, errors.CategoryConflict:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func fromFiberError(fe *fiber.Error) *errors.Error {
	switch {
	case fe.Code == http.StatusUnauthorized:
		return errors.New(fe.Message, errors.CategoryAuth).WithCode(fe.Code)
	case fe.Code == http.StatusForbidden:
		return errors.New(fe.Message, errors.CategoryAuthz).WithCode(fe.Code)
	case fe.Code == http.StatusNotFound:
		return errors.New(fe.Message, errors.CategoryNotFound).WithCode(fe.Code)
	case fe.Code == http.StatusTooManyRequests:
		return errors.New(fe.Message, errors.CategoryRateLimit).WithCode(fe.Code)
	case fe.Code >= 400 && fe.Code < 500:
		return errors.New(fe.Message, errors.CategoryBadInput).WithCode(fe.Code)
	default:
		return errors.New(fe.Message, errors.CategoryInternal).WithCode(fe.Code)
	}
}
