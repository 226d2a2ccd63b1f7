package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

const (
	EnvProduction = "production"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MailTransportSMTP  = "smtp"
	MailTransportKafka = "kafka"
	MailTransportLog   = "log"
)

// Config holds every runtime setting. Components consume it through
// narrow getter interfaces declared in their own packages.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	HTTPPrefix  string
	CORSOrigins string
	LogLevel    string
	LogFormat   string

	DatabaseDriver string
	DatabaseDSN    string
	DatabaseDebug  bool

	JWTSecret     string
	JWTAlgorithm  string
	JWTIssuer     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	APIKeySecret string
	APIKeyPrefix string
	APIURL       string

	VerificationTokenTTL       time.Duration
	VerificationResendCooldown time.Duration
	VerificationMaxAttempts    int

	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	MailTransport  string
	SMTPHost       string
	SMTPPort       int
	SMTPSecure     bool
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	SMTPSkipVerify bool

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroupID  string
	KafkaUsername string
	KafkaPassword string
	KafkaTLS      bool
}

// Defaults returns a Config populated with development defaults.
func Defaults() *Config {
	return &Config{
		AppEnv:      "development",
		HTTPAddr:    ":4200",
		HTTPPrefix:  "/api",
		CORSOrigins: "http://localhost:3000",
		LogLevel:    "info",
		LogFormat:   "text",

		DatabaseDriver: DriverSQLite,
		DatabaseDSN:    "file:spectra.db?cache=shared",

		JWTAlgorithm:  "HS256",
		JWTIssuer:     "spectra",
		JWTAccessTTL:  time.Hour,
		JWTRefreshTTL: 7 * 24 * time.Hour,

		APIKeyPrefix: "spectra",
		APIURL:       "http://localhost:4200/api",

		VerificationTokenTTL:       time.Hour,
		VerificationResendCooldown: 2 * time.Minute,
		VerificationMaxAttempts:    3,

		CookieName:     "refreshToken",
		CookieDomain:   "localhost",
		CookieSecure:   true,
		CookieSameSite: "None",

		MailTransport: MailTransportSMTP,
		SMTPPort:      587,

		KafkaTopic:   "mail.verification",
		KafkaGroupID: "spectra-mailer",
	}
}

// Load reads .env files (outside production) and the process environment.
func Load(files ...string) (*Config, error) {
	if os.Getenv("APP_ENV") != EnvProduction {
		if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load env file")
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, starting from Defaults.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()
	r := reader{lookup: lookup}

	cfg.AppEnv = r.str("APP_ENV", cfg.AppEnv)
	cfg.HTTPAddr = r.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.HTTPPrefix = r.str("HTTP_PREFIX", cfg.HTTPPrefix)
	cfg.CORSOrigins = r.str("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.LogLevel = r.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = r.str("LOG_FORMAT", cfg.LogFormat)

	cfg.DatabaseDriver = strings.ToLower(r.str("DATABASE_DRIVER", cfg.DatabaseDriver))
	cfg.DatabaseDSN = r.str("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.DatabaseDebug = r.boolean("DATABASE_DEBUG", cfg.DatabaseDebug)

	cfg.JWTSecret = r.str("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTAlgorithm = r.str("JWT_ALGORITHM", cfg.JWTAlgorithm)
	cfg.JWTIssuer = r.str("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAccessTTL = r.duration("JWT_ACCESS_TTL", cfg.JWTAccessTTL)
	cfg.JWTRefreshTTL = r.duration("JWT_REFRESH_TTL", cfg.JWTRefreshTTL)

	cfg.APIKeySecret = r.str("API_KEY_SECRET", cfg.APIKeySecret)
	cfg.APIKeyPrefix = r.str("API_KEY_PREFIX", cfg.APIKeyPrefix)
	cfg.APIURL = r.str("API_URL", cfg.APIURL)

	cfg.VerificationTokenTTL = r.duration("VERIFICATION_TOKEN_TTL", cfg.VerificationTokenTTL)
	cfg.VerificationResendCooldown = r.duration("VERIFICATION_RESEND_COOLDOWN", cfg.VerificationResendCooldown)
	cfg.VerificationMaxAttempts = r.integer("VERIFICATION_MAX_ATTEMPTS", cfg.VerificationMaxAttempts)

	cfg.CookieName = r.str("COOKIE_NAME", cfg.CookieName)
	cfg.CookieDomain = r.str("COOKIE_DOMAIN", cfg.CookieDomain)
	cfg.CookieSecure = r.boolean("COOKIE_SECURE", cfg.CookieSecure)
	cfg.CookieSameSite = r.str("COOKIE_SAME_SITE", cfg.CookieSameSite)

	cfg.MailTransport = strings.ToLower(r.str("MAIL_TRANSPORT", cfg.MailTransport))
	cfg.SMTPHost = r.str("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = r.integer("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPSecure = r.boolean("SMTP_SECURE", cfg.SMTPSecure)
	cfg.SMTPUser = r.str("SMTP_USER", cfg.SMTPUser)
	cfg.SMTPPassword = r.str("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.SMTPFrom = r.str("SMTP_FROM", cfg.SMTPFrom)
	cfg.SMTPSkipVerify = r.boolean("SMTP_SKIP_VERIFY", cfg.SMTPSkipVerify)

	cfg.KafkaBrokers = r.list("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = r.str("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaGroupID = r.str("KAFKA_GROUP_ID", cfg.KafkaGroupID)
	cfg.KafkaUsername = r.str("KAFKA_USERNAME", cfg.KafkaUsername)
	cfg.KafkaPassword = r.str("KAFKA_PASSWORD", cfg.KafkaPassword)
	cfg.KafkaTLS = r.boolean("KAFKA_TLS", cfg.KafkaTLS)

	if len(r.errs) > 0 {
		return nil, goerrors.New("invalid configuration values", goerrors.CategoryValidation).
			WithTextCode("CONFIG_PARSE_ERROR").
			WithMetadata(map[string]any{"fields": r.errs})
	}

	return cfg, nil
}

// Validate checks the settings required to boot the API process.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.DatabaseDriver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.JWTSecret, validation.Required),
		validation.Field(&c.JWTAlgorithm, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&c.JWTAccessTTL, validation.Required),
		validation.Field(&c.JWTRefreshTTL, validation.Required),
		validation.Field(&c.APIKeySecret, validation.Required),
		validation.Field(&c.APIKeyPrefix, validation.Required),
		validation.Field(&c.APIURL, validation.Required),
		validation.Field(&c.VerificationTokenTTL, validation.Required),
		validation.Field(&c.VerificationMaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.CookieSameSite, validation.In("Lax", "Strict", "None", "lax", "strict", "none")),
		validation.Field(&c.MailTransport, validation.Required, validation.In(MailTransportSMTP, MailTransportKafka, MailTransportLog)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}

	switch c.MailTransport {
	case MailTransportSMTP:
		return c.ValidateSMTP()
	case MailTransportKafka:
		return c.ValidateKafka()
	}
	return nil
}

// ValidateSMTP checks the settings needed to deliver mail over SMTP.
func (c *Config) ValidateSMTP() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SMTPHost, validation.Required),
		validation.Field(&c.SMTPPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.SMTPFrom, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid smtp configuration")
	}
	return nil
}

// ValidateKafka checks the settings needed to publish or consume mail events.
func (c *Config) ValidateKafka() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.KafkaBrokers, validation.Required),
		validation.Field(&c.KafkaTopic, validation.Required),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid kafka configuration")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Sanitized returns a printable view with secrets masked.
func (c *Config) Sanitized() map[string]any {
	return map[string]any{
		"app_env":          c.AppEnv,
		"http_addr":        c.HTTPAddr,
		"http_prefix":      c.HTTPPrefix,
		"database_driver":  c.DatabaseDriver,
		"database_dsn":     mask(c.DatabaseDSN),
		"jwt_secret":       mask(c.JWTSecret),
		"jwt_algorithm":    c.JWTAlgorithm,
		"jwt_access_ttl":   c.JWTAccessTTL.String(),
		"jwt_refresh_ttl":  c.JWTRefreshTTL.String(),
		"api_key_secret":   mask(c.APIKeySecret),
		"api_url":          c.APIURL,
		"verification_ttl": c.VerificationTokenTTL.String(),
		"resend_cooldown":  c.VerificationResendCooldown.String(),
		"max_attempts":     c.VerificationMaxAttempts,
		"cookie_domain":    c.CookieDomain,
		"mail_transport":   c.MailTransport,
		"smtp_host":        c.SMTPHost,
		"smtp_password":    mask(c.SMTPPassword),
		"kafka_brokers":    c.KafkaBrokers,
		"kafka_topic":      c.KafkaTopic,
		"kafka_password":   mask(c.KafkaPassword),
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "******"
}

type reader struct {
	lookup func(string) (string, bool)
	errs   map[string]string
}

func (r *reader) raw(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) fail(key string, err error) {
	if r.errs == nil {
		r.errs = map[string]string{}
	}
	r.errs[key] = err.Error()
}

func (r *reader) str(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) boolean(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return i
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) list(key string, def []string) []string {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
