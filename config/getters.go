package config

import "time"

func (c *Config) GetSigningKey() []byte             { return []byte(c.JWTSecret) }
func (c *Config) GetSigningMethod() string          { return c.JWTAlgorithm }
func (c *Config) GetIssuer() string                 { return c.JWTIssuer }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.JWTAccessTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.JWTRefreshTTL }

func (c *Config) GetAPIURL() string                            { return c.APIURL }
func (c *Config) GetVerificationTokenTTL() time.Duration       { return c.VerificationTokenTTL }
func (c *Config) GetVerificationResendCooldown() time.Duration { return c.VerificationResendCooldown }
func (c *Config) GetVerificationMaxAttempts() int              { return c.VerificationMaxAttempts }

func (c *Config) GetCookieName() string     { return c.CookieName }
func (c *Config) GetCookieDomain() string   { return c.CookieDomain }
func (c *Config) GetCookieSecure() bool     { return c.CookieSecure }
func (c *Config) GetCookieSameSite() string { return c.CookieSameSite }

func (c *Config) GetAPIKeySecret() []byte { return []byte(c.APIKeySecret) }
func (c *Config) GetAPIKeyPrefix() string { return c.APIKeyPrefix }

func (c *Config) GetDatabaseDriver() string { return c.DatabaseDriver }
func (c *Config) GetDatabaseDSN() string    { return c.DatabaseDSN }
func (c *Config) GetDatabaseDebug() bool    { return c.DatabaseDebug }

func (c *Config) GetSMTPHost() string     { return c.SMTPHost }
func (c *Config) GetSMTPPort() int        { return c.SMTPPort }
func (c *Config) GetSMTPSecure() bool     { return c.SMTPSecure }
func (c *Config) GetSMTPUser() string     { return c.SMTPUser }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }
func (c *Config) GetSMTPFrom() string     { return c.SMTPFrom }
func (c *Config) GetSMTPSkipVerify() bool { return c.SMTPSkipVerify }

func (c *Config) GetKafkaBrokers() []string { return c.KafkaBrokers }
func (c *Config) GetKafkaTopic() string     { return c.KafkaTopic }
func (c *Config) GetKafkaGroupID() string   { return c.KafkaGroupID }
func (c *Config) GetKafkaUsername() string  { return c.KafkaUsername }
func (c *Config) GetKafkaPassword() string  { return c.KafkaPassword }
func (c *Config) GetKafkaTLS() bool         { return c.KafkaTLS }

func (c *Config) GetHTTPAddr() string    { return c.HTTPAddr }
func (c *Config) GetHTTPPrefix() string  { return c.HTTPPrefix }
func (c *Config) GetCORSOrigins() string { return c.CORSOrigins }
func (c *Config) GetAppEnv() string      { return c.AppEnv }
