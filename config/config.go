// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"

	auth "github.com/fenixedu/fenix-auth"
)

// Config is the application configuration. Values come from environment
// variables, optionally seeded from a .env file.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`

	HTTP     HTTPConfig
	Auth     AuthConfig
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Admin    AdminConfig    `envPrefix:"FIRST_ADMIN_"`

	SentryDSN string `env:"SENTRY_DSN"`
	Release   string `env:"RELEASE" envDefault:"dev"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8000"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// PlaceholderSigningKey is the development default of SECRET_KEY.
const PlaceholderSigningKey = "your-secret-key-change-in-production"

// AuthConfig configures token issuance. It implements auth.Config.
type AuthConfig struct {
	SigningKey      string        `env:"SECRET_KEY" envDefault:"your-secret-key-change-in-production"`
	SigningMethod   string        `env:"ALGORITHM" envDefault:"HS256"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	Issuer          string        `env:"TOKEN_ISSUER" envDefault:"fenix-auth"`
	AuthScheme      string        `env:"AUTH_SCHEME" envDefault:"Bearer"`
	ContextKey      string        `env:"AUTH_CONTEXT_KEY" envDefault:"principal"`
}

var _ auth.Config = AuthConfig{}

// DatabaseConfig selects the database. The DSN scheme picks the driver.
type DatabaseConfig struct {
	DSN          string `env:"DSN" envDefault:"sqlite://fenix.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig enables the shared denylist when Addr is set.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"blacklist:"`
}

// AdminConfig describes the account seeded at startup.
type AdminConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Email    string `env:"EMAIL" envDefault:"admin@fenixedu.ru"`
	Password string `env:"PASSWORD" envDefault:"admin123"`
	FullName string `env:"FULL_NAME" envDefault:"Администратор системы"`
}

// Load reads .env when present and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Sanitize trims values and clamps out of range durations.
func (c *Config) Sanitize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = auth.DefaultRefreshTokenTTL
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}

	origins := c.HTTP.CORSOrigins[:0]
	for _, o := range c.HTTP.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.HTTP.CORSOrigins = origins
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	return validation.Errors{
		"SECRET_KEY": validation.Validate(c.Auth.SigningKey,
			validation.Required,
			validation.When(c.IsProduction(),
				validation.NotIn(PlaceholderSigningKey).Error("must be set in production"))),
		"ALGORITHM": validation.Validate(strings.ToUpper(c.Auth.SigningMethod),
			validation.Required, validation.In("HS256").Error("unsupported signing method")),
		"DB_DSN": validation.Validate(c.Database.DSN, validation.Required),
	}.Filter()
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func (a AuthConfig) GetSigningKey() string {
	return a.SigningKey
}

func (a AuthConfig) GetSigningMethod() string {
	return a.SigningMethod
}

func (a AuthConfig) GetAccessTokenTTL() time.Duration {
	return a.AccessTokenTTL
}

func (a AuthConfig) GetRefreshTokenTTL() time.Duration {
	return a.RefreshTokenTTL
}

func (a AuthConfig) GetIssuer() string {
	return a.Issuer
}

func (a AuthConfig) GetAuthScheme() string {
	return a.AuthScheme
}

func (a AuthConfig) GetContextKey() string {
	return a.ContextKey
}
