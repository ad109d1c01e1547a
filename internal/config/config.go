// Package config loads process configuration once at startup from the
// environment (prefix NOTEFLOW_) and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

const envPrefix = "NOTEFLOW_"

const minSecretLength = 32

type Config struct {
	// BaseURL is the externally visible origin, e.g. https://notes.example.com.
	// Env: NOTEFLOW_BASE_URL
	BaseURL   string `env:"BASE_URL"`
	Addr      string `env:"ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Session  Session  `envPrefix:"SESSION_"`
	Database Database `envPrefix:"DATABASE_"`
	Email    Email    `envPrefix:"EMAIL_"`
	Auth     Auth     `envPrefix:"AUTH_"`

	// Args holds positional arguments left after flag parsing.
	Args []string `env:"-"`
}

type Session struct {
	// Secret signs session tokens and keys verification token hashes.
	// Env: NOTEFLOW_SESSION_SECRET
	Secret string        `env:"SECRET"`
	MaxAge time.Duration `env:"MAX_AGE" envDefault:"720h"`
}

type Database struct {
	// Driver is "sqlite" or "postgres"; inferred from DSN when empty.
	Driver string `env:"DRIVER"`
	// Env: NOTEFLOW_DATABASE_URL
	DSN string `env:"URL"`
}

type Email struct {
	Transport     string `env:"TRANSPORT" envDefault:"smtp"`
	From          string `env:"FROM"`
	SMTP          SMTP   `envPrefix:"SMTP_"`
	PostmarkToken string `env:"POSTMARK_TOKEN"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
}

type Auth struct {
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	ProtectedPaths  []string      `env:"PROTECTED_PATHS" envDefault:"/dashboard" envSeparator:","`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL"`
	SignInRateLimit int           `env:"SIGNIN_RATE_LIMIT" envDefault:"10"`
	// TrustedProxies lists proxy IPs or CIDRs whose CF-Connecting-IP and
	// X-Forwarded-For headers are believed. Empty means none are.
	// Env: NOTEFLOW_AUTH_TRUSTED_PROXIES
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// Load builds the configuration from the environment and args (without the
// program name). Flags override environment values when set.
func Load(args []string) (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFlags(args).
		build()
}

// Command returns the first positional argument, if any.
func (c *Config) Command() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

func (c *Config) validate() error {
	var missing []string
	var errs []error

	if c.BaseURL == "" {
		missing = append(missing, envPrefix+"BASE_URL")
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: %sBASE_URL must be an absolute http(s) URL", ErrInvalidSetting, envPrefix))
	}

	if c.Session.Secret == "" {
		missing = append(missing, envPrefix+"SESSION_SECRET")
	} else if len(c.Session.Secret) < minSecretLength {
		errs = append(errs, fmt.Errorf("%w: %sSESSION_SECRET must be at least %d bytes", ErrInvalidSetting, envPrefix, minSecretLength))
	}
	if c.Session.MaxAge <= 0 {
		errs = append(errs, fmt.Errorf("%w: %sSESSION_MAX_AGE must be positive", ErrInvalidSetting, envPrefix))
	}

	if c.Database.DSN == "" {
		missing = append(missing, envPrefix+"DATABASE_URL")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidSetting, c.Database.Driver))
	}

	if c.Email.From == "" {
		missing = append(missing, envPrefix+"EMAIL_FROM")
	}
	switch c.Email.Transport {
	case "smtp":
		if c.Email.SMTP.Host == "" {
			missing = append(missing, envPrefix+"EMAIL_SMTP_HOST")
		}
		if c.Email.SMTP.User == "" {
			missing = append(missing, envPrefix+"EMAIL_SMTP_USER")
		}
		if c.Email.SMTP.Password == "" {
			missing = append(missing, envPrefix+"EMAIL_SMTP_PASSWORD")
		}
		if c.Email.SMTP.Port <= 0 {
			errs = append(errs, fmt.Errorf("%w: %sEMAIL_SMTP_PORT must be positive", ErrInvalidSetting, envPrefix))
		}
	case "postmark":
		if c.Email.PostmarkToken == "" {
			missing = append(missing, envPrefix+"EMAIL_POSTMARK_TOKEN")
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unsupported email transport %q", ErrInvalidSetting, c.Email.Transport))
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: %sAUTH_TOKEN_TTL must be positive", ErrInvalidSetting, envPrefix))
	}
	if len(c.Auth.ProtectedPaths) == 0 {
		missing = append(missing, envPrefix+"AUTH_PROTECTED_PATHS")
	}
	for _, p := range c.Auth.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("%w: %sAUTH_TRUSTED_PROXIES entry %q is not an IP or CIDR", ErrInvalidSetting, envPrefix, p))
		}
	}

	if len(missing) > 0 {
		errs = append([]error{fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))}, errs...)
	}
	return errors.Join(errs...)
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// driverFor infers the database driver from a DSN.
func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}
