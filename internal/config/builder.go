package config

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

type configBuilder struct {
	configs []*Config
	args    []string
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{configs: make([]*Config, 0, 2)}
}

// build merges the collected sources in order; later non-zero fields win.
func (b *configBuilder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("load config: %w", b.err)
	}

	cfg := new(Config)
	for _, src := range b.configs {
		if err := mergo.Merge(cfg, src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
	}
	cfg.Args = b.args
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = driverFor(cfg.Database.DSN)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := &Config{}
	if err := env.ParseWithOptions(envCfg, env.Options{Prefix: envPrefix}); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("parse env: %w", err))
		return b
	}
	b.configs = append(b.configs, envCfg)
	return b
}

// withFlags parses command-line flags. Flags default to zero values so that
// unset flags never override the environment.
func (b *configBuilder) withFlags(args []string) *configBuilder {
	fs := flag.NewFlagSet("noteflow", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	flagCfg := &Config{}
	fs.StringVar(&flagCfg.Addr, "addr", "", "listen address host:port")
	fs.StringVar(&flagCfg.BaseURL, "base-url", "", "externally visible base URL")
	fs.StringVar(&flagCfg.Database.DSN, "database-url", "", "database DSN (sqlite path or postgres URL)")
	fs.StringVar(&flagCfg.Database.Driver, "database-driver", "", "database driver: sqlite or postgres")
	fs.StringVar(&flagCfg.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&flagCfg.LogFormat, "log-format", "", "log format: text or json")
	fs.StringVar(&flagCfg.Email.Transport, "email-transport", "", "email transport: smtp or postmark")
	fs.DurationVar(&flagCfg.Auth.SweepInterval, "sweep-interval", 0, "expired token sweep interval (0 disables)")

	if err := fs.Parse(args); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("parse flags: %w", err))
		return b
	}

	b.args = fs.Args()
	b.configs = append(b.configs, flagCfg)
	return b
}
