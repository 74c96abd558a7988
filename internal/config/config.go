// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package config loads troupe configuration from a YAML file, command-line
// flags and TROUPE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/troupe-dev/troupe/internal/logging"
	"github.com/troupe-dev/troupe/internal/xdg"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TROUPE_"

// Undeclared-property policies.
const (
	UndeclaredIgnore = "ignore"
	UndeclaredWarn   = "warn"
	UndeclaredReject = "reject"
)

// Config is the resolved runtime configuration.
type Config struct {
	LogFormat     string  `koanf:"log-format" env:"LOG_FORMAT"`
	LogLevel      string  `koanf:"log-level" env:"LOG_LEVEL"`
	Manifest      string  `koanf:"manifest" env:"MANIFEST"`
	ListenAddr    string  `koanf:"listen-addr" env:"LISTEN_ADDR"`
	MetricsAddr   string  `koanf:"metrics-addr" env:"METRICS_ADDR"`
	DatabaseURL   string  `koanf:"database-url" env:"DATABASE_URL"`
	Undeclared    string  `koanf:"undeclared" env:"UNDECLARED"`
	RateBurst     int     `koanf:"rate-burst" env:"RATE_BURST"`
	RatePerSecond float64 `koanf:"rate-per-second" env:"RATE_PER_SECOND"`
	JournalSize   int     `koanf:"journal-size" env:"JOURNAL_SIZE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogFormat:     "json",
		LogLevel:      "info",
		ListenAddr:    "127.0.0.1:8080",
		MetricsAddr:   "127.0.0.1:9100",
		Undeclared:    UndeclaredWarn,
		RateBurst:     20,
		RatePerSecond: 10,
		JournalSize:   1000,
	}
}

// RegisterFlags adds one flag per field to fs, defaulting to Default().
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.LogFormat, "log format (json, text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("manifest", d.Manifest, "path to the command manifest")
	fs.String("listen-addr", d.ListenAddr, "HTTP API listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics and health listen address (empty disables)")
	fs.String("database-url", d.DatabaseURL, "PostgreSQL URL for the run journal (empty uses memory)")
	fs.String("undeclared", d.Undeclared, "undeclared property policy (ignore, warn, reject)")
	fs.Int("rate-burst", d.RateBurst, "commands a caller may burst (0 disables rate limiting)")
	fs.Float64("rate-per-second", d.RatePerSecond, "sustained commands per second per caller")
	fs.Int("journal-size", d.JournalSize, "records kept by the in-memory journal")
}

// Load resolves configuration. An empty path falls back to the XDG config
// file when it exists. A nil flag set skips the flag layer.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log-format", c.LogFormat, "must be json or text")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log-level", c.LogLevel, "must be debug, info, warn or error")
	}
	switch c.Undeclared {
	case UndeclaredIgnore, UndeclaredWarn, UndeclaredReject:
	default:
		return invalid("undeclared", c.Undeclared, "must be ignore, warn or reject")
	}
	if c.RateBurst < 0 {
		return invalid("rate-burst", c.RateBurst, "must not be negative")
	}
	if c.RateBurst > 0 && c.RatePerSecond <= 0 {
		return invalid("rate-per-second", c.RatePerSecond, "must be positive when rate limiting is enabled")
	}
	if c.JournalSize <= 0 {
		return invalid("journal-size", c.JournalSize, "must be positive")
	}
	return nil
}

// LoggingOptions returns the logging setup for service.
func (c Config) LoggingOptions(service, version string) logging.Options {
	return logging.Options{
		Service: service,
		Version: version,
		Format:  c.LogFormat,
		Level:   c.LogLevel,
	}
}

func invalid(field string, value any, reason string) error {
	return oops.Code("CONFIG_INVALID").
		With("field", field).
		With("value", value).
		Errorf("invalid %s: %s", field, reason)
}
