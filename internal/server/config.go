// Package server provides configuration helpers that define runtime defaults,
// validation, and the options file loader for the relay.
package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPort                = 8463
	defaultStaticDir           = "static"
	defaultRegistrationTimeout = 5 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultLogFormat           = "text"
	optionsFileName            = "options"
)

// Config holds the relay settings. Everything comes from the options file;
// the process reads no environment variables or flags.
type Config struct {
	Port                int
	Verbose             bool
	StaticDir           string
	RegistrationTimeout time.Duration
	AllowedOrigins      []string
	TrustProxy          bool
	LogFormat           string
	ShutdownTimeout     time.Duration
}

func defaultConfig() Config {
	return Config{
		Port:                defaultPort,
		Verbose:             false,
		StaticDir:           defaultStaticDir,
		RegistrationTimeout: defaultRegistrationTimeout,
		AllowedOrigins:      []string{"*"},
		TrustProxy:          true,
		LogFormat:           defaultLogFormat,
		ShutdownTimeout:     defaultShutdownTimeout,
	}
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaultPort
	}

	if strings.TrimSpace(cfg.StaticDir) == "" {
		cfg.StaticDir = defaultStaticDir
	}

	if cfg.RegistrationTimeout <= 0 {
		cfg.RegistrationTimeout = defaultRegistrationTimeout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.LogFormat != "json" {
		cfg.LogFormat = defaultLogFormat
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// LoadConfig reads the options file (options.yaml, .json or .toml) from the
// given directories, or from "." and "./config" when none are given. A
// missing file is not an error: the defaults apply.
func LoadConfig(searchPaths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(optionsFileName)
	if len(searchPaths) == 0 {
		searchPaths = []string{".", "./config"}
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read options file: %w", err)
		}
	}

	cfg := Config{
		Port:                v.GetInt("port"),
		Verbose:             v.GetBool("verbose"),
		StaticDir:           v.GetString("static_dir"),
		RegistrationTimeout: v.GetDuration("registration_timeout"),
		AllowedOrigins:      v.GetStringSlice("allowed_origins"),
		TrustProxy:          v.GetBool("trust_proxy"),
		LogFormat:           v.GetString("log_format"),
		ShutdownTimeout:     v.GetDuration("shutdown_timeout"),
	}
	return sanitizeConfig(cfg), nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig()
	v.SetDefault("port", d.Port)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("static_dir", d.StaticDir)
	v.SetDefault("registration_timeout", d.RegistrationTimeout)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("trust_proxy", d.TrustProxy)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
}
