package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-token-exchange/authcode"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	LogConfig
	CorsConfig
	OAuthConfig
	SigningConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetClientsFile() string
}

type LogConfig interface {
	GetLogLevel() string
	GetLogFormat() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Logging
	Cors
	OAuth
	Signing
	Store
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFromMap reads the configuration from the given variables only.
func LoadFromMap(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	cfg := mainConfig{}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, errors.Wrap(err, "[config.Load] parse env")
	}
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "[config.Load]")
	}
	return cfg, nil
}

func (c mainConfig) validate() error {
	if _, err := authcode.ParseStoreType(c.Store.StoreType); err != nil {
		return errors.Wrap(err, "STORE_TYPE")
	}
	if c.OAuth.AuthCodeTimeout <= 0 {
		return errors.New("AUTH_CODE_TIMEOUT must be positive")
	}
	return nil
}
