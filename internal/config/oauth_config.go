package config

import "time"

type OAuthConfig interface {
	GetAudience() string
	GetAuthCodeTimeout() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetIDTokenExpiry() time.Duration
	GetCodeCleanupInterval() time.Duration
}

type OAuth struct {
	Audience            string        `env:"AUDIENCE" envDefault:"api"`
	AuthCodeTimeout     time.Duration `env:"AUTH_CODE_TIMEOUT" envDefault:"10m"`
	AccessTokenExpiry   time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	IDTokenExpiry       time.Duration `env:"ID_TOKEN_EXPIRY" envDefault:"1h"`
	CodeCleanupInterval time.Duration `env:"CODE_CLEANUP_INTERVAL" envDefault:"1m"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetAudience() string {
	return o.Audience
}

func (o OAuth) GetAuthCodeTimeout() time.Duration {
	return o.AuthCodeTimeout
}

func (o OAuth) GetAccessTokenExpiry() time.Duration {
	return o.AccessTokenExpiry
}

func (o OAuth) GetIDTokenExpiry() time.Duration {
	return o.IDTokenExpiry
}

func (o OAuth) GetCodeCleanupInterval() time.Duration {
	return o.CodeCleanupInterval
}
