package config

import (
	"strings"

	"github.com/jrsteele09/go-token-exchange/token"
)

type SigningConfig interface {
	GetSignerConfig() token.SignerConfig
}

type Signing struct {
	SignerType     string `env:"SIGNER_TYPE" envDefault:"RS256"`
	SigningSecret  string `env:"SIGNING_SECRET"`
	SigningKeyID   string `env:"SIGNING_KEY_ID" envDefault:"default"`
	SigningKeyFile string `env:"SIGNING_KEY_FILE"`
}

var _ SigningConfig = Signing{}

func (s Signing) GetSignerConfig() token.SignerConfig {
	return token.SignerConfig{
		Type:           token.SignerType(strings.ToUpper(strings.TrimSpace(s.SignerType))),
		Secret:         s.SigningSecret,
		KeyID:          s.SigningKeyID,
		PrivateKeyFile: s.SigningKeyFile,
	}
}
