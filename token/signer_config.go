package token

import (
	"strings"

	"github.com/pkg/errors"
)

// SignerType names a supported JWS algorithm.
type SignerType string

const (
	SignerTypeHS256 SignerType = "HS256"
	SignerTypeRS256 SignerType = "RS256"
	SignerTypeES256 SignerType = "ES256"

	minHMACSecretLength = 32
)

// SignerConfig describes the signing key. Asymmetric signers load
// PrivateKeyFile when set and otherwise generate a key that lives as long as
// the process.
type SignerConfig struct {
	Type           SignerType
	Secret         string
	KeyID          string
	PrivateKeyFile string
}

// NewSignerFromConfig builds the Signer described by cfg.
func NewSignerFromConfig(cfg SignerConfig) (Signer, error) {
	switch SignerType(strings.ToUpper(string(cfg.Type))) {
	case SignerTypeHS256:
		if len(cfg.Secret) < minHMACSecretLength {
			return nil, errors.Errorf("[NewSignerFromConfig] HS256 secret must be at least %d bytes", minHMACSecretLength)
		}
		return NewHMACSigner(cfg.Secret), nil

	case SignerTypeRS256, SignerTypeES256:
		keyPair, err := keyPairFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		if keyPair.Algorithm != strings.ToUpper(string(cfg.Type)) {
			return nil, errors.Errorf("[NewSignerFromConfig] key in %s is %s, not %s", cfg.PrivateKeyFile, keyPair.Algorithm, cfg.Type)
		}
		return NewKeyPairSigner(keyPair), nil

	default:
		return nil, errors.Errorf("[NewSignerFromConfig] unsupported signer type: %s", cfg.Type)
	}
}

func keyPairFromConfig(cfg SignerConfig) (*KeyPair, error) {
	if cfg.KeyID == "" {
		return nil, errors.New("[NewSignerFromConfig] key id is required")
	}
	if cfg.PrivateKeyFile != "" {
		keyPair, err := LoadKeyPairFromFile(cfg.KeyID, cfg.PrivateKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "[NewSignerFromConfig]")
		}
		return keyPair, nil
	}
	if SignerType(strings.ToUpper(string(cfg.Type))) == SignerTypeES256 {
		return GenerateECDSAKeyPair(cfg.KeyID)
	}
	return GenerateRSAKeyPair(cfg.KeyID, 2048)
}
