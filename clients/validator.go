package clients

import (
	"context"

	"github.com/pkg/errors"
)

// CredentialValidator authenticates clients at the token endpoint against a Repo.
type CredentialValidator struct {
	repo Repo
}

func NewCredentialValidator(repo Repo) (*CredentialValidator, error) {
	if repo == nil {
		return nil, errors.New("[NewCredentialValidator] clients repo is required")
	}
	return &CredentialValidator{repo: repo}, nil
}

// ValidateCredentials returns false for unknown clients and wrong secrets.
// Public clients authenticate by id alone and must not present a secret.
// Only repository failures are returned as errors.
func (v *CredentialValidator) ValidateCredentials(ctx context.Context, clientID, clientSecret string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if clientID == "" {
		return false, nil
	}
	client, err := v.repo.Get(clientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[CredentialValidator.ValidateCredentials] get client")
	}
	if client == nil {
		return false, nil
	}
	if client.IsPublic() {
		return clientSecret == "", nil
	}
	return CheckSecret(client.SecretHash, clientSecret), nil
}
