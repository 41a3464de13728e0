package exchange

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/pkg/errors"
)

// AccessTokenError is a token request failure classified by its RFC 6749 §5.2
// error code. The set of implementations is closed to this package.
type AccessTokenError interface {
	error
	ErrorCode() oauth2.ErrorCode
	Description() string
	accessTokenError()
}

var (
	_ AccessTokenError = UnsupportedGrantTypeError{}
	_ AccessTokenError = InvalidClientCredentialsError{}
	_ AccessTokenError = AuthorizationCodeNotFoundError{}
	_ AccessTokenError = AuthorizationCodeExpiredError{}
	_ AccessTokenError = InvalidClientIDError{}
	_ AccessTokenError = InvalidRedirectURIError{}
	_ AccessTokenError = AuthorizationCodeAlreadyUsedError{}
)

func formatError(code oauth2.ErrorCode, description string) string {
	return fmt.Sprintf("%s: %s", code, description)
}

// UnsupportedGrantTypeError carries the grant type the client asked for.
type UnsupportedGrantTypeError struct {
	GrantType oauth2.GrantType
}

func (e UnsupportedGrantTypeError) ErrorCode() oauth2.ErrorCode {
	return oauth2.ErrorUnsupportedGrantType
}

func (e UnsupportedGrantTypeError) Description() string {
	return fmt.Sprintf("grant type %q is not supported", e.GrantType)
}

func (e UnsupportedGrantTypeError) Error() string {
	return formatError(e.ErrorCode(), e.Description())
}

func (UnsupportedGrantTypeError) accessTokenError() {}

// InvalidClientCredentialsError is the only client authentication failure.
type InvalidClientCredentialsError struct{}

func (e InvalidClientCredentialsError) ErrorCode() oauth2.ErrorCode {
	return oauth2.ErrorInvalidClient
}

func (e InvalidClientCredentialsError) Description() string {
	return "client authentication failed"
}

func (e InvalidClientCredentialsError) Error() string {
	return formatError(e.ErrorCode(), e.Description())
}

func (InvalidClientCredentialsError) accessTokenError() {}

// AuthorizationCodeNotFoundError is returned when the code store has no record of the code.
type AuthorizationCodeNotFoundError struct{}

func (e AuthorizationCodeNotFoundError) ErrorCode() oauth2.ErrorCode {
	return oauth2.ErrorInvalidGrant
}

func (e AuthorizationCodeNotFoundError) Description() string {
	return "authorization code is invalid"
}

func (e AuthorizationCodeNotFoundError) Error() string {
	return formatError(e.ErrorCode(), e.Description())
}

func (AuthorizationCodeNotFoundError) accessTokenError() {}

type AuthorizationCodeExpiredError struct{}

func (e AuthorizationCodeExpiredError) ErrorCode() oauth2.ErrorCode {
	return oauth2.ErrorInvalidGrant
}

func (e AuthorizationCodeExpiredError) Description() string {
	return "authorization code has expired"
}

func (e AuthorizationCodeExpiredError) Error() string {
	return formatError(e.ErrorCode(), e.Description())
}

func (AuthorizationCodeExpiredError) accessTokenError() {}

// InvalidClientIDError means the code was issued to a different client.
type InvalidClientIDError struct{}

func (e InvalidClientIDError) ErrorCode() oauth2.ErrorCode {
	return oauth2.ErrorInvalidGrant
}

func (e InvalidClientIDError) Description() string {
	return "authorization code was not issued to this client"
}

func (e InvalidClientIDError) Error() string {
	return formatError(e.ErrorCode(), e.Description())
}

func (InvalidClientIDError) accessTokenError() {}

type InvalidRedirectURIError struct{}

func (e InvalidRedirectURIError) ErrorCode() oauth2.ErrorCode {
	return oauth2.ErrorInvalidGrant
}

func (e InvalidRedirectURIError) Description() string {
	return "redirect_uri does not match the authorization request"
}

func (e InvalidRedirectURIError) Error() string {
	return formatError(e.ErrorCode(), e.Description())
}

func (InvalidRedirectURIError) accessTokenError() {}

// AuthorizationCodeAlreadyUsedError is raised by access token issuers when a
// code has already been exchanged.
type AuthorizationCodeAlreadyUsedError struct{}

func (e AuthorizationCodeAlreadyUsedError) ErrorCode() oauth2.ErrorCode {
	return oauth2.ErrorInvalidGrant
}

func (e AuthorizationCodeAlreadyUsedError) Description() string {
	return "authorization code has already been used"
}

func (e AuthorizationCodeAlreadyUsedError) Error() string {
	return formatError(e.ErrorCode(), e.Description())
}

func (AuthorizationCodeAlreadyUsedError) accessTokenError() {}

// AsAccessTokenError finds the first AccessTokenError in err's chain.
func AsAccessTokenError(err error) (AccessTokenError, bool) {
	var tokenErr AccessTokenError
	if errors.As(err, &tokenErr) {
		return tokenErr, true
	}
	return nil, false
}

// HTTPStatus maps an exchange failure to the status a token endpoint should
// answer with: 401 for invalid_client, 400 for every other classified failure
// and 500 for anything unclassified.
func HTTPStatus(err error) int {
	tokenErr, ok := AsAccessTokenError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if tokenErr.ErrorCode() == oauth2.ErrorInvalidClient {
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}
