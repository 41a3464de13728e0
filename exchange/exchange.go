// Package exchange implements the authorization_code grant exchange: it
// validates a token request against the stored authorization code and issues
// an access token, plus an ID token for "code id_token" codes.
package exchange

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-exchange/authcode"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/pkg/errors"
)

// ClientValidator checks a client's credentials.
type ClientValidator interface {
	ValidateCredentials(ctx context.Context, clientID, clientSecret string) (bool, error)
}

// AuthorizationCodeStore looks up the record bound to an authorization code.
// A missing code must be reported as authcode.ErrNotFound.
type AuthorizationCodeStore interface {
	DetailsFor(ctx context.Context, code string) (*authcode.Details, error)
}

// AccessTokenIssuer creates the access token for a code. It is responsible for
// single use and reports a consumed code as AuthorizationCodeAlreadyUsedError.
type AccessTokenIssuer interface {
	Create(ctx context.Context, code string) (oauth2.AccessToken, error)
}

// IDTokenIssuer creates the ID token that accompanies an access token.
type IDTokenIssuer interface {
	CreateForAccessToken(ctx context.Context, code string) (oauth2.IDToken, error)
}

// Collaborators holds the dependencies of the Exchange.
type Collaborators struct {
	Clients      ClientValidator        // Client credential validation
	Codes        AuthorizationCodeStore // Authorization code lookup
	AccessTokens AccessTokenIssuer      // Access token creation
	IDTokens     IDTokenIssuer          // ID token creation
}

// AccessTokenDetails is the result of a successful exchange.
type AccessTokenDetails struct {
	AccessToken oauth2.AccessToken
	IDToken     *oauth2.IDToken // Set only for codes issued with response type "code id_token"
}

// HasIDToken reports whether an ID token was issued.
func (d *AccessTokenDetails) HasIDToken() bool {
	return d != nil && d.IDToken != nil
}

// Exchange evaluates authorization_code token requests. It holds no mutable
// state and is safe for concurrent use.
type Exchange struct {
	collaborators Collaborators
	nowTime       func() time.Time // injectable for testing
}

// Option modifies an Exchange.
type Option func(*Exchange)

// WithNowTime sets the clock used by Token.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(e *Exchange) {
		e.nowTime = nowFunc
	}
}

// NewExchange creates an Exchange. All collaborators are required.
func NewExchange(collaborators Collaborators, options ...Option) (*Exchange, error) {
	if collaborators.Clients == nil {
		return nil, errors.New("[NewExchange] client validator is required")
	}
	if collaborators.Codes == nil {
		return nil, errors.New("[NewExchange] authorization code store is required")
	}
	if collaborators.AccessTokens == nil {
		return nil, errors.New("[NewExchange] access token issuer is required")
	}
	if collaborators.IDTokens == nil {
		return nil, errors.New("[NewExchange] id token issuer is required")
	}

	e := &Exchange{
		collaborators: collaborators,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.nowTime == nil {
		e.nowTime = time.Now
	}
	return e, nil
}

// Token evaluates the request at the current time of the configured clock.
func (e *Exchange) Token(ctx context.Context, request oauth2.AccessTokenRequest) (*AccessTokenDetails, error) {
	return e.Evaluate(ctx, request, e.nowTime())
}

// Evaluate runs the validation checks in order and stops at the first
// failure. Nothing is consumed or issued until every check has passed.
// Failures are AccessTokenError values, except errors raised by the
// collaborators themselves, which are returned unchanged.
func (e *Exchange) Evaluate(ctx context.Context, request oauth2.AccessTokenRequest, now time.Time) (*AccessTokenDetails, error) {
	if request.GrantType != oauth2.AuthorizationCodeGrant {
		return nil, UnsupportedGrantTypeError{GrantType: request.GrantType}
	}

	valid, err := e.collaborators.Clients.ValidateCredentials(ctx, request.ClientID, request.ClientSecret)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, InvalidClientCredentialsError{}
	}

	details, err := e.collaborators.Codes.DetailsFor(ctx, request.Code)
	if errors.Is(err, authcode.ErrNotFound) {
		return nil, AuthorizationCodeNotFoundError{}
	}
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, AuthorizationCodeNotFoundError{}
	}

	if !details.ExpiresAt.After(now) {
		return nil, AuthorizationCodeExpiredError{}
	}
	if details.ClientID != request.ClientID {
		return nil, InvalidClientIDError{}
	}
	if details.RedirectURI != request.RedirectURI {
		return nil, InvalidRedirectURIError{}
	}

	accessToken, err := e.collaborators.AccessTokens.Create(ctx, request.Code)
	if err != nil {
		return nil, err
	}

	if !details.WantsIDToken() {
		return &AccessTokenDetails{AccessToken: accessToken}, nil
	}

	idToken, err := e.collaborators.IDTokens.CreateForAccessToken(ctx, request.Code)
	if err != nil {
		return nil, err
	}
	return &AccessTokenDetails{AccessToken: accessToken, IDToken: &idToken}, nil
}
