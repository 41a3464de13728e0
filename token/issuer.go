// Package token signs the access and ID tokens handed out by the token endpoint.
package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-exchange/authcode"
	"github.com/jrsteele09/go-token-exchange/exchange"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/pkg/errors"
)

const (
	defaultAccessTokenExpiry = 15 * time.Minute
	defaultIDTokenExpiry     = time.Hour
)

var (
	_ exchange.AccessTokenIssuer = (*Issuer)(nil)
	_ exchange.IDTokenIssuer     = (*Issuer)(nil)
)

// Issuer creates signed JWTs for authorization codes. Creating the access
// token consumes the code, so a code yields at most one access token.
type Issuer struct {
	codes             authcode.Store
	signer            Signer
	issuer            string
	audience          string
	accessTokenExpiry time.Duration
	idTokenExpiry     time.Duration
	nowFunc           func() time.Time
}

type IssuerOption func(*Issuer)

func WithTokenExpiry(accessTokenExpiry, idTokenExpiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTokenExpiry = accessTokenExpiry
		i.idTokenExpiry = idTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

func WithAudience(audience string) IssuerOption {
	return func(i *Issuer) {
		i.audience = audience
	}
}

func NewIssuer(codes authcode.Store, signer Signer, options ...IssuerOption) (*Issuer, error) {
	if codes == nil {
		return nil, errors.New("[NewIssuer] authorization code store is required")
	}
	if signer == nil {
		return nil, errors.New("[NewIssuer] signer is required")
	}

	i := &Issuer{
		codes:  codes,
		signer: signer,
	}
	for _, opt := range options {
		opt(i)
	}

	if i.accessTokenExpiry <= 0 {
		i.accessTokenExpiry = defaultAccessTokenExpiry
	}
	if i.idTokenExpiry <= 0 {
		i.idTokenExpiry = defaultIDTokenExpiry
	}
	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	return i, nil
}

// AccessTokenExpiry is the lifetime of issued access tokens.
func (i *Issuer) AccessTokenExpiry() time.Duration {
	return i.accessTokenExpiry
}

// Create consumes the code and signs an access token for it.
func (i *Issuer) Create(ctx context.Context, code string) (oauth2.AccessToken, error) {
	details, err := i.codes.Consume(ctx, code)
	switch {
	case errors.Is(err, authcode.ErrAlreadyUsed):
		return "", exchange.AuthorizationCodeAlreadyUsedError{}
	case errors.Is(err, authcode.ErrNotFound):
		return "", exchange.AuthorizationCodeNotFoundError{}
	case err != nil:
		return "", errors.Wrap(err, "[Issuer.Create] consume code")
	}

	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":       i.issuer,
		"sub":       subjectOf(details),
		"aud":       i.audience,
		"client_id": details.ClientID,
		"iat":       now.Unix(),
		"exp":       now.Add(i.accessTokenExpiry).Unix(),
		"jti":       uuid.New().String(),
	}
	if details.TenantID != "" {
		claims["tenant"] = details.TenantID
	}
	if details.Scope != "" {
		claims["scope"] = details.Scope
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.Create] sign")
	}
	return oauth2.AccessToken(signed), nil
}

// CreateForAccessToken signs the OpenID Connect ID token for a code whose
// access token has already been created.
func (i *Issuer) CreateForAccessToken(ctx context.Context, code string) (oauth2.IDToken, error) {
	details, err := i.codes.DetailsFor(ctx, code)
	if errors.Is(err, authcode.ErrNotFound) {
		return "", exchange.AuthorizationCodeNotFoundError{}
	}
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.CreateForAccessToken] lookup code")
	}
	if !details.Used {
		return "", errors.New("[Issuer.CreateForAccessToken] access token has not been issued for code")
	}

	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss": i.issuer,
		"sub": subjectOf(details),
		"aud": details.ClientID,
		"azp": details.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(i.idTokenExpiry).Unix(),
		"jti": uuid.New().String(),
	}
	if !details.IssuedAt.IsZero() {
		claims["auth_time"] = details.IssuedAt.Unix()
	}
	if details.Nonce != "" {
		claims["nonce"] = details.Nonce
	}
	if details.TenantID != "" {
		claims["tenant"] = details.TenantID
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.CreateForAccessToken] sign")
	}
	return oauth2.IDToken(signed), nil
}

// subjectOf falls back to the client when the code was issued without a user.
func subjectOf(details *authcode.Details) string {
	if details.Subject != "" {
		return details.Subject
	}
	return details.ClientID
}
