// Package authcode stores the records bound to issued authorization codes and
// provides the single-use consumption that the token endpoint relies on.
package authcode

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const codeGenerationLength = 32

// ExpiredRetention is how long a store keeps a record past its expiry, so a
// late exchange is reported as expired rather than unknown.
const ExpiredRetention = 5 * time.Minute

var (
	ErrNotFound    = errors.New("authorization code not found")
	ErrAlreadyUsed = errors.New("authorization code already used")
	ErrNilDetails  = errors.New("authorization code details are nil")
	ErrEmptyCode   = errors.New("authorization code is empty")
)

// ResponseType records which authorization response the code was issued for.
// It decides whether the token endpoint also returns an ID token.
type ResponseType string

const (
	// Code is the plain authorization code flow: only an access token is issued.
	Code ResponseType = "code"

	// CodeAndIDToken is the OIDC hybrid "code id_token" flow: the token
	// endpoint issues an ID token alongside the access token.
	CodeAndIDToken ResponseType = "code id_token"
)

// ParseResponseType accepts the response_type parameter value in any token order.
func ParseResponseType(s string) (ResponseType, error) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 1 && fields[0] == "code":
		return Code, nil
	case len(fields) == 2 && containsAll(fields, "code", "id_token"):
		return CodeAndIDToken, nil
	}
	return "", errors.Errorf("unsupported response type %q", s)
}

func containsAll(fields []string, want ...string) bool {
	for _, w := range want {
		found := false
		for _, f := range fields {
			if f == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Details is the record bound to an issued authorization code.
type Details struct {
	Code         string       `json:"code"`
	ClientID     string       `json:"client_id"`
	RedirectURI  string       `json:"redirect_uri"`
	ResponseType ResponseType `json:"response_type"`
	Subject      string       `json:"sub"`
	TenantID     string       `json:"tenant_id,omitempty"`
	Scope        string       `json:"scope,omitempty"`
	Nonce        string       `json:"nonce,omitempty"`
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Used         bool         `json:"used"`
}

// WantsIDToken reports whether an ID token must accompany the access token.
func (d *Details) WantsIDToken() bool {
	return d.ResponseType == CodeAndIDToken
}

func (d *Details) validate() error {
	if d == nil {
		return ErrNilDetails
	}
	if strings.TrimSpace(d.Code) == "" {
		return ErrEmptyCode
	}
	if d.ClientID == "" {
		return errors.New("authorization code client id is empty")
	}
	switch d.ResponseType {
	case Code, CodeAndIDToken:
	default:
		return errors.Errorf("unsupported response type %q", d.ResponseType)
	}
	return nil
}

// Store persists authorization codes.
//
// DetailsFor returns the record whether or not the code has been used.
// Consume marks the code used and returns its record; it must be atomic so
// that at most one caller succeeds for a given code. Both return ErrNotFound
// for unknown codes and Consume returns ErrAlreadyUsed on a second use.
type Store interface {
	Save(ctx context.Context, details *Details) error
	DetailsFor(ctx context.Context, code string) (*Details, error)
	Consume(ctx context.Context, code string) (*Details, error)
	DeleteExpired(ctx context.Context, now time.Time) error
	Close() error
}

// Generate returns a new random authorization code value.
func Generate() (string, error) {
	bytes := make([]byte, codeGenerationLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "[authcode.Generate] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// IssueRequest describes a code to be issued by Issue.
type IssueRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType ResponseType
	Subject      string
	TenantID     string
	Scope        string
	Nonce        string
	TTL          time.Duration
}

// Issue generates a code for the request, saves it and returns the stored record.
func Issue(ctx context.Context, store Store, req IssueRequest, now time.Time) (*Details, error) {
	if req.TTL <= 0 {
		return nil, errors.New("[authcode.Issue] ttl must be positive")
	}
	code, err := Generate()
	if err != nil {
		return nil, err
	}
	details := &Details{
		Code:         code,
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		ResponseType: req.ResponseType,
		Subject:      req.Subject,
		TenantID:     req.TenantID,
		Scope:        req.Scope,
		Nonce:        req.Nonce,
		IssuedAt:     now,
		ExpiresAt:    now.Add(req.TTL),
	}
	if err := store.Save(ctx, details); err != nil {
		return nil, errors.Wrap(err, "[authcode.Issue] Save")
	}
	return details, nil
}
