package clients

import (
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("client not found")

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// Client is a registered OAuth2 client. Secrets are only ever held as bcrypt hashes.
type Client struct {
	ID           string     `json:"id" yaml:"id"`
	Type         ClientType `json:"type" yaml:"type"` // public or confidential
	Description  string     `json:"description" yaml:"description"`
	SecretHash   string     `json:"secretHash" yaml:"secretHash"`
	RedirectURIs []string   `json:"redirectURIs" yaml:"redirectURIs"`
	TenantID     string     `json:"tenantId" yaml:"tenantId"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasRedirectURI reports whether uri is registered for the client, compared exactly.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// Validate checks that the client record is usable.
func (c *Client) Validate() error {
	if c.ID == "" {
		return errors.New("client id is required")
	}
	switch c.Type {
	case ClientTypeConfidential:
		if c.SecretHash == "" {
			return errors.Errorf("confidential client %s has no secret", c.ID)
		}
	case ClientTypePublic:
	default:
		return errors.Errorf("client %s has unknown type %q", c.ID, c.Type)
	}
	return nil
}
