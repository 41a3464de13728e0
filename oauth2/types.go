package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: Standard Authorization Code Flow
	// Token request includes: code, client_id, client_secret, redirect_uri
	// Returns: access_token, and id_token when the code was issued for "code id_token"
	AuthorizationCodeGrant GrantType = "authorization_code"
)

// ErrorCode is one of the standardized RFC 6749 §5.2 error values returned in
// the "error" member of a token endpoint error response.
type ErrorCode string

const (
	// ErrorInvalidRequest indicates a malformed request (missing parameter, bad encoding).
	ErrorInvalidRequest ErrorCode = "invalid_request"

	// ErrorInvalidClient indicates client authentication failed.
	// Usage: Returned with HTTP 401 and a WWW-Authenticate header
	ErrorInvalidClient ErrorCode = "invalid_client"

	// ErrorInvalidGrant indicates the authorization code is invalid, expired,
	// already used, or was issued to another client or redirect URI.
	ErrorInvalidGrant ErrorCode = "invalid_grant"

	// ErrorUnsupportedGrantType indicates the grant type is not supported by this server.
	ErrorUnsupportedGrantType ErrorCode = "unsupported_grant_type"

	// ErrorServerError is used for failures that are not the client's fault.
	ErrorServerError ErrorCode = "server_error"
)

// AccessToken is an issued access token value. Opaque to the exchange.
type AccessToken string

// IDToken is an issued OpenID Connect identity token value.
type IDToken string

// AccessTokenRequest holds the normalized parameters of a token request.
// It is built by the HTTP layer from the form body and/or Basic credentials.
type AccessTokenRequest struct {
	// GrantType is the requested grant.
	// Required: Yes
	// Example: "authorization_code" (only supported value)
	GrantType GrantType

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes
	// Example: "web-app-client"
	ClientID string

	// ClientSecret is the secret credential for the client.
	// Required: Yes
	// Security: Never log or expose this value
	ClientSecret string

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes
	// Example: "SplxlOBeZQQYbYS6WxSbIA"
	// Usage: Exchanged once for tokens, then becomes invalid
	Code string

	// RedirectURI must be identical to the redirect_uri bound to the code.
	// Required: Yes
	// Example: "https://myapp.com/callback"
	RedirectURI string
}
