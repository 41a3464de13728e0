package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-token-exchange/exchange"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	"github.com/jrsteele09/go-token-exchange/internal/metrics"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/jrsteele09/go-token-exchange/server"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeExchange struct {
	details  *exchange.AccessTokenDetails
	err      error
	requests []oauth2.AccessTokenRequest
	panics   bool
}

func (f *fakeExchange) Token(_ context.Context, request oauth2.AccessTokenRequest) (*exchange.AccessTokenDetails, error) {
	if f.panics {
		panic("boom")
	}
	f.requests = append(f.requests, request)
	return f.details, f.err
}

func newTestServer(t *testing.T, ex server.TokenExchanger, environment map[string]string) *server.Server {
	t.Helper()
	if environment == nil {
		environment = map[string]string{}
	}
	environment["ENV"] = "TEST"
	cfg, err := config.LoadFromMap(environment)
	require.NoError(t, err)

	srv, err := server.New(cfg, server.Dependencies{
		Exchange: ex,
		Signer:   token.NewHMACSigner("0123456789abcdef0123456789abcdef"),
		Metrics:  metrics.NewCollector(),
	})
	require.NoError(t, err)
	return srv
}

func tokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, server.RouteOAuth2Token, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"code-1"},
		"redirect_uri":  {"http://localhost:3000/callback"},
		"client_id":     {"client-1"},
		"client_secret": {"secret-1"},
	}
}

func decodeError(t *testing.T, body io.Reader) oauth2.ErrorResponse {
	t.Helper()
	var resp oauth2.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestNew_RequiresDependencies(t *testing.T) {
	cfg, err := config.LoadFromMap(map[string]string{})
	require.NoError(t, err)

	_, err = server.New(nil, server.Dependencies{})
	require.Error(t, err)
	_, err = server.New(cfg, server.Dependencies{Signer: token.NewHMACSigner("x")})
	require.Error(t, err)
	_, err = server.New(cfg, server.Dependencies{Exchange: &fakeExchange{}})
	require.Error(t, err)
}

func TestToken_SuccessWithoutIDTokenIsBareAccessToken(t *testing.T) {
	ex := &fakeExchange{details: &exchange.AccessTokenDetails{AccessToken: "access-1"}}
	srv := newTestServer(t, ex, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, tokenRequest(validForm()))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "access-1", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	require.Len(t, ex.requests, 1)
	require.Equal(t, oauth2.AccessTokenRequest{
		GrantType:    oauth2.AuthorizationCodeGrant,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Code:         "code-1",
		RedirectURI:  "http://localhost:3000/callback",
	}, ex.requests[0])
}

func TestToken_SuccessWithIDTokenIsJSON(t *testing.T) {
	idToken := oauth2.IDToken("id-1")
	ex := &fakeExchange{details: &exchange.AccessTokenDetails{AccessToken: "access-1", IDToken: &idToken}}
	srv := newTestServer(t, ex, map[string]string{"ACCESS_TOKEN_EXPIRY": "5m"})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, tokenRequest(validForm()))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var resp oauth2.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, oauth2.TokenResponse{
		AccessToken: "access-1",
		IDToken:     "id-1",
		TokenType:   "Bearer",
		ExpiresIn:   300,
	}, resp)
}

func TestToken_ExchangeErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   oauth2.ErrorCode
	}{
		{"unsupported grant", exchange.UnsupportedGrantTypeError{GrantType: "password"}, http.StatusBadRequest, oauth2.ErrorUnsupportedGrantType},
		{"invalid client", exchange.InvalidClientCredentialsError{}, http.StatusUnauthorized, oauth2.ErrorInvalidClient},
		{"not found", exchange.AuthorizationCodeNotFoundError{}, http.StatusBadRequest, oauth2.ErrorInvalidGrant},
		{"expired", exchange.AuthorizationCodeExpiredError{}, http.StatusBadRequest, oauth2.ErrorInvalidGrant},
		{"client id", exchange.InvalidClientIDError{}, http.StatusBadRequest, oauth2.ErrorInvalidGrant},
		{"redirect uri", exchange.InvalidRedirectURIError{}, http.StatusBadRequest, oauth2.ErrorInvalidGrant},
		{"already used", exchange.AuthorizationCodeAlreadyUsedError{}, http.StatusBadRequest, oauth2.ErrorInvalidGrant},
		{"infrastructure", errors.New("redis down"), http.StatusInternalServerError, oauth2.ErrorServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeExchange{err: tt.err}, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, tokenRequest(validForm()))

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			resp := decodeError(t, rec.Body)
			require.Equal(t, tt.code, resp.Error)
			require.NotContains(t, resp.ErrorDescription, "redis")

			if tt.status == http.StatusUnauthorized {
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
			} else {
				require.Empty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestToken_BasicAuthentication(t *testing.T) {
	ex := &fakeExchange{details: &exchange.AccessTokenDetails{AccessToken: "access-1"}}
	srv := newTestServer(t, ex, nil)

	form := validForm()
	form.Del("client_id")
	form.Del("client_secret")
	req := tokenRequest(form)
	req.SetBasicAuth(url.QueryEscape("client:1"), url.QueryEscape("p@ss word"))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "client:1", ex.requests[0].ClientID)
	require.Equal(t, "p@ss word", ex.requests[0].ClientSecret)
}

func TestToken_InvalidRequests(t *testing.T) {
	t.Run("missing grant type", func(t *testing.T) {
		ex := &fakeExchange{}
		srv := newTestServer(t, ex, nil)
		form := validForm()
		form.Del("grant_type")

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, tokenRequest(form))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, oauth2.ErrorInvalidRequest, decodeError(t, rec.Body).Error)
		require.Empty(t, ex.requests)
	})

	t.Run("two authentication methods", func(t *testing.T) {
		ex := &fakeExchange{}
		srv := newTestServer(t, ex, nil)
		req := tokenRequest(validForm())
		req.SetBasicAuth("client-1", "secret-1")

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, oauth2.ErrorInvalidRequest, decodeError(t, rec.Body).Error)
		require.Empty(t, ex.requests)
	})

	t.Run("malformed request wins over unsupported grant type", func(t *testing.T) {
		ex := &fakeExchange{}
		srv := newTestServer(t, ex, nil)
		form := validForm()
		form.Set("grant_type", "password")
		req := tokenRequest(form)
		req.SetBasicAuth("client-1", "secret-1")

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, oauth2.ErrorInvalidRequest, decodeError(t, rec.Body).Error)
		require.Empty(t, ex.requests)
	})

	t.Run("mismatched client ids", func(t *testing.T) {
		ex := &fakeExchange{}
		srv := newTestServer(t, ex, nil)
		form := validForm()
		form.Del("client_secret")
		req := tokenRequest(form)
		req.SetBasicAuth("client-2", "secret-1")

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, ex.requests)
	})

	t.Run("wrong method", func(t *testing.T) {
		srv := newTestServer(t, &fakeExchange{}, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteOAuth2Token, nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestToken_RecoversFromPanics(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{panics: true}, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, tokenRequest(validForm()))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, oauth2.ErrorServerError, decodeError(t, rec.Body).Error)
}

func TestCors(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{}, map[string]string{"ALLOWED_ORIGINS": "https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, server.RouteOAuth2Token, nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodOptions, server.RouteOAuth2Token, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDiscoveryAndOperationalRoutes(t *testing.T) {
	srv := newTestServer(t, &fakeExchange{err: exchange.InvalidClientIDError{}}, map[string]string{"BASE_URL": "https://auth.example.com/"})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteWellKnownOpenIDConfig, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	require.Equal(t, "https://auth.example.com", doc["issuer"])
	require.Equal(t, "https://auth.example.com/oauth2/token", doc["token_endpoint"])
	require.Equal(t, []any{"HS256"}, doc["id_token_signing_alg_values_supported"])

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteWellKnownJWKS, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"keys":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	srv.ServeHTTP(httptest.NewRecorder(), tokenRequest(validForm()))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteMetrics, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `oauth2_token_exchanges_total{error_code="invalid_grant",status="error"} 1`)
}
