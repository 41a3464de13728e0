package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-exchange/authcode"
	"github.com/jrsteele09/go-token-exchange/exchange"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	"github.com/jrsteele09/go-token-exchange/internal/metrics"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/stretchr/testify/require"
)

const clientsYAML = `clients:
  - id: cli-client
    secret: cli-secret
    redirectURIs: [https://cli.example.com/callback]
`

func TestBuildServer(t *testing.T) {
	clientsFile := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(clientsFile, []byte(clientsYAML), 0o600))

	cfg, err := config.LoadFromMap(map[string]string{
		"SIGNER_TYPE":    "HS256",
		"SIGNING_SECRET": "0123456789abcdef0123456789abcdef",
		"CLIENTS_FILE":   clientsFile,
	})
	require.NoError(t, err)

	store := authcode.NewMemoryStore()
	handler, collector, err := buildServer(cfg, store)
	require.NoError(t, err)
	require.NotNil(t, collector)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("exchange seeded client", func(t *testing.T) {
		details, err := authcode.Issue(context.Background(), store, authcode.IssueRequest{
			ClientID:     "cli-client",
			RedirectURI:  "https://cli.example.com/callback",
			ResponseType: authcode.Code,
			TTL:          time.Minute,
		}, time.Now())
		require.NoError(t, err)

		form := url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {details.Code},
			"redirect_uri":  {"https://cli.example.com/callback"},
			"client_id":     {"cli-client"},
			"client_secret": {"cli-secret"},
		}
		req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, rec.Body.String())
	})
}

func TestBuildServerMissingClientsFile(t *testing.T) {
	cfg, err := config.LoadFromMap(map[string]string{
		"SIGNER_TYPE":    "HS256",
		"SIGNING_SECRET": "0123456789abcdef0123456789abcdef",
		"CLIENTS_FILE":   filepath.Join(t.TempDir(), "missing.yaml"),
	})
	require.NoError(t, err)

	_, _, err = buildServer(cfg, authcode.NewMemoryStore())
	require.Error(t, err)
}

func TestPurgeExpiredCodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := authcode.NewMemoryStore()
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, &authcode.Details{
		Code:         "stale",
		ClientID:     "cli-client",
		ResponseType: authcode.Code,
		IssuedAt:     past,
		ExpiresAt:    past.Add(time.Minute),
	}))

	done := make(chan struct{})
	go func() {
		purgeExpiredCodes(ctx, store, 10*time.Millisecond, metrics.NewCollector())
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := store.DetailsFor(ctx, "stale")
		return err == authcode.ErrNotFound
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purge loop did not stop after cancel")
	}
}

func TestPurgeKeepsRecentlyExpiredCodes(t *testing.T) {
	clientsFile := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(clientsFile, []byte(clientsYAML), 0o600))
	cfg, err := config.LoadFromMap(map[string]string{
		"SIGNER_TYPE":    "HS256",
		"SIGNING_SECRET": "0123456789abcdef0123456789abcdef",
		"CLIENTS_FILE":   clientsFile,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := authcode.NewMemoryStore()
	handler, collector, err := buildServer(cfg, store)
	require.NoError(t, err)

	details, err := authcode.Issue(ctx, store, authcode.IssueRequest{
		ClientID:     "cli-client",
		RedirectURI:  "https://cli.example.com/callback",
		ResponseType: authcode.Code,
		TTL:          30 * time.Millisecond,
	}, time.Now())
	require.NoError(t, err)

	go purgeExpiredCodes(ctx, store, 10*time.Millisecond, collector)
	time.Sleep(100 * time.Millisecond)

	_, err = store.DetailsFor(ctx, details.Code)
	require.NoError(t, err)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {details.Code},
		"redirect_uri":  {"https://cli.example.com/callback"},
		"client_id":     {"cli-client"},
		"client_secret": {"cli-secret"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body oauth2.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, oauth2.ErrorInvalidGrant, body.Error)
	require.Equal(t, exchange.AuthorizationCodeExpiredError{}.Description(), body.ErrorDescription)
}
