package authcode_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-exchange/authcode"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newDetails(code string, now time.Time) *authcode.Details {
	return &authcode.Details{
		Code:         code,
		ClientID:     "client-1",
		RedirectURI:  "http://localhost:3000/callback",
		ResponseType: authcode.CodeAndIDToken,
		Subject:      "user-1",
		TenantID:     "tenant-1",
		Scope:        "openid profile",
		Nonce:        "nonce-1",
		IssuedAt:     now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}
}

// runStoreSuite exercises the behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, store authcode.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("save and look up", func(t *testing.T) {
		d := newDetails("code-lookup", now)
		require.NoError(t, store.Save(ctx, d))

		got, err := store.DetailsFor(ctx, "code-lookup")
		require.NoError(t, err)
		require.Equal(t, d.ClientID, got.ClientID)
		require.Equal(t, d.RedirectURI, got.RedirectURI)
		require.Equal(t, d.ResponseType, got.ResponseType)
		require.Equal(t, d.Subject, got.Subject)
		require.Equal(t, d.TenantID, got.TenantID)
		require.Equal(t, d.Scope, got.Scope)
		require.Equal(t, d.Nonce, got.Nonce)
		require.True(t, d.ExpiresAt.Equal(got.ExpiresAt))
		require.True(t, d.IssuedAt.Equal(got.IssuedAt))
		require.False(t, got.Used)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := store.DetailsFor(ctx, "does-not-exist")
		require.True(t, errors.Is(err, authcode.ErrNotFound))

		_, err = store.Consume(ctx, "does-not-exist")
		require.True(t, errors.Is(err, authcode.ErrNotFound))
	})

	t.Run("invalid details are rejected", func(t *testing.T) {
		require.Error(t, store.Save(ctx, nil))
		require.Error(t, store.Save(ctx, newDetails("", now)))

		d := newDetails("code-bad-type", now)
		d.ResponseType = "token"
		require.Error(t, store.Save(ctx, d))
	})

	t.Run("consume is single use", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newDetails("code-consume", now)))

		got, err := store.Consume(ctx, "code-consume")
		require.NoError(t, err)
		require.Equal(t, "client-1", got.ClientID)
		require.True(t, got.Used)

		_, err = store.Consume(ctx, "code-consume")
		require.True(t, errors.Is(err, authcode.ErrAlreadyUsed))

		// A used code is still visible so that a replay can be told apart from an unknown code.
		got, err = store.DetailsFor(ctx, "code-consume")
		require.NoError(t, err)
		require.True(t, got.Used)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newDetails("code-race", now)))

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			replays   atomic.Int32
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Consume(ctx, "code-race")
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, authcode.ErrAlreadyUsed):
					replays.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), successes.Load())
		require.Equal(t, int32(9), replays.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	store := authcode.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	runStoreSuite(t, store)

	t.Run("delete expired", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now()
		old := newDetails("code-old", now.Add(-time.Hour))
		require.NoError(t, store.Save(ctx, old))
		require.NoError(t, store.Save(ctx, newDetails("code-fresh", now)))

		require.NoError(t, store.DeleteExpired(ctx, now))

		_, err := store.DetailsFor(ctx, "code-old")
		require.True(t, errors.Is(err, authcode.ErrNotFound))
		_, err = store.DetailsFor(ctx, "code-fresh")
		require.NoError(t, err)
	})

	t.Run("returned details are copies", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, newDetails("code-copy", time.Now())))

		got, err := store.DetailsFor(ctx, "code-copy")
		require.NoError(t, err)
		got.ClientID = "tampered"

		again, err := store.DetailsFor(ctx, "code-copy")
		require.NoError(t, err)
		require.Equal(t, "client-1", again.ClientID)
	})
}

func TestSQLiteStore(t *testing.T) {
	store, err := authcode.OpenSQLiteStore(filepath.Join(t.TempDir(), "codes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreSuite(t, store)

	t.Run("delete expired", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now()
		require.NoError(t, store.Save(ctx, newDetails("sqlite-old", now.Add(-time.Hour))))
		require.NoError(t, store.Save(ctx, newDetails("sqlite-fresh", now)))

		require.NoError(t, store.DeleteExpired(ctx, now))

		_, err := store.DetailsFor(ctx, "sqlite-old")
		require.True(t, errors.Is(err, authcode.ErrNotFound))
		_, err = store.DetailsFor(ctx, "sqlite-fresh")
		require.NoError(t, err)
	})
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.db")
	ctx := context.Background()

	store, err := authcode.OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, newDetails("persisted", time.Now())))
	require.NoError(t, store.Close())

	store, err = authcode.OpenSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	got, err := store.DetailsFor(ctx, "persisted")
	require.NoError(t, err)
	require.Equal(t, "client-1", got.ClientID)
}

func TestOpenSQLiteStore_RequiresPath(t *testing.T) {
	_, err := authcode.OpenSQLiteStore("  ")
	require.Error(t, err)
}

func setupRedis(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Failed to setup Redis container: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return addr
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	addr := setupRedis(t)

	store, err := authcode.NewStore(authcode.StoreConfig{
		Type:  authcode.StoreTypeRedis,
		Redis: authcode.RedisOptions{Addr: addr},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runStoreSuite(t, store)

	t.Run("expired codes remain visible until retention ends", func(t *testing.T) {
		ctx := context.Background()
		d := newDetails("redis-expired", time.Now().Add(-time.Hour))
		d.ExpiresAt = time.Now().Add(-time.Second)
		require.NoError(t, store.Save(ctx, d))

		got, err := store.DetailsFor(ctx, "redis-expired")
		require.NoError(t, err)
		require.False(t, got.ExpiresAt.After(time.Now()))
	})
}
