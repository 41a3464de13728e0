package authcode

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-exchange/authcode/migrations"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists codes in a single SQLite table. Consumption is a
// conditional UPDATE, so concurrent exchanges of one code see exactly one winner.
type SQLiteStore struct {
	db *sql.DB
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLiteStore opens the database at path and applies the bundled migrations.
// The path ":memory:" opens a private in-memory database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("[OpenSQLiteStore] storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[OpenSQLiteStore] open sqlite db")
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[OpenSQLiteStore] ping sqlite db")
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[OpenSQLiteStore] run migrations")
	}
	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`,
	); err != nil {
		return err
	}

	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name,
		).Scan(&applied); err != nil {
			return err
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return err
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "apply %s", name)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, details *Details) error {
	if err := details.validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authorization_codes
		(code, client_id, redirect_uri, response_type, subject, tenant_id, scope, nonce, issued_at, expires_at, used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			client_id = excluded.client_id,
			redirect_uri = excluded.redirect_uri,
			response_type = excluded.response_type,
			subject = excluded.subject,
			tenant_id = excluded.tenant_id,
			scope = excluded.scope,
			nonce = excluded.nonce,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at,
			used = excluded.used`,
		details.Code, details.ClientID, details.RedirectURI, string(details.ResponseType),
		details.Subject, details.TenantID, details.Scope, details.Nonce,
		toMillis(details.IssuedAt), toMillis(details.ExpiresAt), boolToInt(details.Used),
	)
	if err != nil {
		return errors.Wrap(err, "[SQLiteStore.Save] insert")
	}
	return nil
}

func (s *SQLiteStore) DetailsFor(ctx context.Context, code string) (*Details, error) {
	var (
		details      Details
		responseType string
		issuedAt     int64
		expiresAt    int64
		used         int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT code, client_id, redirect_uri, response_type, subject, tenant_id, scope, nonce, issued_at, expires_at, used
		FROM authorization_codes WHERE code = ?`,
		code,
	).Scan(
		&details.Code, &details.ClientID, &details.RedirectURI, &responseType,
		&details.Subject, &details.TenantID, &details.Scope, &details.Nonce,
		&issuedAt, &expiresAt, &used,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "[SQLiteStore.DetailsFor] select")
	}
	details.ResponseType = ResponseType(responseType)
	details.IssuedAt = fromMillis(issuedAt)
	details.ExpiresAt = fromMillis(expiresAt)
	details.Used = used != 0
	return &details, nil
}

func (s *SQLiteStore) Consume(ctx context.Context, code string) (*Details, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE authorization_codes SET used = 1 WHERE code = ? AND used = 0`,
		code,
	)
	if err != nil {
		return nil, errors.Wrap(err, "[SQLiteStore.Consume] update")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "[SQLiteStore.Consume] rows affected")
	}

	details, err := s.DetailsFor(ctx, code)
	if err != nil {
		return nil, err
	}
	if rows != 1 {
		return nil, ErrAlreadyUsed
	}
	return details, nil
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at <= ?`, toMillis(now),
	); err != nil {
		return errors.Wrap(err, "[SQLiteStore.DeleteExpired] delete")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
