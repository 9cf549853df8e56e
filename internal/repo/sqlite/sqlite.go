package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Fixed-width UTC layout so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS sites (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  url        TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checks (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id          INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
  ok               INTEGER NOT NULL,
  status_code      INTEGER NULL,
  response_time_ms REAL NULL,
  checked_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_site_time ON checks (site_id, checked_at DESC);
`

type Store struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// New opens (creating if needed) the database file at path and applies the
// schema. path may be ":memory:".
func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps sqlite away from SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("sqlite_store_ready", zap.String("path", path))
	return &Store{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- SiteStore ----

func (s *Store) UpsertSite(ctx context.Context, rawURL string) (*domain.Site, error) {
	u, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	// The no-op update makes RETURNING yield the existing row on conflict.
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO sites (url, created_at) VALUES (?, ?)
		 ON CONFLICT (url) DO UPDATE SET url = excluded.url
		 RETURNING id, url, created_at`,
		u, s.now().Format(timeLayout))
	site, err := scanSite(row)
	if err != nil {
		return nil, fmt.Errorf("upsert site: %w", err)
	}
	return site, nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, created_at FROM sites ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	out := []domain.Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, *site)
	}
	return out, rows.Err()
}

func (s *Store) GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, url, created_at FROM sites WHERE id = ?`, int64(id))
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.SiteNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

func (s *Store) DeleteSite(ctx context.Context, id domain.SiteID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if n == 0 {
		return domain.SiteNotFound(id)
	}
	return nil
}

// ---- CheckStore ----

func (s *Store) RecordCheck(ctx context.Context, id domain.SiteID, o domain.CheckOutcome) (*domain.Check, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	// Single statement: the row is only written if the site exists.
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO checks (site_id, ok, status_code, response_time_ms, checked_at)
		 SELECT ?, ?, ?, ?, ?
		  WHERE EXISTS (SELECT 1 FROM sites WHERE id = ?)
		 RETURNING id, site_id, ok, status_code, response_time_ms, checked_at`,
		int64(id), o.OK, o.StatusCode, o.ResponseTimeMS, s.now().Format(timeLayout), int64(id))
	c, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.SiteNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("insert check: %w", err)
	}
	return c, nil
}

func (s *Store) ListRecentChecks(ctx context.Context, id domain.SiteID, limit int) ([]domain.Check, error) {
	if _, err := s.GetSite(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, site_id, ok, status_code, response_time_ms, checked_at
		   FROM checks
		  WHERE site_id = ?
		  ORDER BY checked_at DESC, id DESC
		  LIMIT ?`, int64(id), repo.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	out := []domain.Check{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(r scanner) (*domain.Site, error) {
	var (
		id        int64
		site      domain.Site
		createdAt string
	)
	if err := r.Scan(&id, &site.URL, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	site.ID = domain.SiteID(id)
	site.CreatedAt = t
	return &site, nil
}

func scanCheck(r scanner) (*domain.Check, error) {
	var (
		c         domain.Check
		siteID    int64
		status    sql.NullInt64
		latency   sql.NullFloat64
		checkedAt string
	)
	if err := r.Scan(&c.ID, &siteID, &c.OK, &status, &latency, &checkedAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, checkedAt)
	if err != nil {
		return nil, fmt.Errorf("parse checked_at %q: %w", checkedAt, err)
	}
	c.SiteID = domain.SiteID(siteID)
	c.CheckedAt = t
	if status.Valid {
		v := int(status.Int64)
		c.StatusCode = &v
	}
	if latency.Valid {
		v := latency.Float64
		c.ResponseTimeMS = &v
	}
	return &c, nil
}
