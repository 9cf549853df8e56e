package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Schema is applied on startup; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sites (
  id         BIGSERIAL PRIMARY KEY,
  url        TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS checks (
  id               BIGSERIAL PRIMARY KEY,
  site_id          BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
  ok               BOOLEAN NOT NULL,
  status_code      INTEGER NULL,
  response_time_ms DOUBLE PRECISION NULL,
  checked_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_checks_site_time ON checks (site_id, checked_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres_store_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- SiteStore ----

func (s *Store) UpsertSite(ctx context.Context, rawURL string) (*domain.Site, error) {
	u, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	var site domain.Site
	err = s.pool.QueryRow(ctx,
		`INSERT INTO sites (url, created_at)
		 VALUES ($1, now())
		 ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		 RETURNING id, url, created_at`, u,
	).Scan(&site.ID, &site.URL, &site.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert site: %w", err)
	}
	site.CreatedAt = site.CreatedAt.UTC()
	return &site, nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, created_at
		   FROM sites
		  ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	out := []domain.Site{}
	for rows.Next() {
		var site domain.Site
		if err := rows.Scan(&site.ID, &site.URL, &site.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		site.CreatedAt = site.CreatedAt.UTC()
		out = append(out, site)
	}
	return out, rows.Err()
}

func (s *Store) GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	var site domain.Site
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, created_at FROM sites WHERE id = $1`, int64(id),
	).Scan(&site.ID, &site.URL, &site.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.SiteNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	site.CreatedAt = site.CreatedAt.UTC()
	return &site, nil
}

func (s *Store) DeleteSite(ctx context.Context, id domain.SiteID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sites WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.SiteNotFound(id)
	}
	return nil
}

// ---- CheckStore ----

func (s *Store) RecordCheck(ctx context.Context, id domain.SiteID, o domain.CheckOutcome) (*domain.Check, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO checks (site_id, ok, status_code, response_time_ms, checked_at)
		 SELECT $1::bigint, $2::boolean, $3::integer, $4::double precision, clock_timestamp()
		  WHERE EXISTS (SELECT 1 FROM sites WHERE id = $1::bigint)
		 RETURNING id, site_id, ok, status_code, response_time_ms, checked_at`,
		int64(id), o.OK, o.StatusCode, o.ResponseTimeMS)
	c, err := scanCheck(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		`SELECT id, site_id, ok, status_code, response_time_ms, checked_at
		   FROM checks
		  WHERE site_id = $1
		  ORDER BY checked_at DESC, id DESC
		  LIMIT $2`, int64(id), repo.ClampLimit(limit))
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

func scanCheck(row pgx.Row) (*domain.Check, error) {
	var c domain.Check
	if err := row.Scan(&c.ID, &c.SiteID, &c.OK, &c.StatusCode, &c.ResponseTimeMS, &c.CheckedAt); err != nil {
		return nil, err
	}
	c.CheckedAt = c.CheckedAt.UTC()
	return &c, nil
}
