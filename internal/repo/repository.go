package repo

import (
	"context"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// Ports (interfaces) implemented by the memory, sqlite and postgres adapters.

type SiteStore interface {
	// UpsertSite normalizes rawURL and returns the existing site for it, or
	// creates one. Invalid URLs yield a *domain.ValidationError.
	UpsertSite(ctx context.Context, rawURL string) (*domain.Site, error)
	// ListSites returns all sites, most recently created first.
	ListSites(ctx context.Context) ([]domain.Site, error)
	GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error)
	// DeleteSite removes a site and all of its checks.
	DeleteSite(ctx context.Context, id domain.SiteID) error
}

type CheckStore interface {
	// RecordCheck appends a check stamped with the current time. Unknown
	// sites yield a *domain.NotFoundError.
	RecordCheck(ctx context.Context, id domain.SiteID, o domain.CheckOutcome) (*domain.Check, error)
	// ListRecentChecks returns up to limit checks for a site, newest first.
	ListRecentChecks(ctx context.Context, id domain.SiteID, limit int) ([]domain.Check, error)
}

type Store interface {
	SiteStore
	CheckStore
	Close() error
}

// ClampLimit bounds a history limit to (0, domain.HistoryLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > domain.HistoryLimit {
		return domain.HistoryLimit
	}
	return limit
}
