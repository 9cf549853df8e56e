package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps sites and checks in process memory. Data is lost on restart.
type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	nextID  domain.SiteID
	nextChk int64
	sites   map[domain.SiteID]*domain.Site
	byURL   map[string]domain.SiteID
	checks  map[domain.SiteID][]domain.Check
}

func New() *Store {
	return &Store{
		now:    func() time.Time { return time.Now().UTC() },
		sites:  make(map[domain.SiteID]*domain.Site),
		byURL:  make(map[string]domain.SiteID),
		checks: make(map[domain.SiteID][]domain.Check),
	}
}

// WithClock replaces the timestamp source; used by tests.
func (m *Store) WithClock(now func() time.Time) *Store {
	m.now = now
	return m
}

func (m *Store) Close() error { return nil }

// ---- SiteStore ----

func (m *Store) UpsertSite(ctx context.Context, rawURL string) (*domain.Site, error) {
	u, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byURL[u]; ok {
		s := *m.sites[id]
		return &s, nil
	}
	m.nextID++
	s := &domain.Site{ID: m.nextID, URL: u, CreatedAt: m.now()}
	m.sites[s.ID] = s
	m.byURL[u] = s.ID
	out := *s
	return &out, nil
}

func (m *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Store) GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, domain.SiteNotFound(id)
	}
	out := *s
	return &out, nil
}

func (m *Store) DeleteSite(ctx context.Context, id domain.SiteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return domain.SiteNotFound(id)
	}
	delete(m.byURL, s.URL)
	delete(m.sites, id)
	delete(m.checks, id)
	return nil
}

// ---- CheckStore ----

func (m *Store) RecordCheck(ctx context.Context, id domain.SiteID, o domain.CheckOutcome) (*domain.Check, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[id]; !ok {
		return nil, domain.SiteNotFound(id)
	}
	m.nextChk++
	c := domain.Check{
		ID:             m.nextChk,
		SiteID:         id,
		OK:             o.OK,
		StatusCode:     copyInt(o.StatusCode),
		ResponseTimeMS: copyFloat(o.ResponseTimeMS),
		CheckedAt:      m.now(),
	}
	m.checks[id] = append(m.checks[id], c)
	return &c, nil
}

func (m *Store) ListRecentChecks(ctx context.Context, id domain.SiteID, limit int) ([]domain.Check, error) {
	limit = repo.ClampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sites[id]; !ok {
		return nil, domain.SiteNotFound(id)
	}
	all := make([]domain.Check, len(m.checks[id]))
	copy(all, m.checks[id])
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CheckedAt.Equal(all[j].CheckedAt) {
			return all[i].CheckedAt.After(all[j].CheckedAt)
		}
		return all[i].ID > all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
