// Package repotest holds the behavioural suite every repo.Store adapter
// must pass.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) repo.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s repo.Store)
	}{
		{"UpsertIsIdempotent", testUpsertIdempotent},
		{"UpsertRejectsInvalidURL", testUpsertInvalid},
		{"UpsertConcurrentSameURL", testUpsertConcurrent},
		{"ListSitesNewestFirst", testListSitesOrder},
		{"GetSite", testGetSite},
		{"RecordCheck", testRecordCheck},
		{"RecordCheckUnknownSite", testRecordCheckUnknown},
		{"RecordCheckRejectsOKWithoutStatus", testRecordCheckInvariant},
		{"RecentChecksCappedNewestFirst", testRecentChecks},
		{"RecentChecksUnknownSite", testRecentChecksUnknown},
		{"DeleteSiteCascades", testDeleteCascade},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func intp(i int) *int { return &i }

func floatp(f float64) *float64 { return &f }

func testUpsertIdempotent(t *testing.T, s repo.Store) {
	ctx := context.Background()
	a, err := s.UpsertSite(ctx, "https://example.com")
	require.NoError(t, err)
	require.NotZero(t, a.ID)
	assert.Equal(t, "https://example.com", a.URL)
	assert.False(t, a.CreatedAt.IsZero())

	b, err := s.UpsertSite(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.True(t, a.CreatedAt.Equal(b.CreatedAt))

	c, err := s.UpsertSite(ctx, "https://EXAMPLE.com/")
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.ID, "normalized form matches")

	all, err := s.ListSites(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testUpsertInvalid(t *testing.T, s repo.Store) {
	ctx := context.Background()
	for _, raw := range []string{"not-a-url", "", "ftp://example.com", "https://"} {
		_, err := s.UpsertSite(ctx, raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, domain.ErrValidation), "%q: %v", raw, err)
	}
	all, err := s.ListSites(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testUpsertConcurrent(t *testing.T, s repo.Store) {
	ctx := context.Background()
	const n = 8
	ids := make([]domain.SiteID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			site, err := s.UpsertSite(ctx, "https://concurrent.example")
			if assert.NoError(t, err) {
				ids[i] = site.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := s.ListSites(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testListSitesOrder(t *testing.T, s repo.Store) {
	ctx := context.Background()
	var want []domain.SiteID
	for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		site, err := s.UpsertSite(ctx, u)
		require.NoError(t, err)
		want = append([]domain.SiteID{site.ID}, want...)
	}
	all, err := s.ListSites(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, site := range all {
		assert.Equal(t, want[i], site.ID)
	}
}

func testGetSite(t *testing.T, s repo.Store) {
	ctx := context.Background()
	site, err := s.UpsertSite(ctx, "https://get.example")
	require.NoError(t, err)

	got, err := s.GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, site.URL, got.URL)
	assert.True(t, site.CreatedAt.Equal(got.CreatedAt))

	_, err = s.GetSite(ctx, site.ID+1000)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func testRecordCheck(t *testing.T, s repo.Store) {
	ctx := context.Background()
	site, err := s.UpsertSite(ctx, "https://rec.example")
	require.NoError(t, err)

	up, err := s.RecordCheck(ctx, site.ID, domain.CheckOutcome{OK: true, StatusCode: intp(200), ResponseTimeMS: floatp(12.5)})
	require.NoError(t, err)
	assert.NotZero(t, up.ID)
	assert.Equal(t, site.ID, up.SiteID)
	assert.True(t, up.OK)
	require.NotNil(t, up.StatusCode)
	assert.Equal(t, 200, *up.StatusCode)
	require.NotNil(t, up.ResponseTimeMS)
	assert.InDelta(t, 12.5, *up.ResponseTimeMS, 1e-9)
	assert.False(t, up.CheckedAt.IsZero())

	down, err := s.RecordCheck(ctx, site.ID, domain.CheckOutcome{OK: false, ResponseTimeMS: floatp(3)})
	require.NoError(t, err)
	assert.False(t, down.OK)
	assert.Nil(t, down.StatusCode)

	hist, err := s.ListRecentChecks(ctx, site.ID, domain.HistoryLimit)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, down.ID, hist[0].ID)
	assert.Nil(t, hist[0].StatusCode)
	require.NotNil(t, hist[1].StatusCode)
	assert.Equal(t, 200, *hist[1].StatusCode)
}

func testRecordCheckUnknown(t *testing.T, s repo.Store) {
	_, err := s.RecordCheck(context.Background(), 9999, domain.CheckOutcome{OK: false, ResponseTimeMS: floatp(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func testRecordCheckInvariant(t *testing.T, s repo.Store) {
	ctx := context.Background()
	site, err := s.UpsertSite(ctx, "https://inv.example")
	require.NoError(t, err)
	_, err = s.RecordCheck(ctx, site.ID, domain.CheckOutcome{OK: true})
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
}

func testRecentChecks(t *testing.T, s repo.Store) {
	ctx := context.Background()
	site, err := s.UpsertSite(ctx, "https://hist.example")
	require.NoError(t, err)
	other, err := s.UpsertSite(ctx, "https://other.example")
	require.NoError(t, err)

	var last *domain.Check
	for i := 0; i < 25; i++ {
		last, err = s.RecordCheck(ctx, site.ID, domain.CheckOutcome{OK: true, StatusCode: intp(200 + i), ResponseTimeMS: floatp(float64(i))})
		require.NoError(t, err)
	}
	_, err = s.RecordCheck(ctx, other.ID, domain.CheckOutcome{OK: false, ResponseTimeMS: floatp(1)})
	require.NoError(t, err)

	hist, err := s.ListRecentChecks(ctx, site.ID, domain.HistoryLimit)
	require.NoError(t, err)
	require.Len(t, hist, domain.HistoryLimit)
	assert.Equal(t, last.ID, hist[0].ID)
	assert.Equal(t, 224, *hist[0].StatusCode)
	for i := 1; i < len(hist); i++ {
		assert.False(t, hist[i].CheckedAt.After(hist[i-1].CheckedAt), "checked_at must not increase")
		assert.Less(t, hist[i].ID, hist[i-1].ID)
		assert.Equal(t, site.ID, hist[i].SiteID)
	}

	five, err := s.ListRecentChecks(ctx, site.ID, 5)
	require.NoError(t, err)
	assert.Len(t, five, 5)

	capped, err := s.ListRecentChecks(ctx, site.ID, 500)
	require.NoError(t, err)
	assert.Len(t, capped, domain.HistoryLimit)
}

func testRecentChecksUnknown(t *testing.T, s repo.Store) {
	_, err := s.ListRecentChecks(context.Background(), 4242, domain.HistoryLimit)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func testDeleteCascade(t *testing.T, s repo.Store) {
	ctx := context.Background()
	site, err := s.UpsertSite(ctx, "https://gone.example")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.RecordCheck(ctx, site.ID, domain.CheckOutcome{OK: false, ResponseTimeMS: floatp(1)})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteSite(ctx, site.ID))

	_, err = s.GetSite(ctx, site.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = s.ListRecentChecks(ctx, site.ID, domain.HistoryLimit)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(s.DeleteSite(ctx, site.ID), domain.ErrNotFound))

	again, err := s.UpsertSite(ctx, "https://gone.example")
	require.NoError(t, err)
	hist, err := s.ListRecentChecks(ctx, again.ID, domain.HistoryLimit)
	require.NoError(t, err)
	assert.Empty(t, hist, "checks of the deleted site must not resurface")
}
