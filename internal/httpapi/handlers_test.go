package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
)

// ---- test helpers ----

type env struct {
	store   *memory.Store
	metrics *metrics.Metrics
	api     *httptest.Server
}

func setup(t *testing.T, p probe.Prober, opts Options) *env {
	t.Helper()
	store := memory.New()
	m := metrics.New()
	srv := NewServer(zap.NewNop(), store, p, m, 2*time.Second)
	srv.DNS = probe.NewDNSDiagnoser()

	api := httptest.NewServer(srv.Router(opts))
	t.Cleanup(api.Close)
	return &env{store: store, metrics: m, api: api}
}

func (e *env) do(t *testing.T, method, path string, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.api.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (e *env) register(t *testing.T, url string) domain.Site {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/sites", fmt.Sprintf(`{"url":%q}`, url))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var s domain.Site
	require.NoError(t, json.Unmarshal(body, &s))
	return s
}

func upstream(t *testing.T, code int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// ---- tests ----

func TestAddSite_DuplicateAndInvalid(t *testing.T) {
	e := setup(t, probe.NewHTTPProber(time.Second), Options{})

	first := e.register(t, "https://example.com")
	assert.Equal(t, "https://example.com", first.URL)
	assert.False(t, first.CreatedAt.IsZero())

	second := e.register(t, "https://EXAMPLE.com/")
	assert.Equal(t, first.ID, second.ID, "same URL must map to the same site")

	resp, body := e.do(t, http.MethodPost, "/sites", `{"url":"not-a-url"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), `"detail"`)

	resp, _ = e.do(t, http.MethodPost, "/sites", `{"url":`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "malformed JSON")

	resp, _ = e.do(t, http.MethodPost, "/sites", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "missing url")

	resp, body = e.do(t, http.MethodGet, "/sites", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sites []domain.Site
	require.NoError(t, json.Unmarshal(body, &sites))
	assert.Len(t, sites, 1)
}

func TestListSites_NewestFirst(t *testing.T) {
	e := setup(t, probe.NewHTTPProber(time.Second), Options{})

	resp, body := e.do(t, http.MethodGet, "/sites", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	a := e.register(t, "https://a.example")
	b := e.register(t, "https://b.example")
	c := e.register(t, "https://c.example")

	_, body = e.do(t, http.MethodGet, "/sites", "")
	var sites []domain.Site
	require.NoError(t, json.Unmarshal(body, &sites))
	require.Len(t, sites, 3)
	assert.Equal(t, []domain.SiteID{c.ID, b.ID, a.ID}, []domain.SiteID{sites[0].ID, sites[1].ID, sites[2].ID})
}

func TestGetAndDeleteSite(t *testing.T) {
	e := setup(t, probe.NewHTTPProber(time.Second), Options{})
	s := e.register(t, "https://example.org")

	resp, body := e.do(t, http.MethodGet, fmt.Sprintf("/sites/%d", s.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got domain.Site
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, s.ID, got.ID)

	resp, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/sites/%d", s.ID), "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/sites/%d", s.ID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, fmt.Sprintf("/sites/%d", s.ID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, fmt.Sprintf("/history/%d", s.ID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatus_Online(t *testing.T) {
	up := upstream(t, http.StatusOK)
	e := setup(t, probe.NewHTTPProber(2*time.Second), Options{})
	s := e.register(t, up.URL)

	resp, body := e.do(t, http.MethodGet, fmt.Sprintf("/status/%d", s.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, s.URL, out["url"])
	assert.Equal(t, true, out["online"])
	assert.EqualValues(t, 200, out["status_code"])
	assert.Greater(t, out["response_time_ms"].(float64), 0.0)
	assert.NotContains(t, out, "error")

	checks, err := e.store.ListRecentChecks(context.Background(), s.ID, domain.HistoryLimit)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].OK)
	require.NotNil(t, checks[0].StatusCode)
	assert.Equal(t, 200, *checks[0].StatusCode)
}

func TestStatus_ServerErrorIsOffline(t *testing.T) {
	down := upstream(t, http.StatusServiceUnavailable)
	e := setup(t, probe.NewHTTPProber(2*time.Second), Options{})
	s := e.register(t, down.URL)

	_, body := e.do(t, http.MethodGet, fmt.Sprintf("/status/%d", s.ID), "")
	var out statusResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Online)
	require.NotNil(t, out.StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, *out.StatusCode)
	assert.Empty(t, out.Error, "error echo is only for probes without a response")
}

func TestStatus_ConnectionRefused(t *testing.T) {
	gone := httptest.NewServer(http.NotFoundHandler())
	deadURL := gone.URL
	gone.Close()

	e := setup(t, probe.NewHTTPProber(2*time.Second), Options{})
	s := e.register(t, deadURL)

	resp, body := e.do(t, http.MethodGet, fmt.Sprintf("/status/%d", s.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, false, out["online"])
	v, present := out["status_code"]
	assert.True(t, present, "status_code is always present")
	assert.Nil(t, v)
	assert.Contains(t, out["error"], "dns="+probe.DNSIPLiteral)

	checks, err := e.store.ListRecentChecks(context.Background(), s.ID, domain.HistoryLimit)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.False(t, checks[0].OK)
	assert.Nil(t, checks[0].StatusCode)
	require.NotNil(t, checks[0].ResponseTimeMS)
}

func TestStatusAndHistory_UnknownAndMalformedIDs(t *testing.T) {
	e := setup(t, probe.NewHTTPProber(time.Second), Options{})

	for _, path := range []string{"/status/999", "/history/999", "/sites/999"} {
		resp, body := e.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Contains(t, string(body), "not found", path)
	}
	for _, path := range []string{"/status/abc", "/history/1.5"} {
		resp, _ := e.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, path)
	}
}

func TestHistory_AtMost20NewestFirst(t *testing.T) {
	e := setup(t, probe.NewHTTPProber(time.Second), Options{})

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	e.store.WithClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	})

	s := e.register(t, "https://history.example")
	code := 200
	for i := 0; i < 25; i++ {
		ms := float64(i)
		_, err := e.store.RecordCheck(context.Background(), s.ID, domain.CheckOutcome{OK: true, StatusCode: &code, ResponseTimeMS: &ms})
		require.NoError(t, err)
	}

	resp, body := e.do(t, http.MethodGet, fmt.Sprintf("/history/%d", s.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var checks []domain.Check
	require.NoError(t, json.Unmarshal(body, &checks))
	require.Len(t, checks, domain.HistoryLimit)

	assert.Equal(t, 24.0, *checks[0].ResponseTimeMS, "newest check first")
	assert.Equal(t, 5.0, *checks[len(checks)-1].ResponseTimeMS)
	for i := 1; i < len(checks); i++ {
		assert.True(t, checks[i-1].CheckedAt.After(checks[i].CheckedAt), "descending at %d", i)
	}
}

// ctxProber records whether its context was already cancelled when called.
type ctxProber struct {
	sawCancelled atomic.Bool
	calls        atomic.Int32
}

func (p *ctxProber) Probe(ctx context.Context, _ string) probe.Result {
	p.calls.Add(1)
	if ctx.Err() != nil {
		p.sawCancelled.Store(true)
	}
	code := 204
	return probe.Result{OK: true, StatusCode: &code, ResponseTimeMS: 0.5}
}

func TestStatus_ProbeNotCancelledByClient(t *testing.T) {
	store := memory.New()
	p := &ctxProber{}
	srv := NewServer(zap.NewNop(), store, p, nil, time.Second)
	h := srv.Router(Options{})

	s, err := store.UpsertSite(context.Background(), "https://example.net")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/status/%d", s.ID), nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, int32(1), p.calls.Load())
	assert.False(t, p.sawCancelled.Load(), "probe must not inherit the client's cancellation")

	checks, err := store.ListRecentChecks(context.Background(), s.ID, domain.HistoryLimit)
	require.NoError(t, err)
	assert.Len(t, checks, 1)
}

func TestStatus_RoundsResponseTime(t *testing.T) {
	store := memory.New()
	code := 200
	srv := NewServer(zap.NewNop(), store, probeFunc(func(context.Context, string) probe.Result {
		return probe.Result{OK: true, StatusCode: &code, ResponseTimeMS: 12.34567}
	}), nil, time.Second)
	h := srv.Router(Options{})

	s, err := store.UpsertSite(context.Background(), "https://example.net")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/status/%d", s.ID), nil))
	var out statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 12.35, out.ResponseTimeMS)

	checks, err := store.ListRecentChecks(context.Background(), s.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 12.34567, *checks[0].ResponseTimeMS, "stored value keeps full precision")
}

type probeFunc func(ctx context.Context, url string) probe.Result

func (f probeFunc) Probe(ctx context.Context, url string) probe.Result { return f(ctx, url) }

func TestMetricsEndpoint_CountsOnDemandProbes(t *testing.T) {
	up := upstream(t, http.StatusOK)
	e := setup(t, probe.NewHTTPProber(2*time.Second), Options{})
	s := e.register(t, up.URL)

	e.do(t, http.MethodGet, fmt.Sprintf("/status/%d", s.ID), "")

	resp, body := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `statuspulse_probes_total{result="up",trigger="on_demand"} 1`), string(body))
}

func TestStatus_TimeoutStillClassifiesDNS(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	port := slow.URL[strings.LastIndex(slow.URL, ":")+1:]

	store := memory.New()
	timeout := 300 * time.Millisecond
	srv := NewServer(zap.NewNop(), store, probe.NewHTTPProber(timeout), nil, timeout)
	srv.DNS = probe.NewDNSDiagnoser()
	h := srv.Router(Options{})

	s, err := store.UpsertSite(context.Background(), "http://localhost:"+port)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/status/%d", s.ID), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.False(t, out.Online)
	assert.Nil(t, out.StatusCode)
	assert.Contains(t, out.Error, "dns="+probe.DNSResolves, "lookup must not inherit the expired deadline")
}
