package probe

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	userAgent      = "statuspulse/1.0"
	maxBodyDrain   = 64 << 10
)

type HTTPProber struct {
	Client *http.Client
}

// NewHTTPProber returns a prober issuing single GET requests bounded by
// timeout. Redirects are not followed, so a 3xx answer is reported as is.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProber{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *HTTPProber) Probe(ctx context.Context, target string) Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Err: err.Error(), ResponseTimeMS: elapsedMS(start)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return Result{Err: err.Error(), ResponseTimeMS: elapsedMS(start)}
	}
	latency := elapsedMS(start)
	// drain a little so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))
	resp.Body.Close()

	code := resp.StatusCode
	return Result{
		OK:             code >= 200 && code < 400,
		StatusCode:     &code,
		ResponseTimeMS: latency,
	}
}

func elapsedMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}
