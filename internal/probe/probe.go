package probe

import (
	"context"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// Result is the outcome of a single probe. A probe never fails from the
// caller's point of view: transport errors are folded into OK=false with
// Err set and StatusCode nil.
type Result struct {
	OK             bool
	StatusCode     *int    // nil when no HTTP response was received
	ResponseTimeMS float64 // wall clock from request start to resolution
	Err            string
}

func (r Result) Outcome() domain.CheckOutcome {
	ms := r.ResponseTimeMS
	return domain.CheckOutcome{
		OK:             r.OK,
		StatusCode:     r.StatusCode,
		ResponseTimeMS: &ms,
	}
}

// Prober performs one reachability probe against a URL.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}
