package domain

import "time"

// HistoryLimit caps how many checks a history query returns.
const HistoryLimit = 20

type SiteID int64

type Site struct {
	ID        SiteID    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type Check struct {
	ID             int64     `json:"id"`
	SiteID         SiteID    `json:"site_id"`
	OK             bool      `json:"ok"`
	StatusCode     *int      `json:"status_code"`      // nil when no HTTP response was received
	ResponseTimeMS *float64  `json:"response_time_ms"` // nil only for rows written without timing
	CheckedAt      time.Time `json:"checked_at"`
}

// CheckOutcome is what gets recorded for one probe attempt.
type CheckOutcome struct {
	OK             bool
	StatusCode     *int
	ResponseTimeMS *float64
}

// Validate enforces that a check without an HTTP response is never ok.
func (o CheckOutcome) Validate() error {
	if o.OK && o.StatusCode == nil {
		return &ValidationError{Field: "ok", Value: "true", Err: errOKWithoutStatus}
	}
	return nil
}
