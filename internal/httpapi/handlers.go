package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/metrics"
)

const maxBodyBytes = 1 << 20

type addPayload struct {
	URL string `json:"url"`
}

type statusResponse struct {
	URL            string  `json:"url"`
	Online         bool    `json:"online"`
	StatusCode     *int    `json:"status_code"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	Error          string  `json:"error,omitempty"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "body", Value: "", Err: err})
		return
	}

	site, err := s.Store.UpsertSite(r.Context(), p.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("site_registered",
		zap.Int64("site_id", int64(site.ID)),
		zap.String("url", site.URL),
	)
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.Store.ListSites(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	id, err := siteIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	site, err := s.Store.GetSite(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	id, err := siteIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Store.DeleteSite(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("site_deleted", zap.Int64("site_id", int64(id)))
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus probes the site synchronously and records the outcome. The
// probe runs to completion even if the client goes away.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := siteIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	site, err := s.Store.GetSite(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.ProbeTimeout)
	defer cancel()

	started := time.Now()
	res := s.Prober.Probe(ctx, site.URL)
	s.Metrics.ObserveProbe(metrics.TriggerOnDemand, res.OK, time.Since(started))

	if _, err := s.Store.RecordCheck(context.WithoutCancel(r.Context()), site.ID, res.Outcome()); err != nil {
		s.writeError(w, r, err)
		return
	}

	out := statusResponse{
		URL:            site.URL,
		Online:         res.OK,
		StatusCode:     res.StatusCode,
		ResponseTimeMS: math.Round(res.ResponseTimeMS*100) / 100,
	}
	if res.StatusCode == nil {
		out.Error = res.Err
		if s.DNS != nil {
			class := s.DNS.Diagnose(context.WithoutCancel(r.Context()), site.URL)
			out.Error = strings.TrimSpace(fmt.Sprintf("%s dns=%s", res.Err, class))
		}
		s.Logger.Info("probe_failed",
			zap.Int64("site_id", int64(site.ID)),
			zap.String("url", site.URL),
			zap.String("reason", out.Error),
		)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := siteIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	checks, err := s.Store.ListRecentChecks(r.Context(), id, domain.HistoryLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

func siteIDParam(r *http.Request) (domain.SiteID, error) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: "site_id", Value: raw, Err: errors.New("must be an integer")}
	}
	return domain.SiteID(n), nil
}

// statusFor is the only place errors become HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	detail := err.Error()
	if code == http.StatusInternalServerError {
		s.Logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		detail = "internal error"
	}
	writeJSON(w, code, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
