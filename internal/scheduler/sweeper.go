package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
)

const DefaultInterval = 5 * time.Minute

var ErrAlreadyStarted = errors.New("scheduler: already started")

// Sweeper probes every registered site on a fixed interval. At most one
// sweep runs at a time; a tick that fires while a sweep is in flight is
// dropped.
type Sweeper struct {
	Logger       *zap.Logger
	Store        repo.Store
	Prober       probe.Prober
	Metrics      *metrics.Metrics
	Interval     time.Duration
	Timeout      time.Duration
	Concurrency  int
	SweepOnStart bool

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(
	logger *zap.Logger,
	store repo.Store,
	prober probe.Prober,
	m *metrics.Metrics,
	interval time.Duration,
	timeout time.Duration,
	concurrency int,
) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	return &Sweeper{
		Logger:      logger,
		Store:       store,
		Prober:      prober,
		Metrics:     m,
		Interval:    interval,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
}

// Start launches the tick loop. The first sweep fires one interval after
// Start unless SweepOnStart is set. The loop ends when ctx is cancelled or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop(ctx)
	s.Logger.Info("scheduler_started",
		zap.Duration("interval", s.Interval),
		zap.Int("concurrency", s.Concurrency),
		zap.Bool("sweep_on_start", s.SweepOnStart),
	)
	return nil
}

// Stop cancels the loop and waits for it and any in-flight sweep to return.
// Calling Stop on a stopped or never started Sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.Logger.Info("scheduler_stopped")
}

// Running reports whether a sweep is currently in flight.
func (s *Sweeper) Running() bool { return s.running.Load() }

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	if s.SweepOnStart {
		s.trigger(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.trigger(ctx)
		}
	}
}

// trigger starts a sweep in the background and reports true. It reports
// false when one is already running or the Sweeper is not started.
func (s *Sweeper) trigger(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.Metrics.SweepSkipped()
		s.Logger.Warn("sweep_skipped", zap.String("reason", "previous sweep still running"))
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.sweep(ctx)
	}()
	return true
}

// SweepNow runs one sweep synchronously on the caller's goroutine. It
// returns false without probing if another sweep is in flight.
func (s *Sweeper) SweepNow(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.Metrics.SweepSkipped()
		return false
	}
	defer s.running.Store(false)
	s.sweep(ctx)
	return true
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	s.Metrics.SweepStarted()

	sites, err := s.Store.ListSites(ctx)
	if err != nil {
		s.Metrics.SweepFinished(time.Since(start))
		s.Logger.Warn("sweep_list_error", zap.Error(err))
		return
	}
	s.Logger.Info("sweep_started", zap.Int("sites", len(sites)))

	var up, down atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for _, site := range sites {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			ok := s.checkOne(gctx, site)
			if ok {
				up.Add(1)
			} else {
				down.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	s.Metrics.SweepFinished(elapsed)
	s.Logger.Info("sweep_finished",
		zap.Int("sites", len(sites)),
		zap.Int64("up", up.Load()),
		zap.Int64("down", down.Load()),
		zap.Duration("took", elapsed),
	)
}

// checkOne probes a single site and records the outcome. Results of probes
// cut short by shutdown are discarded rather than stored as failures.
func (s *Sweeper) checkOne(ctx context.Context, site domain.Site) bool {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	started := time.Now()
	res := s.Prober.Probe(cctx, site.URL)
	s.Metrics.ObserveProbe(metrics.TriggerSweep, res.OK, time.Since(started))

	if ctx.Err() != nil {
		s.Logger.Debug("sweep_probe_interrupted", zap.Int64("site_id", int64(site.ID)))
		return res.OK
	}

	// a site deleted mid-sweep yields NotFound; nothing to record then
	_, err := s.Store.RecordCheck(context.WithoutCancel(ctx), site.ID, res.Outcome())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.Logger.Debug("sweep_site_gone", zap.Int64("site_id", int64(site.ID)))
	case err != nil:
		s.Logger.Warn("sweep_record_error",
			zap.Int64("site_id", int64(site.ID)),
			zap.String("url", site.URL),
			zap.Error(err),
		)
	default:
		fields := []zap.Field{
			zap.Int64("site_id", int64(site.ID)),
			zap.String("url", site.URL),
			zap.Bool("ok", res.OK),
			zap.Float64("response_time_ms", res.ResponseTimeMS),
		}
		if res.StatusCode != nil {
			fields = append(fields, zap.Int("status", *res.StatusCode))
		}
		if res.Err != "" {
			fields = append(fields, zap.String("reason", res.Err))
		}
		s.Logger.Debug("sweep_checked", fields...)
	}
	return res.OK
}
