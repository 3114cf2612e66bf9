package tempdomain

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/themacn/trial-abuse-guard/internal/metrics"
)

// RefreshFunc performs one refresh cycle.
type RefreshFunc func(ctx context.Context) error

// RefreshState describes the scheduler's view of refresh activity. It lives
// in memory only.
type RefreshState struct {
	InFlight    bool
	LastAttempt time.Time
	LastSuccess *time.Time
}

// Scheduler runs a RefreshFunc on a fixed interval. A tick that arrives
// while the previous run is still going is dropped, so at most one run is
// ever in flight.
type Scheduler struct {
	interval time.Duration
	fn       RefreshFunc
	logger   *zap.Logger

	running atomic.Bool

	mu          sync.Mutex
	started     bool
	stop        chan struct{}
	done        chan struct{}
	lastAttempt time.Time
	lastSuccess *time.Time
}

// NewScheduler returns an idle scheduler; call Start to arm it.
func NewScheduler(interval time.Duration, fn RefreshFunc, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Start arms the recurring timer. It does not run fn immediately. Calling
// Start on a running or stopped scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.interval <= 0 {
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stop, s.done)
	s.logger.Info("temp domain refresh scheduled", zap.Duration("interval", s.interval))
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick launches fn unless a previous run is still in flight.
func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		metrics.TempDomainRefreshSkipped.Inc()
		s.logger.Debug("temp domain refresh still running, tick skipped")
		return
	}

	s.mu.Lock()
	s.lastAttempt = time.Now()
	s.mu.Unlock()

	go func() {
		defer s.running.Store(false)

		if err := s.fn(context.Background()); err != nil {
			s.logger.Warn("scheduled temp domain refresh failed", zap.Error(err))
			return
		}

		now := time.Now()
		s.mu.Lock()
		s.lastSuccess = &now
		s.mu.Unlock()
	}()
}

// Stop cancels the timer. A refresh that is already running is left to
// finish. Stop is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.logger.Debug("temp domain refresh schedule stopped")
}

// State returns a copy of the current refresh state.
func (s *Scheduler) State() RefreshState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := RefreshState{
		InFlight:    s.running.Load(),
		LastAttempt: s.lastAttempt,
	}
	if s.lastSuccess != nil {
		t := *s.lastSuccess
		st.LastSuccess = &t
	}
	return st
}
