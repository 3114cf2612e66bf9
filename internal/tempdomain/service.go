// Package tempdomain tracks disposable email domains: an in-memory set
// seeded from built-in defaults and a persisted snapshot, grown by periodic
// downloads of public lists, and managed through add, remove, import and
// export operations.
//
// Failure policy: anything on the startup or background refresh path fails
// open. A missing or corrupt snapshot starts from defaults, a failing source
// is skipped for that cycle and a failed snapshot write is logged while the
// in-memory set stays authoritative. Explicit management calls (Import,
// Export, SearchRegexp) return their errors.
package tempdomain

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/themacn/trial-abuse-guard/internal/metrics"
)

type lifecycle int32

const (
	stateLoading lifecycle = iota
	stateReady
	stateDestroyed
)

// Refresh triggers, used as metric labels.
const (
	TriggerInit      = "init"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Stats summarizes the service state.
type Stats struct {
	TotalDomains        int        `json:"totalDomains"`
	LastUpdate          *time.Time `json:"lastUpdate"`
	AutoUpdateEnabled   bool       `json:"autoUpdateEnabled"`
	UpdateIntervalHours float64    `json:"updateIntervalHours"`
	SourceCount         int        `json:"sourceCount"`
	RefreshInFlight     bool       `json:"refreshInFlight"`
	LastRefreshAttempt  *time.Time `json:"lastRefreshAttempt,omitempty"`
	LastRefreshSuccess  *time.Time `json:"lastRefreshSuccess,omitempty"`
	StoragePath         string     `json:"storagePath,omitempty"`
}

// RefreshResult reports one fetch-and-merge cycle.
type RefreshResult struct {
	Sources   int           `json:"sources"`
	Succeeded []string      `json:"succeeded"`
	Failed    []string      `json:"failed"`
	Fetched   int           `json:"fetched"`
	Added     int           `json:"added"`
	Total     int           `json:"total"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Service is the disposable-domain tracker.
type Service struct {
	opts    Options
	logger  *zap.Logger
	set     *DomainSet
	store   *FileStore
	fetcher SourceFetcher

	scheduler *Scheduler
	refreshes singleflight.Group
	inFlight  atomic.Bool
	state     atomic.Int32

	// mu serializes every mutation together with its snapshot write.
	mu          sync.Mutex
	lastUpdate  *time.Time
	lastAttempt *time.Time
	lastSuccess *time.Time

	destroyOnce sync.Once
}

// New builds a Service and returns once the initial load is complete: the
// persisted snapshot is read, the first fetch-and-merge cycle has run when
// there was no snapshot or auto update is enabled, and the result has been
// persisted. With AutoUpdate the refresh schedule is armed before returning.
//
// Source failures during the first cycle do not fail New; ctx only carries
// values to the fetches.
func New(ctx context.Context, opts Options) (*Service, error) {
	s, err := newService(opts)
	if err != nil {
		return nil, err
	}

	snap := s.seed()
	if (snap.Empty() || s.opts.AutoUpdate) && len(s.opts.Sources) > 0 {
		s.cycle(ctx, TriggerInit, false)
	}

	s.mu.Lock()
	s.persistLocked()
	s.mu.Unlock()

	if s.opts.AutoUpdate {
		s.scheduler = NewScheduler(s.opts.UpdateInterval, s.scheduledRefresh, s.logger)
		s.scheduler.Start()
	}

	s.state.Store(int32(stateReady))
	s.logger.Info("temp domain service ready",
		zap.Int("domains", s.set.Size()),
		zap.Bool("auto_update", s.opts.AutoUpdate),
		zap.Int("sources", len(s.opts.Sources)),
		zap.String("storage", s.store.Path()),
	)
	return s, nil
}

// NewOffline builds a Service without touching the network: it seeds from
// the persisted snapshot (or defaults) and custom domains, and never arms a
// schedule. ForceUpdate still works on demand.
func NewOffline(opts Options) (*Service, error) {
	s, err := newService(opts)
	if err != nil {
		return nil, err
	}
	s.seed()
	s.state.Store(int32(stateReady))
	return s, nil
}

func newService(opts Options) (*Service, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, fmt.Errorf("temp domain options: %w", err)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(opts.HTTPClient, opts.FetchTimeout, opts.Logger)
	}

	s := &Service{
		opts:    opts,
		logger:  opts.Logger,
		set:     NewDomainSet(),
		store:   NewFileStore(opts.StoragePath, opts.Logger),
		fetcher: fetcher,
	}
	s.state.Store(int32(stateLoading))
	return s, nil
}

// seed loads the snapshot and fills the set. A non-empty snapshot stands in
// for the built-in defaults and the local list so that explicit removals
// survive a restart; custom domains are always added.
func (s *Service) seed() Snapshot {
	snap := s.store.Load()

	var local []string
	if snap.Empty() && s.opts.LocalListPath != "" {
		var err error
		if local, err = LoadLocalList(s.opts.LocalListPath); err != nil {
			s.logger.Warn("local temp domain list not loaded",
				zap.String("path", s.opts.LocalListPath), zap.Error(err))
		} else {
			s.logger.Debug("local temp domain list loaded",
				zap.String("path", s.opts.LocalListPath), zap.Int("domains", len(local)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Empty() {
		s.set.Add(s.opts.Defaults...)
		s.set.Add(local...)
	} else {
		s.set.Add(snap.Domains...)
		s.lastUpdate = snap.LastUpdate
	}
	s.set.Add(s.opts.CustomDomains...)
	metrics.TempDomainCount.Set(float64(s.set.Size()))
	return snap
}

// IsTemporary reports whether domain is a known disposable domain. It only
// reads the in-memory set and never blocks on I/O.
func (s *Service) IsTemporary(domain string) bool {
	return s.set.Contains(domain)
}

// AddDomains merges domains into the set and persists when anything was
// new. Invalid entries are ignored. It returns the number added.
func (s *Service) AddDomains(domains ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.set.Add(domains...)
	if n > 0 {
		s.persistLocked()
	}
	return n
}

// RemoveDomains deletes domains and persists when anything was removed. It
// returns the number removed.
func (s *Service) RemoveDomains(domains ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.set.Remove(domains...)
	if n > 0 {
		s.persistLocked()
	}
	return n
}

// Reset restores the built-in defaults plus the configured custom domains,
// discarding every other entry, and persists the result. The outcome is the
// same set a restart from the written snapshot would produce.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set.Replace(s.opts.Defaults...)
	s.set.Add(s.opts.CustomDomains...)
	s.lastUpdate = nil
	s.persistLocked()
	s.logger.Info("temp domain list reset to defaults", zap.Int("domains", s.set.Size()))
}

// Search returns the sorted domains containing pattern, ignoring case.
func (s *Service) Search(pattern string) []string {
	return s.set.Search(pattern)
}

// SearchRegexp returns the sorted domains matching expr, compiled case
// insensitive.
func (s *Service) SearchRegexp(expr string) ([]string, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegexp, err)
	}
	return s.set.Match(re), nil
}

// Domains returns every tracked domain in lexicographic order.
func (s *Service) Domains() []string {
	return s.set.All()
}

// Size returns the number of tracked domains.
func (s *Service) Size() int {
	return s.set.Size()
}

// Export writes the current collection to path.
func (s *Service) Export(path string, format Format) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return s.store.Export(path, format, snap)
}

// WriteExport writes the current collection to w in format.
func (s *Service) WriteExport(w io.Writer, format Format) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	data, err := EncodeExport(format, snap)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Import reads a domain list from path and merges it. Read and parse
// failures are returned. It returns the number of new domains.
func (s *Service) Import(path string) (int, error) {
	domains, err := s.store.Import(path)
	if err != nil {
		return 0, err
	}
	n := s.AddDomains(domains...)
	s.logger.Info("temp domains imported",
		zap.String("path", path), zap.Int("read", len(domains)), zap.Int("added", n))
	return n, nil
}

// ForceUpdate runs one fetch-and-merge cycle now and waits for it. A cycle
// already in flight is joined instead of starting another. Source failures
// are reported in the result, not as an error. The schedule is not touched.
func (s *Service) ForceUpdate(ctx context.Context) (RefreshResult, error) {
	return s.refresh(ctx, TriggerManual)
}

func (s *Service) scheduledRefresh(ctx context.Context) error {
	res, err := s.refresh(ctx, TriggerScheduled)
	if err != nil {
		return err
	}
	if res.Sources > 0 && len(res.Succeeded) == 0 {
		return fmt.Errorf("all %d sources failed", res.Sources)
	}
	return nil
}

func (s *Service) refresh(ctx context.Context, trigger string) (RefreshResult, error) {
	if lifecycle(s.state.Load()) == stateDestroyed {
		return RefreshResult{}, ErrServiceDestroyed
	}

	v, err, _ := s.refreshes.Do("refresh", func() (any, error) {
		return s.cycle(ctx, trigger, true), nil
	})
	if err != nil {
		return RefreshResult{}, err
	}
	return v.(RefreshResult), nil
}

// cycle fetches every source and merges the union into the set. The set
// only grows here. With persist set, the snapshot is written when the
// domain count increased.
func (s *Service) cycle(ctx context.Context, trigger string, persist bool) RefreshResult {
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	start := time.Now()
	s.mu.Lock()
	s.lastAttempt = &start
	s.mu.Unlock()

	fetched := s.fetcher.FetchAll(ctx, s.opts.Sources)

	res := RefreshResult{
		Sources:   len(s.opts.Sources),
		Succeeded: []string{},
		Failed:    []string{},
		StartedAt: start,
	}
	var incoming []string
	for _, src := range s.opts.Sources {
		domains, ok := fetched[src]
		if !ok {
			res.Failed = append(res.Failed, src)
			continue
		}
		res.Succeeded = append(res.Succeeded, src)
		incoming = append(incoming, domains...)
	}
	res.Fetched = len(incoming)

	s.mu.Lock()
	res.Added = s.set.Add(incoming...)
	if len(res.Succeeded) > 0 {
		now := time.Now()
		s.lastUpdate = &now
		s.lastSuccess = &now
	}
	if persist && res.Added > 0 {
		s.persistLocked()
	}
	res.Total = s.set.Size()
	s.mu.Unlock()

	metrics.TempDomainCount.Set(float64(res.Total))
	res.Duration = time.Since(start)

	outcome := "ok"
	switch {
	case res.Sources > 0 && len(res.Succeeded) == 0:
		outcome = "failed"
	case len(res.Failed) > 0:
		outcome = "partial"
	}
	metrics.TempDomainRefreshes.WithLabelValues(trigger, outcome).Inc()

	s.logger.Info("temp domain refresh finished",
		zap.String("trigger", trigger),
		zap.String("result", outcome),
		zap.Int("sources", res.Sources),
		zap.Int("failed", len(res.Failed)),
		zap.Int("fetched", res.Fetched),
		zap.Int("added", res.Added),
		zap.Int("total", res.Total),
		zap.Duration("took", res.Duration),
	)
	return res
}

// Stats returns a summary of the service.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		TotalDomains:        s.set.Size(),
		LastUpdate:          copyTime(s.lastUpdate),
		AutoUpdateEnabled:   s.opts.AutoUpdate,
		UpdateIntervalHours: s.opts.UpdateInterval.Hours(),
		SourceCount:         len(s.opts.Sources),
		RefreshInFlight:     s.inFlight.Load(),
		LastRefreshAttempt:  copyTime(s.lastAttempt),
		LastRefreshSuccess:  copyTime(s.lastSuccess),
		StoragePath:         s.store.Path(),
	}
}

// RefreshState returns the background schedule's state. The zero value is
// returned when no schedule is armed.
func (s *Service) RefreshState() RefreshState {
	if s.scheduler == nil {
		return RefreshState{}
	}
	return s.scheduler.State()
}

// Destroy stops background refreshes. The set is kept, so IsTemporary and
// the other read operations keep answering from the last known state.
// Destroy is idempotent.
func (s *Service) Destroy() {
	s.destroyOnce.Do(func() {
		s.state.Store(int32(stateDestroyed))
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		s.logger.Info("temp domain service stopped")
	})
}

func (s *Service) snapshotLocked() Snapshot {
	return Snapshot{
		Domains:    s.set.All(),
		LastUpdate: copyTime(s.lastUpdate),
		Version:    SnapshotVersion,
	}
}

// persistLocked writes the snapshot. Write failures are logged and
// swallowed; the in-memory set stays authoritative and the next mutation
// retries the write.
func (s *Service) persistLocked() {
	metrics.TempDomainCount.Set(float64(s.set.Size()))
	if !s.store.Enabled() {
		return
	}
	if err := s.store.Save(s.snapshotLocked()); err != nil {
		metrics.TempDomainPersistFailures.Inc()
		s.logger.Warn("temp domain snapshot not saved",
			zap.String("path", s.store.Path()), zap.Error(err))
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
