// Package poller keeps the job snapshot in sync with the backend by polling
// the job list on a fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xcrape/xcrape/internal/logger"
	"github.com/xcrape/xcrape/pkg/models"
)

const (
	// DefaultInterval is the time between two scheduled fetches
	DefaultInterval = 4 * time.Second
	// DefaultMinBusy is the shortest time the busy indicator stays on
	DefaultMinBusy = 500 * time.Millisecond
)

var (
	// ErrAlreadyRunning is returned by Start when the loop is already running
	ErrAlreadyRunning = errors.New("poller already running")
	// ErrStopped is returned once Stop has been called
	ErrStopped = errors.New("poller stopped")
)

// JobLister fetches the full job list from the backend
type JobLister interface {
	ListJobs(ctx context.Context) ([]models.Job, error)
}

// SnapshotSink receives every fetched snapshot
type SnapshotSink interface {
	Replace(jobs []models.Job)
}

// BusyIndicator shows that a fetch is in progress
type BusyIndicator interface {
	SetBusy(busy bool)
}

// BusyFunc adapts a function to BusyIndicator
type BusyFunc func(busy bool)

// SetBusy implements BusyIndicator
func (f BusyFunc) SetBusy(busy bool) { f(busy) }

// SnapshotListener is called after every successful fetch, once the sink
// holds the new snapshot
type SnapshotListener interface {
	OnSnapshot(ctx context.Context, jobs []models.Job)
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithBusyIndicator sets the indicator toggled around each fetch
func WithBusyIndicator(b BusyIndicator) Option {
	return func(s *Scheduler) { s.busy = b }
}

// WithMinBusy sets the shortest time the busy indicator stays on
func WithMinBusy(d time.Duration) Option {
	return func(s *Scheduler) { s.minBusy = d }
}

// WithErrorHandler sets a function called with every failed fetch
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// WithListener registers a snapshot listener
func WithListener(l SnapshotListener) Option {
	return func(s *Scheduler) { s.listeners = append(s.listeners, l) }
}

// Scheduler runs at most one fetch at a time. Ticks that fire while a fetch is
// running are dropped. A TriggerNow that arrives while a fetch is running is
// folded into a single follow-up fetch issued after the running one returns.
type Scheduler struct {
	lister    JobLister
	sink      SnapshotSink
	busy      BusyIndicator
	minBusy   time.Duration
	onError   func(error)
	listeners []SnapshotListener

	mu       sync.Mutex
	inFlight bool
	rerun    bool
	running  bool
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	busyMu  sync.Mutex
	busyGen uint64
}

// NewScheduler creates a scheduler that writes snapshots from lister into sink
func NewScheduler(lister JobLister, sink SnapshotSink, opts ...Option) *Scheduler {
	s := &Scheduler{
		lister:  lister,
		sink:    sink,
		minBusy: DefaultMinBusy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fetches once immediately and then every interval until ctx is done or
// Stop is called. A zero interval uses DefaultInterval.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	logger.InfoWithFields("Starting job polling", map[string]interface{}{
		"interval": interval.String(),
	})

	go s.loop(loopCtx, interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	s.spawn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Stopping job polling")
			return
		case <-ticker.C:
			s.spawn(ctx)
		}
	}
}

// spawn runs a scheduled fetch without holding up the ticker
func (s *Scheduler) spawn(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.run(ctx, false)
	}()
}

// TriggerNow fetches immediately. If a fetch is already running it returns
// without waiting and exactly one more fetch follows the running one.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.run(ctx, true)
}

// Stop halts the loop and waits for scheduled fetches to return. Later calls
// to Start and TriggerNow fail with ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// InFlight reports whether a fetch is running
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Scheduler) run(ctx context.Context, manual bool) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.inFlight {
		if manual {
			s.rerun = true
		} else {
			logger.Debug("Skipping poll tick, fetch in flight")
		}
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.mu.Unlock()

	var err error
	for {
		err = s.fetch(ctx)

		s.mu.Lock()
		if !s.rerun || s.stopped {
			s.rerun = false
			s.inFlight = false
			s.mu.Unlock()
			return err
		}
		s.rerun = false
		s.mu.Unlock()
	}
}

func (s *Scheduler) fetch(ctx context.Context) error {
	started := time.Now()
	gen := s.beginBusy()
	jobs, err := s.lister.ListJobs(ctx)
	s.endBusy(gen, started)

	if err != nil {
		logger.WarnWithFields("Failed to refresh jobs", map[string]interface{}{
			"error": err.Error(),
		})
		if s.onError != nil {
			s.onError(err)
		}
		return fmt.Errorf("error refreshing jobs: %w", err)
	}

	s.sink.Replace(jobs)
	for _, l := range s.listeners {
		l.OnSnapshot(ctx, jobs)
	}
	logger.Debugf("Refreshed %d jobs", len(jobs))
	return nil
}

func (s *Scheduler) beginBusy() uint64 {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	s.busyGen++
	if s.busy != nil {
		s.busy.SetBusy(true)
	}
	return s.busyGen
}

// endBusy clears the indicator once it has been visible for minBusy, unless a
// newer fetch has turned it on again in the meantime
func (s *Scheduler) endBusy(gen uint64, started time.Time) {
	off := func() {
		s.busyMu.Lock()
		defer s.busyMu.Unlock()
		if s.busyGen == gen && s.busy != nil {
			s.busy.SetBusy(false)
		}
	}

	if remaining := s.minBusy - time.Since(started); remaining > 0 {
		time.AfterFunc(remaining, off)
		return
	}
	off()
}
