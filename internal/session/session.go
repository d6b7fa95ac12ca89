// Package session tracks the single job whose result is being inspected and
// which tab of it is shown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xcrape/xcrape/internal/events"
	"github.com/xcrape/xcrape/internal/logger"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/payload"
	"github.com/xcrape/xcrape/internal/section"
	"github.com/xcrape/xcrape/pkg/api/v1/client"
	"github.com/xcrape/xcrape/pkg/models"
)

// State is the state of the detail session
type State int

const (
	// StateClosed means no job is being inspected
	StateClosed State = iota
	// StateLoading means a job was requested and its result is not applied yet
	StateLoading
	// StateOpen means a result is held and one of its tabs is active
	StateOpen
	// StateError describes a failed load. The session itself settles in
	// StateClosed; the failure is kept in LastFailure.
	StateError
)

var stateNames = []string{"closed", "loading", "open", "error"}

func (s State) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrStaleResponse is returned when a fetch result arrives for a target
	// that is no longer current. It is never shown to the user.
	ErrStaleResponse = errors.New("stale response")
	// ErrNotOpen is returned by operations that need an open result
	ErrNotOpen = errors.New("no job is open")
)

// JobFetcher fetches one job with its stored result
type JobFetcher interface {
	GetJob(ctx context.Context, id uint) (models.Job, error)
}

// View is an immutable copy of the session
type View struct {
	State     State
	JobID     uint
	Payload   payload.Payload
	ActiveTab section.TabID
	Tabs      []section.TabID
	// Waiting is set while a followed job has not finished on the backend
	Waiting bool
}

// Failure records the last load that ended in the error state
type Failure struct {
	JobID  uint
	Reason string
	Err    error
	At     time.Time
}

// Controller owns the detail session. Every fetch is tagged with a
// generation; results for an older generation are dropped.
type Controller struct {
	fetcher  JobFetcher
	notifier notify.Notifier
	bus      *events.Bus

	mu          sync.Mutex
	gen         uint64
	state       State
	jobID       uint
	payload     payload.Payload
	tab         section.TabID
	waiting     bool
	seen        bool
	lastFailure *Failure
}

// NewController creates a closed session. notifier and bus may be nil.
func NewController(fetcher JobFetcher, notifier notify.Notifier, bus *events.Bus) *Controller {
	return &Controller{
		fetcher:  fetcher,
		notifier: notifier,
		bus:      bus,
		state:    StateClosed,
	}
}

// Open replaces the current session with jobID and loads its result. It
// returns ErrStaleResponse when the session moved on before the fetch
// returned.
func (c *Controller) Open(ctx context.Context, jobID uint) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.reset(StateLoading, jobID)
	c.mu.Unlock()
	c.changed()

	return c.load(ctx, gen, jobID)
}

// SelectTab switches the active tab of an open result. It never fetches.
func (c *Controller) SelectTab(tab section.TabID) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotOpen
	}
	if !section.Offers(c.payload, tab) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", section.ErrUnknownTab, tab)
	}
	c.tab = tab
	c.mu.Unlock()
	c.changed()
	return nil
}

// Close closes the session. A fetch still in flight is ignored when it returns.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.reset(StateClosed, 0)
	c.mu.Unlock()
	c.changed()
}

// JobDeleted closes the session if it targets jobID. It reports whether the
// session was closed.
func (c *Controller) JobDeleted(jobID uint) bool {
	c.mu.Lock()
	if c.state == StateClosed || c.jobID != jobID {
		c.mu.Unlock()
		return false
	}
	c.gen++
	c.reset(StateClosed, 0)
	c.mu.Unlock()

	logger.Debugf("Closed detail session for deleted job %d", jobID)
	c.changed()
	return true
}

// Follow moves a session that targets oldID over to newID. The new job is
// loaded once a snapshot shows it finished. It reports whether the session
// followed.
func (c *Controller) Follow(ctx context.Context, oldID, newID uint) bool {
	c.mu.Lock()
	if c.state == StateClosed || c.jobID != oldID {
		c.mu.Unlock()
		return false
	}
	c.gen++
	c.reset(StateLoading, newID)
	c.waiting = true
	c.mu.Unlock()

	logger.InfoWithFields("Detail session following re-run", map[string]interface{}{
		"from_job": oldID,
		"to_job":   newID,
	})
	c.changed()
	return true
}

// OnSnapshot reconciles the session with a fresh job list. A session whose
// job disappeared from the list closes. A followed job that finished is
// loaded.
func (c *Controller) OnSnapshot(ctx context.Context, jobs []models.Job) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}

	var (
		job   models.Job
		found bool
	)
	for _, j := range jobs {
		if j.ID == c.jobID {
			job, found = j, true
			break
		}
	}

	if !found {
		// a followed job may be missing from a list fetched before it was created
		if c.waiting && !c.seen {
			c.mu.Unlock()
			return
		}
		jobID := c.jobID
		c.gen++
		c.reset(StateClosed, 0)
		c.mu.Unlock()

		logger.Debugf("Job %d left the snapshot, closing detail session", jobID)
		c.changed()
		return
	}

	if !c.waiting {
		c.mu.Unlock()
		return
	}
	c.seen = true
	if !job.Status.Terminal() {
		c.mu.Unlock()
		return
	}

	c.waiting = false
	gen, jobID := c.gen, c.jobID
	c.mu.Unlock()
	c.changed()

	if err := c.load(ctx, gen, jobID); err != nil && !errors.Is(err, ErrStaleResponse) {
		logger.Debugf("Loading followed job %d failed: %v", jobID, err)
	}
}

// View returns a copy of the current session
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:     c.state,
		JobID:     c.jobID,
		Payload:   c.payload,
		ActiveTab: c.tab,
		Waiting:   c.waiting,
	}
	if c.state == StateOpen {
		v.Tabs = section.TabsFor(c.payload)
	}
	return v
}

// LastFailure returns the most recent failed load, if any
func (c *Controller) LastFailure() (Failure, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFailure == nil {
		return Failure{}, false
	}
	return *c.lastFailure, true
}

func (c *Controller) load(ctx context.Context, gen uint64, jobID uint) error {
	job, err := c.fetcher.GetJob(ctx, jobID)
	if err != nil {
		return c.fail(gen, jobID, fetchFailureMessage(jobID, err), err)
	}

	p, err := payload.Parse(job.Data)
	if err != nil {
		return c.fail(gen, jobID, "Invalid job data", err)
	}

	c.mu.Lock()
	if !c.current(gen, jobID) {
		c.mu.Unlock()
		return ErrStaleResponse
	}

	if _, ok := p.(payload.NoData); ok {
		c.reset(StateClosed, 0)
		c.mu.Unlock()
		c.notify(notify.Info(jobID, "No data available yet"))
		c.changed()
		return nil
	}

	tab, _ := section.DefaultTab(p)
	c.state = StateOpen
	c.payload = p
	c.tab = tab
	c.mu.Unlock()

	logger.DebugWithFields("Opened job result", map[string]interface{}{
		"job_id": jobID,
		"kind":   p.Kind().String(),
		"tab":    string(tab),
	})
	c.changed()
	return nil
}

// fail records a failed load and closes the session, unless the load is stale
func (c *Controller) fail(gen uint64, jobID uint, reason string, err error) error {
	c.mu.Lock()
	if !c.current(gen, jobID) {
		c.mu.Unlock()
		return ErrStaleResponse
	}
	c.lastFailure = &Failure{JobID: jobID, Reason: reason, Err: err, At: time.Now()}
	c.reset(StateClosed, 0)
	c.mu.Unlock()

	logger.WarnWithFields("Failed to open job", map[string]interface{}{
		"job_id": jobID,
		"error":  err.Error(),
	})
	c.notify(notify.Failure(jobID, "%s", reason))
	c.changed()
	return fmt.Errorf("error opening job %d: %w", jobID, err)
}

// current reports whether a load for gen and jobID may still be applied.
// Callers hold c.mu.
func (c *Controller) current(gen uint64, jobID uint) bool {
	return c.gen == gen && c.state == StateLoading && !c.waiting && c.jobID == jobID
}

// reset clears the session. Callers hold c.mu.
func (c *Controller) reset(state State, jobID uint) {
	c.state = state
	c.jobID = jobID
	c.payload = nil
	c.tab = ""
	c.waiting = false
	c.seen = false
}

func (c *Controller) notify(n notify.Notice) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

func (c *Controller) changed() {
	if c.bus == nil {
		return
	}
	v := c.View()
	c.bus.Publish(events.Event{Type: events.EventSessionChanged, JobID: v.JobID, Payload: v})
}

func fetchFailureMessage(jobID uint, err error) string {
	if code := client.StatusCode(err); code != 0 {
		return fmt.Sprintf("Failed to load job #%d (HTTP %d)", jobID, code)
	}
	if client.IsNetworkError(err) {
		return "Network error"
	}
	return fmt.Sprintf("Failed to load job #%d", jobID)
}
