// Package snapshot holds the last job list received from the backend.
package snapshot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xcrape/xcrape/internal/events"
	"github.com/xcrape/xcrape/pkg/models"
)

// Predicate selects jobs in Filter
type Predicate func(models.Job) bool

// Store keeps exactly one job snapshot. Every Replace swaps the whole list;
// nothing from a previous snapshot survives it.
type Store struct {
	mu      sync.RWMutex
	jobs    []models.Job
	byID    map[uint]int
	version uint64
	bus     *events.Bus
}

// NewStore creates an empty store. bus may be nil.
func NewStore(bus *events.Bus) *Store {
	return &Store{
		jobs: []models.Job{},
		byID: map[uint]int{},
		bus:  bus,
	}
}

// Replace swaps the stored snapshot for a copy of jobs
func (s *Store) Replace(jobs []models.Job) {
	next := make([]models.Job, len(jobs))
	copy(next, jobs)
	index := make(map[uint]int, len(next))
	for i, j := range next {
		index[j.ID] = i
	}

	s.mu.Lock()
	s.jobs = next
	s.byID = index
	s.version++
	version := s.version
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.EventSnapshotReplaced, Payload: version})
	}
}

// Jobs returns a copy of the current snapshot in backend order
func (s *Store) Jobs() []models.Job {
	return s.Filter(nil)
}

// Get returns the job with the given id from the current snapshot
func (s *Store) Get(id uint) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return models.Job{}, false
	}
	return s.jobs[i], true
}

// Version is incremented on every Replace
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Filter returns the jobs matching pred, keeping snapshot order. A nil
// predicate matches everything.
func (s *Store) Filter(pred Predicate) []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if pred == nil || pred(j) {
			out = append(out, j)
		}
	}
	return out
}

// Summarize counts the current snapshot by status
func (s *Store) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := Summary{Total: len(s.jobs)}
	for _, j := range s.jobs {
		switch j.Status {
		case models.JobStatusPending:
			sum.Pending++
		case models.JobStatusRunning:
			sum.Running++
		case models.JobStatusCompleted:
			sum.Completed++
		case models.JobStatusFailed:
			sum.Failed++
		default:
			sum.Unknown++
		}
	}
	return sum
}

// Summary holds job counts per status
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Unknown   int `json:"unknown"`
}

// Count returns the number of jobs with the given status
func (s Summary) Count(status models.JobStatus) int {
	switch status {
	case models.JobStatusPending:
		return s.Pending
	case models.JobStatusRunning:
		return s.Running
	case models.JobStatusCompleted:
		return s.Completed
	case models.JobStatusFailed:
		return s.Failed
	default:
		return s.Unknown
	}
}

// Active reports whether the backend is still working on any job
func (s Summary) Active() bool {
	return s.Pending+s.Running > 0
}

// Label is the short activity label shown next to the job count
func (s Summary) Label() string {
	switch {
	case s.Running > 0:
		return fmt.Sprintf("RUNNING (%d)", s.Running)
	case s.Pending > 0:
		return fmt.Sprintf("PENDING (%d)", s.Pending)
	default:
		return "IDLE"
	}
}

// ByStatus matches jobs in any of the given states
func ByStatus(statuses ...models.JobStatus) Predicate {
	return func(j models.Job) bool {
		for _, st := range statuses {
			if j.Status == st {
				return true
			}
		}
		return false
	}
}

// URLContains matches jobs whose URL contains sub, ignoring case
func URLContains(sub string) Predicate {
	sub = strings.ToLower(sub)
	return func(j models.Job) bool {
		return strings.Contains(strings.ToLower(j.URL), sub)
	}
}

// Viewable matches jobs whose detail view can be opened
func Viewable(j models.Job) bool {
	return j.Viewable()
}

// And matches jobs accepted by every predicate
func And(preds ...Predicate) Predicate {
	return func(j models.Job) bool {
		for _, p := range preds {
			if p != nil && !p(j) {
				return false
			}
		}
		return true
	}
}
