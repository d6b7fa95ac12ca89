// Package notify carries the user-visible notifications emitted by the sync
// components. How a notice is shown is up to the Notifier.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/xcrape/xcrape/internal/events"
)

// Level is the severity of a notice
type Level string

const (
	// LevelSuccess marks a completed user action
	LevelSuccess Level = "success"
	// LevelError marks a failed user action
	LevelError Level = "error"
	// LevelInfo marks anything else worth telling the user
	LevelInfo Level = "info"
)

// DefaultTTL is how long a notice stays on screen
const DefaultTTL = 3500 * time.Millisecond

// Notice is one user-visible notification
type Notice struct {
	ID      uuid.UUID
	Level   Level
	Message string
	JobID   uint
	At      time.Time
}

// Expired reports whether the notice should no longer be displayed at now
func (n Notice) Expired(now time.Time) bool {
	return now.Sub(n.At) >= DefaultTTL
}

func newNotice(level Level, jobID uint, format string, args ...interface{}) Notice {
	return Notice{
		ID:      uuid.New(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		JobID:   jobID,
		At:      time.Now(),
	}
}

// Success builds a success notice
func Success(jobID uint, format string, args ...interface{}) Notice {
	return newNotice(LevelSuccess, jobID, format, args...)
}

// Failure builds an error notice
func Failure(jobID uint, format string, args ...interface{}) Notice {
	return newNotice(LevelError, jobID, format, args...)
}

// Info builds an informational notice
func Info(jobID uint, format string, args ...interface{}) Notice {
	return newNotice(LevelInfo, jobID, format, args...)
}

// Notifier shows notices to the user
type Notifier interface {
	Notify(n Notice)
}

// BusNotifier publishes notices on an event bus
type BusNotifier struct {
	bus *events.Bus
}

// NewBusNotifier creates a notifier that publishes EventNotice events
func NewBusNotifier(bus *events.Bus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

// Notify implements Notifier
func (b *BusNotifier) Notify(n Notice) {
	b.bus.Publish(events.Event{Type: events.EventNotice, JobID: n.JobID, Payload: n})
}

// NoticeFromEvent extracts the notice carried by an EventNotice event
func NoticeFromEvent(e events.Event) (Notice, bool) {
	n, ok := e.Payload.(Notice)
	return n, ok
}

// Subscribe delivers every notice published on bus to fn
func Subscribe(bus *events.Bus, fn func(Notice)) {
	bus.Subscribe(events.EventNotice, func(_ context.Context, e events.Event) error {
		if n, ok := NoticeFromEvent(e); ok {
			fn(n)
		}
		return nil
	})
}

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
)

// TerminalNotifier prints notices as colored lines, for one-shot CLI commands
type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalNotifier creates a notifier writing to out
func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: out}
}

// Notify implements Notifier
func (t *TerminalNotifier) Notify(n Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s %s\n", Badge(n.Level), n.Message)
}

// Badge renders the colored marker used in front of a notice
func Badge(level Level) string {
	switch level {
	case LevelSuccess:
		return colorSuccess("[+]")
	case LevelError:
		return colorError("[!]")
	default:
		return colorInfo("[*]")
	}
}

// Recorder keeps every notice it receives
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
