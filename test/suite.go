package test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/xcrape/xcrape/internal/actions"
	"github.com/xcrape/xcrape/internal/events"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/poller"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/internal/snapshot"
	"github.com/xcrape/xcrape/pkg/api/v1/client"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - A file-based SQLite jobs table
//   - A fake scraping backend served over HTTP
//   - The real API client
//   - The client-side sync stack wired the way the dashboard wires it
type Suite struct {
	t *testing.T // The testing.T instance for this suite

	// Server components
	App     *fiber.App
	Server  *httptest.Server
	Backend *Backend

	// Client components
	APIClient client.Client

	// Sync components
	Bus        *events.Bus
	Store      *snapshot.Store
	Scheduler  *poller.Scheduler
	Session    *session.Controller
	Dispatcher *actions.Dispatcher
	Notices    *notify.Recorder
	Clipboard  *MemClipboard
	ExportDir  string

	// Database components
	DB *gorm.DB

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc

	// Cleanup function
	cleanup func()
}

// SetS sets the suite instance for this suite
func (s *Suite) SetS(_ suite.TestingSuite) {
	// This method is required by suite.TestingSuite but we don't need to do anything here
}

// SetT sets the testing.T instance for this suite
func (s *Suite) SetT(t *testing.T) {
	s.t = t
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// NewSuite creates a new test suite. The suite must be cleaned up after use by
// calling Cleanup.
func NewSuite(t *testing.T) *Suite {
	t.Helper()

	// Create suite with default timeout
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)

	s := &Suite{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
	}

	// Initialize cleanup function
	s.cleanup = func() {
		if s.cancelFunc != nil {
			s.cancelFunc()
		}
	}

	SetupTestDB(s, nil)
	SetupServer(s)
	SetupSyncStack(s)

	return s
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
// This is a convenience method to avoid passing t around.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}

// Refresh runs one fetch of the job list and waits for it
func (s *Suite) Refresh() {
	s.t.Helper()
	s.Require().NoError(s.Scheduler.TriggerNow(s.ctx))
}

// LastNotice returns the most recent notice
func (s *Suite) LastNotice() notify.Notice {
	s.t.Helper()
	n, ok := s.Notices.Last()
	s.Require().True(ok, "expected a notice")
	return n
}
