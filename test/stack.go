package test

import (
	"sync"

	"github.com/xcrape/xcrape/internal/actions"
	"github.com/xcrape/xcrape/internal/events"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/poller"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/internal/snapshot"
)

// MemClipboard keeps the last copied text
type MemClipboard struct {
	mu   sync.Mutex
	text string
}

// WriteAll implements actions.Clipboard
func (c *MemClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

// Text returns the last copied text
func (c *MemClipboard) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// SetupSyncStack wires store, scheduler, session and dispatcher to the suite's
// API client. The scheduler is not started; tests drive it with Refresh.
func SetupSyncStack(suite *Suite) {
	suite.Bus = events.NewBus()
	suite.Bus.Start(suite.ctx)

	suite.Notices = &notify.Recorder{}
	suite.Clipboard = &MemClipboard{}
	suite.ExportDir = suite.t.TempDir()

	suite.Store = snapshot.NewStore(suite.Bus)
	suite.Session = session.NewController(suite.APIClient, suite.Notices, suite.Bus)
	suite.Scheduler = poller.NewScheduler(suite.APIClient, suite.Store,
		poller.WithListener(suite.Session),
		poller.WithMinBusy(0),
	)
	suite.Dispatcher = actions.NewDispatcher(actions.Deps{
		Client:    suite.APIClient,
		Refresher: suite.Scheduler,
		Session:   suite.Session,
		Saver:     actions.NewLocalSaver(suite.ExportDir),
		Clipboard: suite.Clipboard,
		Notifier:  suite.Notices,
	})

	originalCleanup := suite.cleanup
	suite.cleanup = func() {
		suite.Scheduler.Stop()
		if originalCleanup != nil {
			originalCleanup()
		}
	}
}
