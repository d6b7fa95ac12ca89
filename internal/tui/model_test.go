package tui

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcrape/xcrape/internal/actions"
	"github.com/xcrape/xcrape/internal/events"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/section"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/internal/snapshot"
	"github.com/xcrape/xcrape/pkg/api/v1/client"
	"github.com/xcrape/xcrape/pkg/api/v1/client/mock"
	"github.com/xcrape/xcrape/pkg/models"
)

const resultWithImages = `{"meta":{"title":"Example"},"images":[{"src":"https://example.com/a.png","alt":"a"},{"src":"not a url","alt":"b"}]}`

type countingRefresher struct {
	n atomic.Int32
}

func (r *countingRefresher) TriggerNow(context.Context) error {
	r.n.Add(1)
	return nil
}

type harness struct {
	client    *mock.MockClient
	store     *snapshot.Store
	session   *session.Controller
	refresher *countingRefresher
	notices   *notify.Recorder
	model     Model
}

func newHarness(t *testing.T) *harness {
	data := resultWithImages
	h := &harness{
		client: &mock.MockClient{
			GetJobFn: func(_ context.Context, id uint) (models.Job, error) {
				return models.Job{ID: id, Status: models.JobStatusCompleted, Data: &data}, nil
			},
		},
		store:     snapshot.NewStore(nil),
		refresher: &countingRefresher{},
		notices:   &notify.Recorder{},
	}
	h.session = session.NewController(h.client, h.notices, nil)
	d := actions.NewDispatcher(actions.Deps{
		Client:    h.client,
		Refresher: h.refresher,
		Session:   h.session,
		Saver:     actions.NewLocalSaver(t.TempDir()),
		Notifier:  h.notices,
	})
	h.model = NewModel(context.Background(), Deps{
		Store:      h.store,
		Session:    h.session,
		Dispatcher: d,
		Refresher:  h.refresher,
	})
	return h
}

func (h *harness) update(t *testing.T, msg tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.model.Update(msg)
	m, ok := next.(Model)
	require.True(t, ok)
	h.model = m
	return cmd
}

// run executes cmd the way the bubbletea runtime would and feeds its message back
func (h *harness) run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	h.update(t, msg)
	return msg
}

func (h *harness) open(t *testing.T, id uint) {
	t.Helper()
	h.store.Replace([]models.Job{{ID: id, URL: "https://example.com", Status: models.JobStatusCompleted}})
	h.update(t, SnapshotMsg{})
	h.run(t, h.update(t, tea.KeyMsg{Type: tea.KeyEnter}))
	h.update(t, SessionMsg(h.session.View()))
	require.Equal(t, session.StateOpen, h.model.view.State)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSnapshotFillsJobTable(t *testing.T) {
	h := newHarness(t)
	h.store.Replace([]models.Job{
		{ID: 1, URL: "https://a.example", Status: models.JobStatusRunning},
		{ID: 2, URL: "https://b.example", Status: models.JobStatusCompleted},
	})

	h.update(t, SnapshotMsg{})

	assert.Len(t, h.model.rows, 2)
	view := h.model.View()
	assert.Contains(t, view, "#1")
	assert.Contains(t, view, "https://b.example")
	assert.Contains(t, view, "RUNNING (1)")
	assert.Contains(t, view, "2 jobs")
}

func TestEnterOpensViewableJob(t *testing.T) {
	h := newHarness(t)
	h.open(t, 5)

	assert.Equal(t, focusDetail, h.model.focus)
	assert.Equal(t, section.TabMeta, h.model.view.ActiveTab)
	assert.Len(t, h.client.CallsTo("GetJob"), 1)
	assert.Contains(t, h.model.View(), "Meta")
}

func TestEnterOnUnfinishedJobDoesNotFetch(t *testing.T) {
	h := newHarness(t)
	h.store.Replace([]models.Job{{ID: 3, URL: "https://a.example", Status: models.JobStatusPending}})
	h.update(t, SnapshotMsg{})

	msg := h.run(t, h.update(t, tea.KeyMsg{Type: tea.KeyEnter}))

	notice, ok := msg.(NoticeMsg)
	require.True(t, ok)
	assert.Equal(t, "Job #3 has no result yet", notice.Message)
	assert.Empty(t, h.client.CallsTo("GetJob"))
	assert.Len(t, h.model.notices, 1)
}

func TestEscapeClosesDetail(t *testing.T) {
	h := newHarness(t)
	h.open(t, 5)

	h.update(t, tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, session.StateClosed, h.model.view.State)
	assert.Equal(t, session.StateClosed, h.session.View().State)
	assert.Equal(t, focusJobs, h.model.focus)
}

func TestTabKeysCycleSections(t *testing.T) {
	h := newHarness(t)
	h.open(t, 5)

	h.update(t, runes("l"))
	assert.Equal(t, section.TabHeadings, h.model.view.ActiveTab)

	h.update(t, runes("h"))
	h.update(t, runes("h"))
	assert.Equal(t, section.TabOverview, h.model.view.ActiveTab)

	h.update(t, runes("h"))
	assert.Equal(t, section.TabRaw, h.model.view.ActiveTab, "wraps around")
	assert.Len(t, h.client.CallsTo("GetJob"), 1, "switching tabs never fetches")
}

func TestDownloadSelectedImage(t *testing.T) {
	h := newHarness(t)
	h.client.DownloadImageFn = func(_ context.Context, _ uint, _ int) (client.Download, error) {
		return client.Download{Filename: "b.png", Body: []byte("not really a png")}, nil
	}
	h.open(t, 5)
	require.NoError(t, h.session.SelectTab(section.TabImages))
	h.update(t, SessionMsg(h.session.View()))

	h.update(t, runes("j"))
	assert.Equal(t, 1, h.model.imageCursor)
	h.update(t, runes("j"))
	assert.Equal(t, 1, h.model.imageCursor, "cursor stops at the last image")

	msg := h.run(t, h.update(t, tea.KeyMsg{Type: tea.KeyEnter}))

	done, ok := msg.(actionDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	calls := h.client.CallsTo("DownloadImage")
	require.Len(t, calls, 1)
	assert.Equal(t, uint(5), calls[0].ID)
	assert.Equal(t, 1, calls[0].Index)
}

func TestDeleteKeyDeletesSelectedJob(t *testing.T) {
	h := newHarness(t)
	h.store.Replace([]models.Job{{ID: 8, URL: "https://a.example", Status: models.JobStatusFailed}})
	h.update(t, SnapshotMsg{})

	h.run(t, h.update(t, runes("d")))

	calls := h.client.CallsTo("DeleteJob")
	require.Len(t, calls, 1)
	assert.Equal(t, uint(8), calls[0].ID)
	assert.Equal(t, int32(1), h.refresher.n.Load())
}

func TestSubmitClearsForm(t *testing.T) {
	h := newHarness(t)
	h.client.ScrapeFn = func(_ context.Context, req models.ScrapeRequest) (models.ScrapeResponse, error) {
		return models.ScrapeResponse{JobID: 9}, nil
	}

	h.update(t, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusURL, h.model.focus)
	h.update(t, runes("https://example.com"))
	assert.Equal(t, "https://example.com", h.model.url.Value())

	msg := h.run(t, h.update(t, tea.KeyMsg{Type: tea.KeyEnter}))

	sub, ok := msg.(submittedMsg)
	require.True(t, ok)
	require.NoError(t, sub.err)
	assert.Empty(t, h.model.url.Value())
	calls := h.client.CallsTo("Scrape")
	require.Len(t, calls, 1)
	assert.Equal(t, "https://example.com", calls[0].Req.URL)
	assert.Nil(t, calls[0].Req.Selector)
}

func TestTypingQInFormDoesNotQuit(t *testing.T) {
	h := newHarness(t)
	h.update(t, tea.KeyMsg{Type: tea.KeyTab})

	h.update(t, runes("q"))

	assert.Equal(t, "q", h.model.url.Value())
	assert.Equal(t, focusURL, h.model.focus)
}

func TestNoticesExpire(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.model.now = func() time.Time { return start }

	h.update(t, NoticeMsg(notify.Notice{Level: notify.LevelSuccess, Message: "Job #1 created", At: start}))
	assert.Contains(t, h.model.View(), "Job #1 created")

	h.update(t, noticeTickMsg(start))
	assert.Len(t, h.model.notices, 1)

	h.model.now = func() time.Time { return start.Add(notify.DefaultTTL) }
	h.update(t, noticeTickMsg(start))
	assert.Empty(t, h.model.notices)
	assert.False(t, strings.Contains(h.model.View(), "Job #1 created"))
}

func TestRepeatedNoticeShownOnce(t *testing.T) {
	h := newHarness(t)
	n := notify.Success(1, "Job #%d created", 1)

	h.update(t, NoticeMsg(n))
	h.update(t, NoticeMsg(n))

	require.Len(t, h.model.notices, 1)
	assert.Equal(t, n.ID, h.model.notices[0].ID)
}

func TestDismissKeyRemovesNewestNotice(t *testing.T) {
	h := newHarness(t)
	first := notify.Success(1, "Job #1 created")
	second := notify.Failure(2, "Failed to delete job (HTTP 404)")
	h.update(t, NoticeMsg(first))
	h.update(t, NoticeMsg(second))

	h.update(t, runes("x"))

	require.Len(t, h.model.notices, 1)
	assert.Equal(t, first.ID, h.model.notices[0].ID)
	assert.NotContains(t, h.model.View(), "HTTP 404")

	// typing into the form does not dismiss
	h.update(t, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusURL, h.model.focus)
	h.update(t, runes("x"))
	assert.Len(t, h.model.notices, 1)
}

func TestStaleSessionMsgIgnored(t *testing.T) {
	h := newHarness(t)
	h.open(t, 5)

	// a late event from before the open must not close the panel
	h.update(t, SessionMsg(session.View{State: session.StateClosed}))

	assert.Equal(t, session.StateOpen, h.model.view.State)
	assert.Equal(t, uint(5), h.model.view.JobID)
	assert.Equal(t, focusDetail, h.model.focus)
}

func TestBridgeForwardsBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	msgs := make(chan tea.Msg, 4)
	Bridge(bus, func(m tea.Msg) { msgs <- m })
	bus.Start(ctx)

	bus.Publish(events.Event{Type: events.EventBusyChanged, Payload: true})
	notify.NewBusNotifier(bus).Notify(notify.Info(0, "No data available yet"))

	var got []tea.Msg
	for len(got) < 2 {
		select {
		case m := <-msgs:
			got = append(got, m)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for bridged events")
		}
	}
	assert.Equal(t, BusyMsg(true), got[0])
	notice, ok := got[1].(NoticeMsg)
	require.True(t, ok)
	assert.Equal(t, "No data available yet", notice.Message)
}
