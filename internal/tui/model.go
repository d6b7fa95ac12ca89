// Package tui is the interactive terminal front end of the watch command. It
// only presents state owned by the snapshot store and the detail session and
// forwards key presses to the action dispatcher.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/truncate"

	"github.com/xcrape/xcrape/internal/actions"
	"github.com/xcrape/xcrape/internal/events"
	"github.com/xcrape/xcrape/internal/logger"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/section"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/internal/snapshot"
	"github.com/xcrape/xcrape/pkg/models"
)

const (
	noticeTick   = 500 * time.Millisecond
	maxNotices   = 3
	minTableRows = 5
)

type focus int

const (
	focusJobs focus = iota
	focusURL
	focusSelector
	focusDetail
)

// Refresher triggers an out-of-band job list fetch
type Refresher interface {
	TriggerNow(ctx context.Context) error
}

// Deps are the components the model presents and drives
type Deps struct {
	Store      *snapshot.Store
	Session    *session.Controller
	Dispatcher *actions.Dispatcher
	Refresher  Refresher
}

// SnapshotMsg tells the model the job snapshot was replaced
type SnapshotMsg struct{}

// SessionMsg carries the detail session after a change
type SessionMsg session.View

// NoticeMsg carries a notice to display
type NoticeMsg notify.Notice

// BusyMsg turns the refresh indicator on or off
type BusyMsg bool

type noticeTickMsg time.Time

type submittedMsg struct {
	form *actions.StaticForm
	err  error
}

type actionDoneMsg struct {
	name string
	err  error
}

// Model is the main application model
type Model struct {
	ctx  context.Context
	deps Deps
	now  func() time.Time

	jobs     table.Model
	url      textinput.Model
	selector textinput.Model
	detail   viewport.Model
	spinner  spinner.Model
	help     help.Model

	focus       focus
	rows        []models.Job
	summary     snapshot.Summary
	view        session.View
	busy        bool
	notices     []notify.Notice
	imageCursor int

	width    int
	height   int
	urlWidth int
}

// NewModel creates the model. ctx bounds every command the model starts.
func NewModel(ctx context.Context, deps Deps) Model {
	t := table.New(
		table.WithColumns(jobColumns(80)),
		table.WithFocused(true),
		table.WithHeight(minTableRows),
	)

	url := textinput.New()
	url.Placeholder = "https://example.com"
	url.Prompt = "URL › "
	url.CharLimit = 2048

	sel := textinput.New()
	sel.Placeholder = "optional CSS selector"
	sel.Prompt = "Selector › "
	sel.CharLimit = 256

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		deps:     deps,
		now:      time.Now,
		jobs:     t,
		url:      url,
		selector: sel,
		detail:   viewport.New(80, 10),
		spinner:  sp,
		help:     help.New(),
		width:    80,
		height:   24,
		urlWidth: urlColumnWidth(80),
	}
	m.syncRows()
	m.view = deps.Session.View()
	return m
}

// Bridge forwards bus events to send, typically tea.Program.Send
func Bridge(bus *events.Bus, send func(tea.Msg)) {
	bus.Subscribe(events.EventSnapshotReplaced, func(context.Context, events.Event) error {
		send(SnapshotMsg{})
		return nil
	})
	bus.Subscribe(events.EventSessionChanged, func(_ context.Context, e events.Event) error {
		if v, ok := e.Payload.(session.View); ok {
			send(SessionMsg(v))
		}
		return nil
	})
	bus.Subscribe(events.EventBusyChanged, func(_ context.Context, e events.Event) error {
		if b, ok := e.Payload.(bool); ok {
			send(BusyMsg(b))
		}
		return nil
	})
	notify.Subscribe(bus, func(n notify.Notice) {
		send(NoticeMsg(n))
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, noticeTickCmd())
}

func noticeTickCmd() tea.Cmd {
	return tea.Tick(noticeTick, func(t time.Time) tea.Msg { return noticeTickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case SnapshotMsg:
		m.syncRows()
		return m, nil

	case SessionMsg:
		prev := m.view.State
		// the controller view wins over late or dropped events
		m.view = session.View(msg)
		if m.deps.Session != nil {
			m.view = m.deps.Session.View()
		}
		if m.view.State == session.StateOpen && prev != session.StateOpen {
			m.setFocus(focusDetail)
			m.imageCursor = 0
		}
		if m.view.State == session.StateClosed && m.focus == focusDetail {
			m.setFocus(focusJobs)
		}
		m.syncDetail()
		return m, nil

	case NoticeMsg:
		n := notify.Notice(msg)
		if n.ID != uuid.Nil && m.hasNotice(n.ID) {
			return m, nil
		}
		m.notices = append(m.notices, n)
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		return m, nil

	case BusyMsg:
		m.busy = bool(msg)
		return m, nil

	case noticeTickMsg:
		now := m.now()
		kept := m.notices[:0]
		for _, n := range m.notices {
			if !n.Expired(now) {
				kept = append(kept, n)
			}
		}
		m.notices = kept
		return m, noticeTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case submittedMsg:
		if msg.err == nil && msg.form.Cleared() {
			m.url.Reset()
			m.selector.Reset()
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			logger.Debugf("%s failed: %v", msg.name, msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	inInput := m.focus == focusURL || m.focus == focusSelector

	switch {
	case msg.String() == "ctrl+c", key.Matches(msg, keys.Quit) && !inInput:
		return m, tea.Quit
	case key.Matches(msg, keys.SwitchFocus):
		m.cycleFocus()
		return m, nil
	case key.Matches(msg, keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, keys.Close):
		if m.view.State != session.StateClosed {
			m.deps.Session.Close()
			m.view = m.deps.Session.View()
			m.syncDetail()
			m.setFocus(focusJobs)
		} else if inInput {
			m.setFocus(focusJobs)
		}
		return m, nil
	case key.Matches(msg, keys.ToggleHelp) && !inInput:
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, keys.Dismiss) && !inInput && len(m.notices) > 0:
		m.dismissNotice(m.notices[len(m.notices)-1].ID)
		return m, nil
	}

	switch m.focus {
	case focusURL, focusSelector:
		return m.handleInputKey(msg)
	case focusDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleJobsKey(msg)
	}
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Open) {
		return m, m.submitCmd()
	}
	var cmd tea.Cmd
	if m.focus == focusURL {
		m.url, cmd = m.url.Update(msg)
	} else {
		m.selector, cmd = m.selector.Update(msg)
	}
	return m, cmd
}

func (m Model) handleJobsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	job, ok := m.selectedJob()

	switch {
	case key.Matches(msg, keys.Open):
		if !ok {
			return m, nil
		}
		if !job.Viewable() {
			return m, m.noticeCmd(notify.Info(job.ID, "Job #%d has no result yet", job.ID))
		}
		return m, m.openCmd(job.ID)
	case key.Matches(msg, keys.Delete):
		if ok {
			return m, m.deleteCmd(job.ID)
		}
		return m, nil
	case key.Matches(msg, keys.Rescrape):
		if ok {
			return m, m.rescrapeCmd(job.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.jobs, cmd = m.jobs.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.view.JobID
	if m.view.State != session.StateOpen {
		if key.Matches(msg, keys.Delete) && id != 0 {
			return m, m.deleteCmd(id)
		}
		return m, nil
	}

	onImages := m.view.ActiveTab == section.TabImages

	switch {
	case key.Matches(msg, keys.PrevTab):
		m.shiftTab(-1)
		return m, nil
	case key.Matches(msg, keys.NextTab):
		m.shiftTab(1)
		return m, nil
	case key.Matches(msg, keys.Copy):
		tab := m.view.ActiveTab
		return m, m.actionCmd("copy", func(context.Context) error { return m.deps.Dispatcher.Copy(tab) })
	case key.Matches(msg, keys.ExportJSON):
		return m, m.exportCmd(id, "json")
	case key.Matches(msg, keys.ExportCSV):
		return m, m.exportCmd(id, "csv")
	case key.Matches(msg, keys.DownloadAll):
		return m, m.actionCmd("download all images", func(ctx context.Context) error {
			_, err := m.deps.Dispatcher.DownloadAllImages(ctx, id)
			return err
		})
	case key.Matches(msg, keys.Screenshot):
		return m, m.actionCmd("save screenshot", func(ctx context.Context) error {
			_, err := m.deps.Dispatcher.SaveScreenshot(ctx)
			return err
		})
	case key.Matches(msg, keys.Delete):
		return m, m.deleteCmd(id)
	case key.Matches(msg, keys.Rescrape):
		return m, m.rescrapeCmd(id)
	case onImages && key.Matches(msg, keys.Up):
		if m.imageCursor > 0 {
			m.imageCursor--
			m.syncDetail()
		}
		return m, nil
	case onImages && key.Matches(msg, keys.Down):
		if m.imageCursor < m.imageCount()-1 {
			m.imageCursor++
			m.syncDetail()
		}
		return m, nil
	case onImages && key.Matches(msg, keys.Open):
		if m.imageCount() == 0 {
			return m, nil
		}
		index := m.imageCursor
		return m, m.actionCmd("download image", func(ctx context.Context) error {
			_, err := m.deps.Dispatcher.DownloadImage(ctx, id, index)
			return err
		})
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *Model) shiftTab(delta int) {
	tabs := m.view.Tabs
	if len(tabs) < 2 {
		return
	}
	cur := 0
	for i, t := range tabs {
		if t == m.view.ActiveTab {
			cur = i
		}
	}
	next := tabs[(cur+delta+len(tabs))%len(tabs)]
	if err := m.deps.Session.SelectTab(next); err != nil {
		logger.Debugf("select tab %s: %v", next, err)
		return
	}
	m.view = m.deps.Session.View()
	m.imageCursor = 0
	m.syncDetail()
}

func (m *Model) cycleFocus() {
	order := []focus{focusJobs, focusURL, focusSelector}
	if m.view.State != session.StateClosed {
		order = append(order, focusDetail)
	}
	next := order[0]
	for i, f := range order {
		if f == m.focus {
			next = order[(i+1)%len(order)]
		}
	}
	m.setFocus(next)
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	m.url.Blur()
	m.selector.Blur()
	m.jobs.Blur()
	switch f {
	case focusURL:
		m.url.Focus()
	case focusSelector:
		m.selector.Focus()
	case focusJobs:
		m.jobs.Focus()
	}
}

func (m Model) selectedJob() (models.Job, bool) {
	i := m.jobs.Cursor()
	if i < 0 || i >= len(m.rows) {
		return models.Job{}, false
	}
	return m.rows[i], true
}

func (m Model) imageCount() int {
	if v, err := section.RenderPayload(section.TabImages, m.view.Payload); err == nil && !v.Empty {
		for _, b := range v.Blocks {
			if b.Kind == section.BlockCards {
				return len(b.Cards)
			}
		}
	}
	return 0
}

// syncRows copies the snapshot into the job table
func (m *Model) syncRows() {
	m.rows = m.deps.Store.Jobs()
	m.summary = m.deps.Store.Summarize()

	now := m.now()
	rows := make([]table.Row, 0, len(m.rows))
	for _, j := range m.rows {
		rows = append(rows, table.Row{
			"#" + strconv.FormatUint(uint64(j.ID), 10),
			truncate.StringWithTail(j.URL, uint(m.urlWidth), "…"),
			strings.ToUpper(j.Status.String()),
			j.CreatedAt.Age(now),
		})
	}
	m.jobs.SetRows(rows)
	if c := m.jobs.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.jobs.SetCursor(len(rows) - 1)
	}
}

// syncDetail re-renders the active tab into the viewport
func (m *Model) syncDetail() {
	if m.view.State != session.StateOpen {
		m.detail.SetContent("")
		return
	}
	v, err := section.RenderPayload(m.view.ActiveTab, m.view.Payload)
	if err != nil {
		m.detail.SetContent(mutedStyle.Render(err.Error()))
		return
	}
	content := RenderView(v, m.detail.Width-2)
	if v.Tab == section.TabImages && !v.Empty {
		content = mutedStyle.Render(fmt.Sprintf("selected image %d · enter to download", m.imageCursor+1)) + "\n\n" + content
	}
	m.detail.SetContent(content)
	m.detail.GotoTop()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	inner := width - 4
	if inner < minRenderWidth {
		inner = minRenderWidth
	}
	m.url.Width = inner / 2
	m.selector.Width = inner/2 - 12

	tableRows := height/3 - 2
	if tableRows < minTableRows {
		tableRows = minTableRows
	}
	m.urlWidth = urlColumnWidth(inner)
	m.jobs.SetColumns(jobColumns(inner))
	m.jobs.SetHeight(tableRows)

	detailHeight := height - tableRows - 14
	if detailHeight < 5 {
		detailHeight = 5
	}
	m.detail.Width = inner
	m.detail.Height = detailHeight
	m.syncRows()
	m.syncDetail()
}

func urlColumnWidth(width int) int {
	w := width - 8 - 11 - 12 - 8
	if w < 20 {
		w = 20
	}
	return w
}

func jobColumns(width int) []table.Column {
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "URL", Width: urlColumnWidth(width)},
		{Title: "Status", Width: 11},
		{Title: "Created", Width: 12},
	}
}

func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderForm(),
		m.panel(m.jobs.View(), m.focus == focusJobs),
	}
	if d := m.renderDetail(); d != "" {
		sections = append(sections, d)
	}
	if n := m.renderNotices(); n != "" {
		sections = append(sections, n)
	}
	sections = append(sections, m.help.View(keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	parts := []string{titleStyle.Render("XCRAPE")}
	if m.busy {
		parts = append(parts, m.spinner.View())
	}
	parts = append(parts,
		summaryStyle.Render(m.summary.Label()),
		mutedStyle.Render(fmt.Sprintf("%d jobs", m.summary.Total)),
	)
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderForm() string {
	form := m.url.View() + "   " + m.selector.View()
	return m.panel(form, m.focus == focusURL || m.focus == focusSelector)
}

func (m Model) renderDetail() string {
	switch m.view.State {
	case session.StateLoading:
		msg := fmt.Sprintf("Loading job #%d…", m.view.JobID)
		if m.view.Waiting {
			msg = fmt.Sprintf("Waiting for job #%d to finish…", m.view.JobID)
		}
		return m.panel(mutedStyle.Render(msg), m.focus == focusDetail)
	case session.StateOpen:
		head := titleStyle.Render(fmt.Sprintf("#%d", m.view.JobID))
		if job, ok := m.deps.Store.Get(m.view.JobID); ok {
			head += " " + statusStyle(job.Status.String()).Render(strings.ToUpper(job.Status.String()))
		}
		head += "  " + RenderTabs(m.view.Tabs, m.view.ActiveTab)
		return m.panel(head+"\n"+m.detail.View(), m.focus == focusDetail)
	default:
		return ""
	}
}

func (m Model) renderNotices() string {
	lines := make([]string, 0, len(m.notices))
	for _, n := range m.notices {
		lines = append(lines, notify.Badge(n.Level)+" "+n.Message)
	}
	return strings.Join(lines, "\n")
}

func (m Model) panel(content string, focused bool) string {
	style := panelStyle
	if focused {
		style = focusPanelStyle
	}
	return style.Width(m.width - 2).Render(content)
}

func (m Model) actionCmd(name string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{name: name, err: fn(ctx)}
	}
}

func (m Model) submitCmd() tea.Cmd {
	form := &actions.StaticForm{URL: m.url.Value(), Selector: m.selector.Value()}
	d, ctx := m.deps.Dispatcher, m.ctx
	return func() tea.Msg {
		_, err := d.Submit(ctx, form)
		return submittedMsg{form: form, err: err}
	}
}

func (m Model) openCmd(id uint) tea.Cmd {
	s := m.deps.Session
	return m.actionCmd("open job", func(ctx context.Context) error { return s.Open(ctx, id) })
}

func (m Model) deleteCmd(id uint) tea.Cmd {
	d := m.deps.Dispatcher
	return m.actionCmd("delete job", func(ctx context.Context) error { return d.Delete(ctx, id) })
}

func (m Model) rescrapeCmd(id uint) tea.Cmd {
	d := m.deps.Dispatcher
	return m.actionCmd("re-run job", func(ctx context.Context) error {
		_, err := d.Rescrape(ctx, id)
		return err
	})
}

func (m Model) exportCmd(id uint, format string) tea.Cmd {
	d := m.deps.Dispatcher
	return m.actionCmd("export job", func(ctx context.Context) error {
		_, err := d.ExportPayload(ctx, id, format)
		return err
	})
}

func (m Model) refreshCmd() tea.Cmd {
	r := m.deps.Refresher
	if r == nil {
		return nil
	}
	return m.actionCmd("refresh", r.TriggerNow)
}

func (m Model) hasNotice(id uuid.UUID) bool {
	for _, n := range m.notices {
		if n.ID == id {
			return true
		}
	}
	return false
}

// dismissNotice drops the notice with id; notices are otherwise removed on expiry
func (m *Model) dismissNotice(id uuid.UUID) {
	kept := m.notices[:0]
	for _, n := range m.notices {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	m.notices = kept
}

func (m Model) noticeCmd(n notify.Notice) tea.Cmd {
	return func() tea.Msg { return NoticeMsg(n) }
}
