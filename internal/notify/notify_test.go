package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcrape/xcrape/internal/events"
)

func TestNoticeBuilders(t *testing.T) {
	n := Success(7, "Job #%d created", 7)
	assert.Equal(t, LevelSuccess, n.Level)
	assert.Equal(t, "Job #7 created", n.Message)
	assert.Equal(t, uint(7), n.JobID)

	other := Failure(0, "Network error")
	assert.NotEqual(t, n.ID, other.ID)
	assert.Equal(t, LevelError, other.Level)

	assert.False(t, n.Expired(n.At.Add(time.Second)))
	assert.True(t, n.Expired(n.At.Add(DefaultTTL)))
}

func TestTerminalNotifier(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	tn := NewTerminalNotifier(&buf)
	tn.Notify(Success(1, "Job #1 deleted"))
	tn.Notify(Failure(0, "Failed to delete job"))
	tn.Notify(Info(0, "No data available yet"))

	assert.Equal(t, "[+] Job #1 deleted\n[!] Failed to delete job\n[*] No data available yet\n", buf.String())
}

func TestBusNotifier(t *testing.T) {
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	got := make(chan Notice, 1)
	Subscribe(bus, func(n Notice) { got <- n })

	sent := Info(3, "JSON export started")
	NewBusNotifier(bus).Notify(sent)

	select {
	case n := <-got:
		assert.Equal(t, sent.ID, n.ID)
		assert.Equal(t, "JSON export started", n.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notice was not delivered")
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(Info(0, "one"))
	r.Notify(Info(0, "two"))
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "two", last.Message)
	assert.Len(t, r.Notices(), 2)
}
