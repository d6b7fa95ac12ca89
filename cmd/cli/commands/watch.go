package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xcrape/xcrape/internal/actions"
	"github.com/xcrape/xcrape/internal/events"
	"github.com/xcrape/xcrape/internal/logger"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/poller"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/internal/snapshot"
	"github.com/xcrape/xcrape/internal/tui"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the interactive job dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			interval, err := pollInterval(cmd)
			if err != nil {
				return err
			}

			// The dashboard owns the terminal; logs go to LOG_FILE or nowhere
			var logOut io.Writer = io.Discard
			if settings.LogFile != "" {
				f, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("error opening log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			logger.Configure(settings.LogLevel, logOut)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDashboard(ctx, interval)
		},
	}

	cmd.Flags().Duration(flagPollInterval, 0, "Time between job list refreshes (env: XCRAPE_POLL_INTERVAL)")
	return cmd
}

// runDashboard wires the sync components to the terminal UI and runs until
// the user quits or ctx is done
func runDashboard(parent context.Context, interval time.Duration) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	bus := events.NewBus()
	notifier := notify.NewBusNotifier(bus)
	store := snapshot.NewStore(bus)
	sess := session.NewController(apiClient, notifier, bus)
	sched := poller.NewScheduler(apiClient, store,
		poller.WithBusyIndicator(poller.BusyFunc(func(busy bool) {
			bus.Publish(events.Event{Type: events.EventBusyChanged, Payload: busy})
		})),
		poller.WithListener(sess),
	)
	dispatcher := actions.NewDispatcher(actions.Deps{
		Client:    apiClient,
		Refresher: sched,
		Session:   sess,
		Saver:     actions.NewLocalSaver(settings.ExportDir),
		Clipboard: actions.SystemClipboard{},
		Notifier:  notifier,
	})

	model := tui.NewModel(ctx, tui.Deps{
		Store:      store,
		Session:    sess,
		Dispatcher: dispatcher,
		Refresher:  sched,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	tui.Bridge(bus, program.Send)
	bus.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("error running dashboard: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := sched.Start(gctx, interval); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	return g.Wait()
}
