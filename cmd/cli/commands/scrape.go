package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcrape/xcrape/internal/actions"
	"github.com/xcrape/xcrape/internal/poller"
	"github.com/xcrape/xcrape/internal/snapshot"
	"github.com/xcrape/xcrape/pkg/models"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Submit a scrape job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, _ := cmd.Flags().GetString("selector")
			wait, _ := cmd.Flags().GetBool("wait")

			form := &actions.StaticForm{URL: args[0], Selector: selector}
			id, err := newDispatcher(cmd, nil).Submit(cmd.Context(), form)
			if err != nil {
				return err
			}
			if !wait {
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}

			interval, err := pollInterval(cmd)
			if err != nil {
				return err
			}
			job, err := waitForJob(cmd.Context(), id, interval)
			if err != nil {
				return err
			}
			return printJobs(cmd.OutOrStdout(), []models.Job{job}, time.Now())
		},
	}

	cmd.Flags().String("selector", "", "CSS selector whose matches are captured")
	cmd.Flags().BoolP("wait", "w", false, "Wait until the job completed or failed")
	cmd.Flags().Duration(flagPollInterval, 0, "Polling interval while waiting (env: XCRAPE_POLL_INTERVAL)")
	return cmd
}

// pollInterval resolves the polling interval: flag > env > default
func pollInterval(cmd *cobra.Command) (time.Duration, error) {
	if !cmd.Flags().Changed(flagPollInterval) {
		return settings.PollInterval, nil
	}
	d, _ := cmd.Flags().GetDuration(flagPollInterval)
	if d <= 0 {
		return 0, fmt.Errorf("poll interval must be positive")
	}
	return d, nil
}

// jobWatch reports the first snapshot in which a job is terminal or missing
type jobWatch struct {
	id   uint
	once sync.Once
	done chan watchResult
}

type watchResult struct {
	job   models.Job
	found bool
}

func (w *jobWatch) OnSnapshot(_ context.Context, jobs []models.Job) {
	for _, j := range jobs {
		if j.ID != w.id {
			continue
		}
		if j.Status.Terminal() {
			w.once.Do(func() { w.done <- watchResult{job: j, found: true} })
		}
		return
	}
	w.once.Do(func() { w.done <- watchResult{} })
}

// waitForJob polls the job list until job id is terminal
func waitForJob(ctx context.Context, id uint, interval time.Duration) (models.Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	w := &jobWatch{id: id, done: make(chan watchResult, 1)}
	s := poller.NewScheduler(apiClient, snapshot.NewStore(nil), poller.WithListener(w), poller.WithMinBusy(0))
	if err := s.Start(ctx, interval); err != nil {
		return models.Job{}, err
	}
	defer s.Stop()

	select {
	case res := <-w.done:
		if !res.found {
			return models.Job{}, fmt.Errorf("job %d no longer exists", id)
		}
		return res.job, nil
	case <-ctx.Done():
		return models.Job{}, ctx.Err()
	}
}
