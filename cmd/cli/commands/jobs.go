package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xcrape/xcrape/internal/section"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/internal/snapshot"
	"github.com/xcrape/xcrape/internal/tui"
	"github.com/xcrape/xcrape/pkg/models"
)

// jobOutput is the JSON shape of a job in command output
type jobOutput struct {
	ID        uint   `json:"id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	HasData   bool   `json:"has_data"`
}

// jobListOutput is the JSON shape of a job listing
type jobListOutput struct {
	Jobs    []jobOutput      `json:"jobs"`
	Summary snapshot.Summary `json:"summary"`
}

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage scrape jobs",
	}

	jobsCmd.AddCommand(newListJobsCmd())
	jobsCmd.AddCommand(newGetJobCmd())
	jobsCmd.AddCommand(newDeleteJobCmd())
	jobsCmd.AddCommand(newRescrapeJobCmd())
	jobsCmd.AddCommand(newExportJobCmd())
	jobsCmd.AddCommand(newShowJobCmd())
	return jobsCmd
}

func newListJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, _ := cmd.Flags().GetStringSlice("status")
			filter, _ := cmd.Flags().GetString("filter")
			asJSON, _ := cmd.Flags().GetBool(flagJSON)

			pred, err := listPredicate(statuses, filter)
			if err != nil {
				return err
			}

			jobs, err := apiClient.ListJobs(cmd.Context())
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}
			store := snapshot.NewStore(nil)
			store.Replace(jobs)
			matched := store.Filter(pred)

			if asJSON {
				return printJSON(cmd.OutOrStdout(), jobListOutput{
					Jobs:    toOutputs(matched),
					Summary: store.Summarize(),
				})
			}

			if err := printJobs(cmd.OutOrStdout(), matched, time.Now()); err != nil {
				return err
			}
			sum := store.Summarize()
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s · %d jobs\n", sum.Label(), sum.Total)
			return nil
		},
	}

	cmd.Flags().StringSlice("status", nil, "Only show jobs with these statuses (pending, running, completed, failed)")
	cmd.Flags().StringP("filter", "f", "", "Only show jobs whose URL contains this text")
	cmd.Flags().Bool(flagJSON, false, "Print JSON instead of a table")
	return cmd
}

func listPredicate(statuses []string, filter string) (snapshot.Predicate, error) {
	var preds []snapshot.Predicate
	if len(statuses) > 0 {
		parsed := make([]models.JobStatus, 0, len(statuses))
		for _, s := range statuses {
			st, err := models.ParseJobStatus(strings.ToLower(strings.TrimSpace(s)))
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, st)
		}
		preds = append(preds, snapshot.ByStatus(parsed...))
	}
	if filter != "" {
		preds = append(preds, snapshot.URLContains(filter))
	}
	return snapshot.And(preds...), nil
}

func newGetJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a specific job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			job, err := apiClient.GetJob(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), toOutput(job))
		},
	}
}

func newDeleteJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return newDispatcher(cmd, nil).Delete(cmd.Context(), id)
		},
	}
}

func newRescrapeJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescrape <id>",
		Short: "Re-run a job; prints the new job ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			newID, err := newDispatcher(cmd, nil).Rescrape(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), newID)
			return nil
		},
	}
}

func newExportJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a job's result as JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")

			path, err := newDispatcher(cmd, nil).ExportPayload(cmd.Context(), id, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().String("format", string(models.ExportFormatJSON), "Export format (json or csv)")
	return cmd
}

func newShowJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Render one section of a job's result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			tabName, _ := cmd.Flags().GetString("tab")
			copySection, _ := cmd.Flags().GetBool("copy")
			screenshot, _ := cmd.Flags().GetBool("screenshot")
			asJSON, _ := cmd.Flags().GetBool(flagJSON)
			width, _ := cmd.Flags().GetInt("width")

			sess := newSession(cmd)
			if err := sess.Open(cmd.Context(), id); err != nil {
				return err
			}
			view := sess.View()
			if view.State != session.StateOpen {
				// no data yet; the session already reported it
				return nil
			}

			if tabName != "" {
				tab, err := section.ParseTabID(tabName)
				if err != nil {
					return err
				}
				if err := sess.SelectTab(tab); err != nil {
					return err
				}
				view = sess.View()
			}

			d := newDispatcher(cmd, sess)
			if copySection {
				if err := d.Copy(view.ActiveTab); err != nil {
					return err
				}
			}
			if screenshot {
				path, err := d.SaveScreenshot(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			if asJSON {
				data, err := section.Copy(view.ActiveTab, view.Payload)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			return printSection(cmd.OutOrStdout(), view, width)
		},
	}

	cmd.Flags().StringP("tab", "t", "", "Section to show (overview, meta, headings, links, images, text, tables, lists, technologies, social, structured, stats, raw)")
	cmd.Flags().Bool("copy", false, "Copy the section data to the clipboard")
	cmd.Flags().Bool("screenshot", false, "Save the page capture to the export directory")
	cmd.Flags().Bool(flagJSON, false, "Print the section data as JSON")
	cmd.Flags().Int("width", 100, "Wrap output at this many columns")
	return cmd
}

func printSection(out io.Writer, view session.View, width int) error {
	v, err := section.RenderPayload(view.ActiveTab, view.Payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "#%d  %s\n\n", view.JobID, tui.RenderTabs(view.Tabs, view.ActiveTab))
	fmt.Fprintln(out, tui.RenderView(v, width))
	return nil
}

var (
	statusColors = map[models.JobStatus]*color.Color{
		models.JobStatusPending:   color.New(color.FgYellow),
		models.JobStatusRunning:   color.New(color.FgCyan),
		models.JobStatusCompleted: color.New(color.FgGreen),
		models.JobStatusFailed:    color.New(color.FgRed),
	}
)

// printJobs writes jobs as an aligned table. The status column is last so its
// color codes never shift the other columns.
func printJobs(out io.Writer, jobs []models.Job, now time.Time) error {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs yet")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tURL\tSTATUS")
	for _, j := range jobs {
		status := strings.ToUpper(j.Status.String())
		if c, ok := statusColors[j.Status]; ok {
			status = c.Sprint(status)
		}
		fmt.Fprintf(w, "#%s\t%s\t%s\t%s\n", strconv.FormatUint(uint64(j.ID), 10), j.CreatedAt.Age(now), j.URL, status)
	}
	return w.Flush()
}

func printJSON(out io.Writer, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	fmt.Fprintln(out, string(prettyJSON))
	return nil
}

func toOutput(j models.Job) jobOutput {
	return jobOutput{
		ID:        j.ID,
		URL:       j.URL,
		Status:    j.Status.String(),
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		HasData:   j.HasData(),
	}
}

func toOutputs(jobs []models.Job) []jobOutput {
	out := make([]jobOutput, len(jobs))
	for i, j := range jobs {
		out[i] = toOutput(j)
	}
	return out
}
