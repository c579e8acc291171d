package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"credit-backend/internal/jobs"
)

// jobView is the operator projection of a job; unlike the API read model it
// carries the owner.
type jobView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ReportID  string    `json:"report_id"`
	Status    string    `json:"status"`
	Progress  string    `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newJobView(j jobs.Job) jobView {
	return jobView{
		ID:        j.ID,
		UserID:    j.UserID,
		ReportID:  j.ReportID,
		Status:    j.Status,
		Progress:  j.ProgressLabel(),
		Error:     j.ErrorMessage(),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs with a given status",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch status {
			case jobs.StatusQueued, jobs.StatusProcessing, jobs.StatusComplete, jobs.StatusFailed:
			default:
				return fmt.Errorf("unknown status %q", status)
			}
			return ctx.withBackend(cmd.Context(), func(b *backend) error {
				items, err := b.queue.ListByStatus(cmd.Context(), status, limit)
				if err != nil {
					return err
				}
				views := make([]jobView, 0, len(items))
				for _, j := range items {
					views = append(views, newJobView(j))
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s jobs\n", status)
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						v.ID,
						v.ReportID,
						v.Progress,
						v.Error,
						v.UpdatedAt.UTC().Format(time.RFC3339),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "Report", "Progress", "Error", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", jobs.StatusFailed, "Job status: queued, processing, complete or failed")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(b *backend) error {
				job, err := b.queue.Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("job %s: %w", args[0], err)
				}
				return writeJSON(cmd, newJobView(job))
			})
		},
	}
}
