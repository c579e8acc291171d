package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"credit-backend/internal/jobs"
	"credit-backend/internal/workerproc"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Resubmit the report a job belongs to",
		Long: "Resubmit clears the report's jobs, analysis result and letters and enqueues a fresh job.\n" +
			"Jobs that are still queued or processing need --force.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(b *backend) error {
				job, err := b.queue.Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("job %s: %w", args[0], err)
				}
				if !jobs.IsTerminal(job.Status) && !force {
					return fmt.Errorf("job %s is %s; pass --force to resubmit anyway", job.ID, job.Status)
				}
				next, err := b.service.Resubmit(cmd.Context(), job.UserID, job.ReportID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report %s resubmitted as job %s\n", job.ReportID, next.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Resubmit even if the job has not finished")
	return cmd
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail jobs that have not progressed within --older-than",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withBackend(cmd.Context(), func(b *backend) error {
				sweeper := &workerproc.Sweeper{Queue: b.queue, StaleAfter: olderThan}
				ids, err := sweeper.SweepOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d stale job(s)\n", len(ids))
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", workerproc.DefaultStaleAfter, "Staleness threshold")
	return cmd
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var userID, fileKey, fileName string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Create a report for an uploaded blob and enqueue its job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(b *backend) error {
				report, job, err := b.service.Create(cmd.Context(), userID, fileKey, fileName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report %s queued as job %s\n", report.ID, job.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owner user id")
	cmd.Flags().StringVar(&fileKey, "key", "", "Blob key of the uploaded report")
	cmd.Flags().StringVar(&fileName, "name", "", "Display file name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(b *backend) error {
				if b.migrate == nil {
					return errNoMigrations
				}
				if err := b.migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(b *backend) error {
				if b.version == nil {
					return errNoMigrations
				}
				v, err := b.version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d\n", v)
				return nil
			})
		},
	})
	return migrateCmd
}
