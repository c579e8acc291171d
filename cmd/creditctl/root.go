package main

import (
	"github.com/spf13/cobra"

	"credit-backend/internal/shared/telemetry"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWith(openPostgres)
}

func newRootCommandWith(open openFunc) *cobra.Command {
	var databaseURL string
	var logLevel string

	ctx := &commandContext{databaseURL: &databaseURL, open: open}

	rootCmd := &cobra.Command{
		Use:           "creditctl",
		Short:         "Operate the credit report job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return telemetry.Init("production", logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for operation events")

	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newRetryCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))
	rootCmd.AddCommand(newEnqueueCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))

	return rootCmd
}
