// Command report-import ingests report CSV files from disk, runs the ingest
// queue worker and applies migrations.
package main

import (
	"errors"
	"fmt"
	"os"

	"ngo-report-api/bootstrap"
	"ngo-report-api/config"

	"github.com/spf13/cobra"
)

// exitPartial is returned when a file was ingested but some rows failed.
const exitPartial = 2

var app *bootstrap.App

var rootCmd = &cobra.Command{
	Use:           "report-import",
	Short:         "Bulk ingestion tools for NGO monthly reports",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		settings, err := config.Load()
		if err != nil {
			return err
		}
		config.InitLogging(settings.Environment)

		app, err = bootstrap.New(settings)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(newFileCmd(), newWorkerCmd(), newMigrateCmd())
	err := rootCmd.Execute()
	if app != nil {
		app.Close()
	}
	if err != nil {
		var partial *partialFailure
		if errors.As(err, &partial) {
			fmt.Fprintln(os.Stderr, partial.Error())
			os.Exit(exitPartial)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Migrate(); err != nil {
				return err
			}
			fmt.Println("Migrations applied.")
			return nil
		},
	}
}
