package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ngo-report-api/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type partialFailure struct {
	jobID  string
	failed int64
	total  int64
}

func (p *partialFailure) Error() string {
	return fmt.Sprintf("job %s: %d of %d rows failed", p.jobID, p.failed, p.total)
}

func newFileCmd() *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Ingest a report CSV from disk",
		Long: `Creates a bulk upload job for the file and processes it in this process.
With --enqueue the job is handed to the configured dispatcher instead.
Exits with status 2 when some rows failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			ctx := cmd.Context()
			jobID := uuid.NewString()
			if _, err := app.Jobs.Create(ctx, jobID, filepath.Base(path)); err != nil {
				return err
			}

			if enqueue {
				if err := app.Dispatcher.Dispatch(ctx, jobID, content); err != nil {
					return err
				}
				fmt.Printf("Job %s dispatched (%s mode).\n", jobID, app.Dispatcher.Mode())
				return nil
			}

			processErr := app.Ingestion.Process(ctx, jobID, content)
			job, err := app.Jobs.Get(ctx, jobID)
			if err != nil {
				return err
			}
			printJob(job)
			if processErr != nil {
				return processErr
			}
			if job.FailedRows > 0 {
				return &partialFailure{jobID: jobID, failed: job.FailedRows, total: job.TotalRows}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "dispatch the job instead of processing it here")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process jobs from the Redis ingest queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			worker, err := app.NewQueueWorker()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return worker.Run(ctx)
		},
	}
}

func printJob(job *models.BulkUploadJob) {
	fmt.Printf("Job %s (%s): %s\n", job.JobID, job.FileName, job.Status)
	fmt.Printf("Rows: total %d, processed %d, successful %d, failed %d\n",
		job.TotalRows, job.ProcessedRows, job.SuccessfulRows, job.FailedRows)
	if job.ErrorMessage != nil {
		fmt.Println(*job.ErrorMessage)
	}
}
