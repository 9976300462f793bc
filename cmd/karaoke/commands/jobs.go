package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/jobs"
	"github.com/openkaraoke/studio/logger"
)

// JobsCmd groups processing job operations
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage processing jobs",
	Long: `Inspect and manage song processing jobs.

Job management commands:
  karaoke jobs ls              # List jobs
  karaoke jobs status <id>     # Show job details
  karaoke jobs cancel <id>     # Cancel a queued job
  karaoke jobs dismiss <id>    # Hide a finished job from listings

Examples:
  karaoke jobs ls --status processing
  karaoke jobs ls --include-dismissed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List processing jobs",
	Long: `List processing jobs, optionally filtered by status.

Status filters:
  pending      - Jobs waiting for a worker
  downloading  - Jobs fetching source audio
  processing   - Jobs in stem separation
  finalizing   - Jobs writing metadata and lyrics
  completed    - Finished jobs
  failed       - Jobs that stopped with an error
  cancelled    - Jobs cancelled by a user`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		includeDismissed, _ := cmd.Flags().GetBool("include-dismissed")
		return runJobsLs(statusFilter, includeDismissed)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show status of a processing job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsStatus(args[0])
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued job",
	Long: `Cancel a job that has not started running yet.

Jobs already being worked on belong to the running server process;
cancel those through the API (POST /api/jobs/<id>/cancel) so the worker
can stop the subprocess and clean up artifacts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsCancel(args[0])
	},
}

var jobsDismissCmd = &cobra.Command{
	Use:   "dismiss <job-id>",
	Short: "Hide a finished job from listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsDismiss(args[0])
	},
}

func init() {
	jobsLsCmd.Flags().String("status", "", "Filter by status (pending, downloading, processing, finalizing, completed, failed, cancelled)")
	jobsLsCmd.Flags().Bool("include-dismissed", false, "Include dismissed jobs")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsStatusCmd)
	JobsCmd.AddCommand(jobsCancelCmd)
	JobsCmd.AddCommand(jobsDismissCmd)
}

func openJobStore() (*jobs.Store, func(), error) {
	database, err := openDatabase("")
	if err != nil {
		return nil, nil, err
	}
	bus := jobs.NewBus(logger.Logger)
	return jobs.NewStore(database, bus, logger.Logger), func() { database.Close() }, nil
}

func runJobsLs(statusFilter string, includeDismissed bool) error {
	if statusFilter != "" && !jobs.IsValidStatus(jobs.Status(statusFilter)) {
		return errors.Newf("invalid status filter: %s", statusFilter)
	}

	store, closeDB, err := openJobStore()
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := store.List(jobs.Filter{
		Status:           jobs.Status(statusFilter),
		IncludeDismissed: includeDismissed,
	})
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}

	if len(list) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-12s %-12s %-10s %-30s %s\n", "JOB ID", "STATUS", "PROGRESS", "TITLE", "CREATED")
	fmt.Printf("%-12s %-12s %-10s %-30s %s\n", "------", "------", "--------", "-----", "-------")
	for _, job := range list {
		title := job.Title
		if title == "" {
			title = job.Filename
		}
		fmt.Printf("%-12s %-12s %-10s %-30s %s\n",
			truncate(job.ID, 12),
			job.Status,
			fmt.Sprintf("%d%%", job.Progress),
			truncate(title, 30),
			job.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d job(s)\n", len(list))
	return nil
}

func runJobsStatus(jobID string) error {
	store, closeDB, err := openJobStore()
	if err != nil {
		return err
	}
	defer closeDB()

	job, err := store.Get(jobID)
	if err != nil {
		return errors.Wrap(err, "failed to get job")
	}

	fmt.Printf("Job ID:   %s\n", job.ID)
	fmt.Printf("Song ID:  %s\n", job.SongID)
	fmt.Printf("Status:   %s\n", job.Status)
	fmt.Printf("Progress: %d%%\n", job.Progress)
	if job.Title != "" {
		fmt.Printf("Title:    %s\n", job.Title)
	}
	if job.Artist != "" {
		fmt.Printf("Artist:   %s\n", job.Artist)
	}
	if job.StatusMessage != "" {
		fmt.Printf("Message:  %s\n", job.StatusMessage)
	}
	if job.Error != "" {
		fmt.Printf("Error:    %s\n", job.Error)
	}
	if job.Notes != "" {
		fmt.Printf("Notes:    %s\n", job.Notes)
	}
	fmt.Printf("\nCreated:  %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("Started:  %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Finished: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJobsCancel(jobID string) error {
	store, closeDB, err := openJobStore()
	if err != nil {
		return err
	}
	defer closeDB()

	job, err := store.Get(jobID)
	if err != nil {
		return errors.Wrap(err, "failed to get job")
	}
	if job.Status != jobs.StatusPending {
		return errors.Newf("job %s is %s; only pending jobs can be cancelled from the CLI, use the API for running jobs",
			jobID, job.Status)
	}

	if err := job.Cancel(); err != nil {
		return err
	}
	if err := store.Update(job); err != nil {
		return errors.Wrap(err, "failed to persist cancellation")
	}
	fmt.Printf("Job %s cancelled\n", jobID)
	return nil
}

func runJobsDismiss(jobID string) error {
	store, closeDB, err := openJobStore()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := store.Dismiss(jobID); err != nil {
		return errors.Wrap(err, "failed to dismiss job")
	}
	fmt.Printf("Job %s dismissed\n", jobID)
	return nil
}

// truncate shortens s to max characters with an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
