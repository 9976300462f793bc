package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/db"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/jobs"
	"github.com/openkaraoke/studio/logger"
)

// DbCmd represents the db command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the Open Karaoke Studio database",
	Long: `Manage database operations.

Examples:
  karaoke db stats        # Show database statistics
  karaoke db checkpoint   # Force a WAL checkpoint`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display song, job, and queue counts for the configured database",
	RunE:  runDbStats,
}

var dbCheckpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Force a WAL checkpoint",
	Long:  "Flush the write-ahead log into the main database file",
	RunE:  runDbCheckpoint,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbCheckpointCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	var songCount, queueCount int
	if err := database.QueryRow("SELECT COUNT(*) FROM songs").Scan(&songCount); err != nil {
		return errors.Wrap(err, "failed to count songs")
	}
	if err := database.QueryRow("SELECT COUNT(*) FROM karaoke_queue").Scan(&queueCount); err != nil {
		return errors.Wrap(err, "failed to count queue entries")
	}

	bus := jobs.NewBus(logger.Logger)
	jobStore := jobs.NewStore(database, bus, logger.Logger)
	stats, err := jobStore.Stats()
	if err != nil {
		return errors.Wrap(err, "failed to read job stats")
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n", cfg.Database.Path)
	fmt.Printf("Songs:         %d\n", songCount)
	fmt.Printf("Queue Entries: %d\n", queueCount)
	fmt.Println()

	fmt.Printf("Jobs by Status:\n")
	for _, status := range []jobs.Status{
		jobs.StatusPending, jobs.StatusDownloading, jobs.StatusProcessing,
		jobs.StatusFinalizing, jobs.StatusCompleted, jobs.StatusFailed,
		jobs.StatusCancelled,
	} {
		if count := stats[status]; count > 0 {
			fmt.Printf("  %-12s %d\n", status, count)
		}
	}
	return nil
}

func runDbCheckpoint(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	if err := db.Checkpoint(database); err != nil {
		return errors.Wrap(err, "checkpoint failed")
	}
	fmt.Println("WAL checkpoint complete")
	return nil
}
