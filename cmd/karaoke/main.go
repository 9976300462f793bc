package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openkaraoke/studio/cmd/karaoke/commands"
	"github.com/openkaraoke/studio/logger"
)

var rootCmd = &cobra.Command{
	Use:   "karaoke",
	Short: "Open Karaoke Studio - self-hosted karaoke track backend",
	Long: `Open Karaoke Studio - self-hosted karaoke track creation and playback.

Downloads source audio, separates vocal and instrumental stems, enriches
metadata and lyrics, and serves the resulting library over HTTP and
WebSocket for synchronized performance sessions.

Available commands:
  serve   - Start the HTTP/WebSocket server and job workers
  jobs    - Inspect and manage processing jobs
  db      - Manage database operations
  config  - Show and edit configuration
  version - Show version information

Examples:
  karaoke serve                  # Start the backend
  karaoke jobs ls                # List processing jobs
  karaoke db stats               # Show database statistics
  karaoke config show            # Show effective configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
