package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/internal/version"
	"github.com/openkaraoke/studio/jobs"
	"github.com/openkaraoke/studio/library"
	"github.com/openkaraoke/studio/logger"
	"github.com/openkaraoke/studio/media/download"
	"github.com/openkaraoke/studio/media/lyrics"
	"github.com/openkaraoke/studio/media/metadata"
	"github.com/openkaraoke/studio/media/separate"
	"github.com/openkaraoke/studio/queue"
	"github.com/openkaraoke/studio/scheduler"
	"github.com/openkaraoke/studio/server"
	"github.com/openkaraoke/studio/song"
	"github.com/openkaraoke/studio/worker"
)

// ServeCmd starts the backend server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the Open Karaoke Studio server",
	Long: `Start the HTTP/WebSocket server together with the job worker pool.

The server exposes the song library, the processing job API, and two
WebSocket rooms: /ws/jobs for live job progress and /ws/performance for
synchronized playback control across devices.`,
	RunE: runServe,
}

var (
	serveDBPath      string
	serveLibraryPath string
)

func init() {
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
	ServeCmd.Flags().StringVar(&serveLibraryPath, "library-path", "", "Custom library path (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if serveDBPath != "" {
		cfg.Database.Path = serveDBPath
	}
	if serveLibraryPath != "" {
		cfg.Library.Path = serveLibraryPath
	}

	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	bus := jobs.NewBus(logger.Logger)
	jobStore := jobs.NewStore(database, bus, logger.Logger)
	songs := song.NewStore(database, logger.Logger)
	queueStore := queue.NewStore(database, logger.Logger)

	lib, err := library.New(cfg.Library.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to open library")
	}

	downloader, err := download.New(cfg.Download, lib, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to set up downloader (is yt-dlp installed?)")
	}
	separator, err := separate.New(cfg.Separation, lib, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to set up separator (is demucs installed?)")
	}

	provider := metadata.NewProvider(cfg.Metadata, logger.Logger)
	enricher := metadata.NewEnricher(provider, lib, songs, logger.Logger)
	lyricsFetcher := lyrics.NewFetcher(cfg.Lyrics, songs, logger.Logger)

	handler := worker.NewHandler(jobStore, songs, lib, downloader, separator, enricher, lyricsFetcher, logger.Logger)
	sched := scheduler.New(cfg.Worker, jobStore, handler, logger.Logger)
	if err := sched.Start(); err != nil {
		return errors.Wrap(err, "failed to start worker pool")
	}

	srv := server.New(cfg, songs, jobStore, queueStore, lib, sched, lyricsFetcher, bus, logger.Logger)

	if cfg.Library.Watch {
		libWatcher, err := library.NewWatcher(lib, logger.Logger)
		if err != nil {
			logger.Warnw("Library watcher unavailable", "error", err)
		} else {
			defer libWatcher.Close()
		}
	}

	if configPath := activeConfigFile(); configPath != "" {
		cfgWatcher, err := config.NewWatcher(configPath)
		if err != nil {
			logger.Warnw("Config watcher unavailable", "path", configPath, "error", err)
		} else {
			defer cfgWatcher.Close()
			cfgWatcher.OnReload(func(next *config.Config) error {
				logger.Infow("Configuration changed on disk, restart to apply server settings",
					"path", configPath,
					"pool_size", next.Worker.PoolSize,
				)
				return nil
			})
		}
	}

	printStartupBanner(cfg, sched.PoolSize())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				shutdownDone <- err
				return
			}
			shutdownDone <- sched.Stop(ctx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// activeConfigFile returns the config file the cascade would read, or
// empty when running purely on defaults.
func activeConfigFile() string {
	if _, err := os.Stat("karaoke.toml"); err == nil {
		return "karaoke.toml"
	}
	if userConfig := config.UserConfigPath(); userConfig != "" {
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig
		}
	}
	return ""
}

// printStartupBanner prints the user-facing startup summary.
func printStartupBanner(cfg *config.Config, poolSize int) {
	info := version.Get()

	pterm.DefaultBox.WithTitle("Open Karaoke Studio").Println(
		fmt.Sprintf("Version:  %s (commit %s)\nPort:     %d\nDatabase: %s\nLibrary:  %s\nWorkers:  %d",
			info.Version, info.Short(), cfg.ServerPort(), cfg.Database.Path, cfg.Library.Path, poolSize))

	pterm.Info.Printf("API at http://localhost:%d/api, WebSocket rooms at /ws/jobs and /ws/performance\n", cfg.ServerPort())
	pterm.Info.Println("Press Ctrl+C to stop")
}
