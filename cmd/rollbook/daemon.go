package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rollbook/rollbook/internal/daemon"
	"github.com/rollbook/rollbook/internal/storage"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background auto-sync loop",
	Long: `Run the auto-sync daemon in the foreground. Pending writes are pushed
on an interval and shortly after each local write. A failed pass is simply
retried on the next interval; the pending queue holds the work in between.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := daemonLogger()

		syncer, st, cleanup, err := openSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		config := &daemon.Config{
			Interval:         viper.GetDuration("daemon.interval"),
			DebounceInterval: viper.GetDuration("daemon.debounce"),
			Logger:           logger,
		}
		// The file backend's data dir can be watched for writes made by
		// other processes sharing the store.
		if storage.Kind(viper.GetString("backend")) == storage.KindFile {
			config.WatchDir = filepath.Join(viper.GetString("data_dir"), "collections")
		}

		d, err := daemon.New(syncer, st, config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
			os.Exit(1)
		}
	},
}

// daemonLogger logs to a rotated file when daemon.log_file is configured,
// otherwise to stderr.
func daemonLogger() *log.Logger {
	logFile := viper.GetString("daemon.log_file")
	if logFile == "" {
		return log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}, "[daemon] ", log.LstdFlags)
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
