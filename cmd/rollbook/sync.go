package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollbook/rollbook/internal/record"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload pending local writes to the remote store",
	Long: `Drain the pending-sync queue: every record written since the last
successful sync is uploaded. Records that fail stay queued for the next run.`,
	Run: func(cmd *cobra.Command, args []string) {
		syncer, st, cleanup, err := openSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		start := time.Now()
		if err := syncer.SyncAll(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		remaining := 0
		for _, ids := range st.Pending(cmd.Context()) {
			remaining += len(ids)
		}
		fmt.Printf("Sync complete in %v (%d still pending)\n",
			time.Since(start).Round(time.Millisecond), remaining)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download remote collections into the local store",
	Long: `Pull every remote collection and write it into the local store.
Locally deleted subjects stay deleted until 'rollbook restore' is run.`,
	Run: func(cmd *cobra.Command, args []string) {
		syncer, _, cleanup, err := openSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := syncer.FetchAll(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error during fetch: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Fetch complete")
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore from cloud, re-admitting locally deleted subjects",
	Run: func(cmd *cobra.Command, args []string) {
		syncer, _, cleanup, err := openSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := syncer.RestoreFromCloud(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error during restore: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Restore complete")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending-sync counts per collection",
	Run: func(cmd *cobra.Command, args []string) {
		st, closeStore, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closeStore()

		ctx := cmd.Context()
		pending := st.Pending(ctx)

		total := 0
		for _, collection := range record.SyncedCollections {
			n := len(pending[collection])
			total += n
			fmt.Printf("  %-12s %d pending\n", collection, n)
		}

		tombstones := st.DeletedSubjects(ctx)
		if len(tombstones) > 0 {
			sort.Strings(tombstones)
			fmt.Printf("  %d subject(s) deleted locally (run 'rollbook restore' to re-admit)\n", len(tombstones))
		}

		if total == 0 {
			fmt.Println("Everything synced")
		}
	},
}

var (
	wipeLocal  bool
	wipeRemote bool
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Permanently delete data (local, remote, or both)",
	Long: `Delete persisted data. --local clears every on-device collection,
the pending queue, and tombstones. --remote deletes every remote record
and the account profile. This cannot be undone.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !wipeLocal && !wipeRemote {
			fmt.Fprintln(os.Stderr, "Error: specify --local, --remote, or both")
			os.Exit(1)
		}

		syncer, _, cleanup, err := openSyncer()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if wipeRemote {
			if err := syncer.WipeRemote(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "Error wiping remote data: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Remote data deleted")
		}
		if wipeLocal {
			if err := syncer.WipeLocal(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "Error wiping local data: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Local data cleared")
		}
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeLocal, "local", false, "clear all local data")
	wipeCmd.Flags().BoolVar(&wipeRemote, "remote", false, "delete all remote data for this account")

	rootCmd.AddCommand(syncCmd, fetchCmd, restoreCmd, statusCmd, wipeCmd)
}
