package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rollbook/rollbook/internal/auth"
	"github.com/rollbook/rollbook/internal/remote"
	"github.com/rollbook/rollbook/internal/storage"
	"github.com/rollbook/rollbook/internal/store"
	"github.com/rollbook/rollbook/internal/sync"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rollbook",
	Short: "Offline-first record keeper with cloud sync",
	Long: `rollbook keeps student, subject, attendance, and grade records on
device and synchronizes them with a remote store when connectivity allows.

Writes always land locally first and are queued for upload; 'rollbook sync'
drains the queue, 'rollbook fetch' pulls the remote state back down.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.rollbook/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default $HOME/.rollbook)")
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

// initConfig loads configuration from file and environment. All keys can
// be overridden with ROLLBOOK_* environment variables.
func initConfig() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	viper.SetDefault("data_dir", filepath.Join(home, ".rollbook"))
	viper.SetDefault("backend", string(storage.KindSQLite))
	viper.SetDefault("remote.driver", "libsql")
	viper.SetDefault("remote.dsn", "")
	viper.SetDefault("principal", "")
	viper.SetDefault("daemon.interval", "5m")
	viper.SetDefault("daemon.debounce", "2s")
	viper.SetDefault("daemon.log_file", "")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".rollbook"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("rollbook")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config: %v\n", err)
		}
	}
}

// openStore opens the local record store using the configured backend.
// The returned close function must be called when done.
func openStore() (*store.Store, func(), error) {
	dataDir := viper.GetString("data_dir")
	kind := storage.Kind(viper.GetString("backend"))

	var path string
	switch kind {
	case storage.KindSQLite:
		path = filepath.Join(dataDir, "local.db")
	case storage.KindFile:
		path = filepath.Join(dataDir, "collections")
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", kind)
	}

	kv, err := storage.Open(kind, path)
	if err != nil {
		return nil, nil, err
	}
	return store.New(kv, nil), func() { _ = kv.Close() }, nil
}

// principalProvider builds the auth provider: a configured fixed principal
// wins, otherwise the persisted login session is consulted.
func principalProvider() (auth.Provider, error) {
	if uid := viper.GetString("principal"); uid != "" {
		return auth.Static{UID: uid}, nil
	}
	return auth.OpenSession(filepath.Join(viper.GetString("data_dir"), "session.json"))
}

// openSyncer wires the store, remote client, and orchestrator together.
func openSyncer() (sync.Syncer, *store.Store, func(), error) {
	st, closeStore, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := principalProvider()
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}

	dsn := viper.GetString("remote.dsn")
	if dsn == "" {
		closeStore()
		return nil, nil, nil, fmt.Errorf("remote.dsn is not configured")
	}

	client, err := remote.Open(viper.GetString("remote.driver"), dsn, provider)
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = client.Close()
		closeStore()
	}
	return sync.New(st, client, nil), st, cleanup, nil
}
