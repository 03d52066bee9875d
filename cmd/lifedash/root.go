package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Awaneesh03/digital-life-dashboard/internal/connectivity"
	"github.com/Awaneesh03/digital-life-dashboard/internal/identity"
	"github.com/Awaneesh03/digital-life-dashboard/internal/localstore"
	"github.com/Awaneesh03/digital-life-dashboard/internal/outbox"
	"github.com/Awaneesh03/digital-life-dashboard/internal/remote"
	"github.com/Awaneesh03/digital-life-dashboard/internal/resolver"
	"github.com/Awaneesh03/digital-life-dashboard/internal/syncengine"
)

const version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lifedash",
	Short: "Offline-first sync backend for the digital life dashboard",
	Long: `lifedash keeps the dashboard's tasks, expenses, habits, notes and
goals usable without a connection.

Every mutation lands in a local SQLite store first; a durable outbox
replays queued changes once the backend is reachable again, and a
last-write-wins sweep settles records edited on both sides.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.lifedash.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for the local store (default ~/.lifedash)")
	rootCmd.PersistentFlags().String("api-url", "", "backend project URL")
	rootCmd.PersistentFlags().String("api-key", "", "backend anonymous API key")
	rootCmd.PersistentFlags().String("session-file", "", "signed-in session file (default <data-dir>/session.json)")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("api.key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("session_file", rootCmd.PersistentFlags().Lookup("session-file"))
}

// initConfig reads ~/.lifedash.yaml (or --config) and LIFEDASH_*
// environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".lifedash")
		}
	}

	viper.SetEnvPrefix("LIFEDASH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func dataDir() string {
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lifedash"
	}
	return filepath.Join(home, ".lifedash")
}

func storePath() string {
	return filepath.Join(dataDir(), "lifedash.db")
}

func sessionPath() string {
	if path := viper.GetString("session_file"); path != "" {
		return path
	}
	return filepath.Join(dataDir(), "session.json")
}

func openStore() (*localstore.Store, error) {
	store, err := localstore.Open(storePath())
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func buildRemote() (remote.Store, error) {
	return remote.NewClient(remote.ClientConfig{
		BaseURL: viper.GetString("api.url"),
		APIKey:  viper.GetString("api.key"),
	})
}

// buildEngine wires the full sync stack over an opened store. The
// monitor starts online; callers that probe connectivity flip it.
func buildEngine(store *localstore.Store, notifier syncengine.Notifier, logger *log.Logger) (*syncengine.Engine, *connectivity.Monitor, error) {
	rs, err := buildRemote()
	if err != nil {
		return nil, nil, err
	}

	monitor := connectivity.New(true)
	id := identity.NewFileProvider(sessionPath())
	queue := outbox.NewQueue(store)
	res := resolver.New(store, rs, id, viper.GetDuration("sync.tolerance"), logger)

	// Zero values fall back to the engine defaults.
	engine := syncengine.New(store, queue, rs, monitor, id, res, notifier, &syncengine.Config{
		MaxRetries:     viper.GetInt("sync.max_retries"),
		DrainInterval:  viper.GetDuration("sync.drain_interval"),
		StabilizeDelay: viper.GetDuration("sync.stabilize_delay"),
		Logger:         logger,
	})
	return engine, monitor, nil
}
