package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Awaneesh03/digital-life-dashboard/internal/connectivity"
	"github.com/Awaneesh03/digital-life-dashboard/internal/drafts"
	"github.com/Awaneesh03/digital-life-dashboard/internal/statusfeed"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon (foreground)",
	Long: `Run the sync engine in foreground mode.

The daemon:
  1. Drains the outbox every 30 seconds while online
  2. Probes the backend and pauses replay while offline
  3. Runs a last-write-wins reconciliation sweep after each reconnect
  4. Autosaves form captures dropped into the capture directory
  5. Broadcasts sync status to dashboard widgets over WebSocket`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().Int("port", 8924, "status feed port")
	daemonCmd.Flags().String("captures", "", "form capture directory (default <data-dir>/captures)")
	daemonCmd.Flags().String("log-file", "", "rotating log file (default <data-dir>/daemon.log)")
	_ = viper.BindPFlag("daemon.port", daemonCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("daemon.captures", daemonCmd.Flags().Lookup("captures"))
	_ = viper.BindPFlag("daemon.log_file", daemonCmd.Flags().Lookup("log-file"))

	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logPath := viper.GetString("daemon.log_file")
	if logPath == "" {
		logPath = filepath.Join(dataDir(), "daemon.log")
	}
	logger := log.New(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "[lifedash] ", log.LstdFlags)

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer store.Close()

	feed := statusfeed.NewServer(&statusfeed.Config{
		Port:   viper.GetInt("daemon.port"),
		Logger: logger,
	})

	engine, monitor, err := buildEngine(store, feed, logger)
	if err != nil {
		return err
	}
	engine.OnState(feed.StateChanged)

	if err := feed.Start(); err != nil {
		return err
	}
	defer feed.Stop()

	saver := drafts.NewSaver(store, 0, logger)
	saver.Start()
	defer saver.Stop()

	capturesDir := viper.GetString("daemon.captures")
	if capturesDir == "" {
		capturesDir = filepath.Join(dataDir(), "captures")
	}
	if err := os.MkdirAll(capturesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create capture directory: %w", err)
	}
	watcher, err := drafts.NewCaptureWatcher(saver, logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(capturesDir); err != nil {
		return err
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Start()
	defer engine.Stop()

	go probeConnectivity(ctx, monitor, logger)

	fmt.Printf("Sync daemon running\n")
	fmt.Printf("   Store:    %s\n", storePath())
	fmt.Printf("   Captures: %s\n", capturesDir)
	fmt.Printf("   Status:   ws://%s/ws\n", feed.Addr())
	fmt.Printf("\nPress Ctrl+C to stop\n")

	<-ctx.Done()
	logger.Println("Shutting down")
	return nil
}

// probeConnectivity polls the backend and flips the monitor on
// transitions. The engine handles the rest: it pauses replay while
// offline and schedules a stabilized drain plus a reconciliation sweep
// on reconnect.
func probeConnectivity(ctx context.Context, monitor *connectivity.Monitor, logger *log.Logger) {
	url := viper.GetString("api.url")
	client := &http.Client{Timeout: 5 * time.Second}

	probe := func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online := probe()
			if online != monitor.IsOnline() {
				logger.Printf("Connectivity changed: online=%v", online)
			}
			monitor.SetOnline(online)
		}
	}
}
