package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Krugou/aurorawatcher/internal/api"
	"github.com/Krugou/aurorawatcher/internal/config"
	"github.com/Krugou/aurorawatcher/internal/feeds"
	"github.com/Krugou/aurorawatcher/internal/history"
	"github.com/Krugou/aurorawatcher/internal/notify"
	"github.com/Krugou/aurorawatcher/internal/sightings"
	"github.com/Krugou/aurorawatcher/internal/watcher"
)

var (
	listenAddr    string
	storageDriver string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the aurorawatcher daemon (default command)",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config)")
	watchCmd.Flags().StringVar(&storageDriver, "storage-driver", "", "storage driver (overrides config)")
	rootCmd.AddCommand(watchCmd)

	// Make watch the default command.
	rootCmd.RunE = runWatch
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Apply flag overrides.
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if storageDriver != "" {
		cfg.Storage.Driver = storageDriver
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	setupLogging(cfg.LogFormat)

	slog.Info("starting aurorawatcher",
		"listen_addr", cfg.ListenAddr,
		"storage_driver", cfg.Storage.Driver,
		"cameras", len(cfg.Cameras),
		"data_dir", cfg.DataDir,
	)

	// Open the sightings store.
	var s sightings.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		s, err = sightings.NewSQLiteStore(cfg.DSN())
	case "postgres":
		s, err = sightings.NewPostgresStore(cfg.DSN())
	}
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	slog.Info("database ready", "driver", cfg.Storage.Driver)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := feeds.NewClient()

	// Prepare the snapshot archive.
	archive := history.NewStore(cfg.DataDir, client, slog.Default())
	if err := archive.Init(); err != nil {
		return err
	}

	// Alerts go to the webhook when configured, otherwise to the log.
	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, slog.Default())
	} else {
		slog.Warn("no webhook configured, alerts will only be logged")
		notifier = &notify.LogNotifier{Logger: slog.Default()}
	}

	w := watcher.New(cfg, client, client, archive, notifier, slog.Default())

	// Create API server and feed it completed run summaries.
	srv := api.NewServer(archive, s, w, client, slog.Default())
	srv.SetVersion(Version)
	storagePath := cfg.DSN()
	if cfg.Storage.Driver == "postgres" {
		storagePath = redactDSN(storagePath)
	}
	srv.SetStorageInfo(cfg.Storage.Driver, storagePath)
	w.OnSummary(srv.OnSummary)

	announceStartup(ctx, cfg)

	slog.Info("aurorawatcher ready", "addr", cfg.ListenAddr)

	// Start watcher, server, and sightings retention using errgroup.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.RunForever(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.ListenAddr) })
	g.Go(func() error { return pruneSightingsLoop(gctx, s, slog.Default()) })

	waitErr := g.Wait()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		slog.Error("aurorawatcher exited with error", "error", waitErr)
	}

	// Always run graceful cleanup, even on error.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = s.Close()

	slog.Info("aurorawatcher shutdown complete")
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// sightingRetention bounds how long user reports are kept. History
// retention is hours-scale; sightings are kept much longer for the
// public ticker.
const sightingRetention = 90 * 24 * time.Hour

// pruneSightingsLoop deletes sightings past retention once a day,
// starting immediately. Prune failures are logged and retried on the
// next tick.
func pruneSightingsLoop(ctx context.Context, s sightings.Store, logger *slog.Logger) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		removed, err := s.PruneBefore(ctx, time.Now().Add(-sightingRetention))
		if err != nil {
			logger.Warn("sightings prune failed", "error", err)
		} else if removed > 0 {
			logger.Info("pruned old sightings", "removed", removed)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// announceStartup posts a one-line startup note to the log webhook, if one
// is configured. Failures are logged and otherwise ignored.
func announceStartup(ctx context.Context, cfg *config.Config) {
	if cfg.Notify.LogWebhookURL == "" {
		return
	}
	logHook := notify.NewWebhook(cfg.Notify.LogWebhookURL, slog.Default())
	if err := logHook.Notify(ctx, "aurorawatcher "+Version+" started", nil); err != nil {
		slog.Warn("startup announcement failed", "error", err)
	}
}

func setupLogging(format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// redactDSN masks the password in a PostgreSQL DSN for safe display.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
