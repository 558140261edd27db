package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Krugou/aurorawatcher/internal/config"
	"github.com/Krugou/aurorawatcher/internal/feeds"
	"github.com/Krugou/aurorawatcher/internal/history"
	"github.com/Krugou/aurorawatcher/internal/notify"
	"github.com/Krugou/aurorawatcher/internal/watcher"
)

var checkNotify bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single aurora check and print the result",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkNotify, "notify", false, "send the webhook notification if activity is found")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	setupLogging(cfg.LogFormat)

	client := feeds.NewClient()

	archive := history.NewStore(cfg.DataDir, client, slog.Default())
	if err := archive.Init(); err != nil {
		return err
	}

	// One-off checks log the alert unless --notify asks for the webhook.
	var notifier notify.Notifier = &notify.LogNotifier{Logger: slog.Default()}
	if checkNotify && cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, slog.Default())
	}

	// Support context cancellation via signals.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w := watcher.New(cfg, client, client, archive, notifier, slog.Default())
	summary := w.RunOnce(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return nil
}
