package cmd

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the health endpoint of a running aurorawatcher instance",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8080", "aurorawatcher server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	resp, err := client.Get(statusServer + "/api/v1/health")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", statusServer, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var health struct {
		Status         string `json:"status"`
		Version        string `json:"version"`
		Uptime         string `json:"uptime"`
		HistoryEntries int    `json:"history_entries"`
		Storage        struct {
			Driver string `json:"driver"`
			Path   string `json:"path"`
		} `json:"storage"`
		LastRun *struct {
			StartedAt        time.Time `json:"started_at"`
			DurationMillis   int64     `json:"duration_ms"`
			IsDark           bool      `json:"is_dark"`
			ActivityDetected bool      `json:"activity_detected"`
			ImagesSaved      int       `json:"images_saved"`
			Outcome          string    `json:"outcome"`
		} `json:"last_run"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&health); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	// Human-readable output.
	fmt.Printf("aurorawatcher %s\n", health.Version)
	fmt.Printf("Status: %s\n", health.Status)
	fmt.Printf("Uptime: %s\n", health.Uptime)
	fmt.Println()

	if health.LastRun != nil {
		fmt.Println("Last run:")
		fmt.Printf("  Started: %s\n", health.LastRun.StartedAt.Format(time.RFC3339))
		fmt.Printf("  Outcome: %s\n", health.LastRun.Outcome)
		fmt.Printf("  Dark: %v, activity: %v, images saved: %d\n",
			health.LastRun.IsDark, health.LastRun.ActivityDetected, health.LastRun.ImagesSaved)
		fmt.Printf("  Duration: %dms\n", health.LastRun.DurationMillis)
		fmt.Println()
	}

	if health.Storage.Path != "" {
		fmt.Printf("Database: %s (%s)\n", health.Storage.Driver, health.Storage.Path)
	} else {
		fmt.Printf("Database: %s\n", health.Storage.Driver)
	}
	fmt.Printf("History entries: %s\n", formatNumber(health.HistoryEntries))

	return nil
}

// formatNumber formats an integer with comma separators (e.g., 1,247,832).
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
