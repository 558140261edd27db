package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile   string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "aurorawatcher",
	Short: "Aurora activity watcher for all-sky cameras",
	Long: `aurorawatcher polls a magnetic disturbance map for aurora activity near
known observation stations, archives all-sky camera snapshots into a rolling
history, deduplicates alerts by detecting camera image changes, posts webhook
notifications when activity is visible, and exposes a REST API for history,
sighting reports, and solar wind conditions.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json, overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
