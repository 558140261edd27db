package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for aurorawatcher.
type Config struct {
	ListenAddr string          `mapstructure:"listen_addr"`
	LogFormat  string          `mapstructure:"log_format"`
	DataDir    string          `mapstructure:"data_dir"`
	Location   LocationConfig  `mapstructure:"location"`
	Cameras    []CameraConfig  `mapstructure:"cameras"`
	Detection  DetectionConfig `mapstructure:"detection"`
	History    HistoryConfig   `mapstructure:"history"`
	Notify     NotifyConfig    `mapstructure:"notify"`
	Storage    StorageConfig   `mapstructure:"storage"`
	Watch      WatchConfig     `mapstructure:"watch"`
}

// LocationConfig is the observer location used for the daylight window and
// nearest-station lookups.
type LocationConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// CameraConfig defines one snapshot source. The set of cameras is fixed at
// startup and validated, not an open map.
type CameraConfig struct {
	ID     string `mapstructure:"id"`
	URL    string `mapstructure:"url"`
	Name   string `mapstructure:"name"`
	MapURL string `mapstructure:"map_url"`
}

// DetectionConfig tunes the activity map scan.
type DetectionConfig struct {
	ActivityMapURL  string  `mapstructure:"activity_map_url"`
	ReferenceCamera string  `mapstructure:"reference_camera"` // camera ID used for change detection
	BoxRadius       int     `mapstructure:"box_radius"`
	MaxDistance     float64 `mapstructure:"max_distance"`
}

// HistoryConfig controls the snapshot archive.
type HistoryConfig struct {
	RetentionHours int `mapstructure:"retention_hours"`
}

// NotifyConfig holds the alert and log webhook URLs. Both are optional;
// without an alert webhook the watcher logs alerts instead of posting.
type NotifyConfig struct {
	WebhookURL    string `mapstructure:"webhook_url"`
	LogWebhookURL string `mapstructure:"log_webhook_url"`
}

// StorageConfig defines the sightings database backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// WatchConfig controls the daemon's polling schedule. Each interval is
// drawn uniformly from [min, max] minutes.
type WatchConfig struct {
	MinIntervalMinutes int `mapstructure:"min_interval_minutes"`
	MaxIntervalMinutes int `mapstructure:"max_interval_minutes"`
}

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $AURORAWATCHER_CONFIG env → ~/.config/aurorawatcher/config.yaml → /etc/aurorawatcher/config.yaml
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_format", "json")
	v.SetDefault("data_dir", "data")
	v.SetDefault("detection.activity_map_url",
		"https://cdn.fmi.fi/weather-observations/products/magnetic-disturbance-observations/map-latest-fi.png")
	v.SetDefault("detection.box_radius", 10)
	v.SetDefault("detection.max_distance", 50.0)
	v.SetDefault("history.retention_hours", 24)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "data/sightings.db")
	v.SetDefault("watch.min_interval_minutes", 1)
	v.SetDefault("watch.max_interval_minutes", 10)

	// Env var support
	v.SetEnvPrefix("AURORAWATCHER")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("AURORAWATCHER_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		// Try ~/.config/aurorawatcher/config.yaml first
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "aurorawatcher"))
		}
		// Fall back to /etc/aurorawatcher/config.yaml
		v.AddConfigPath("/etc/aurorawatcher")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		// Warn if a config file carrying webhook secrets is world-readable.
		if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
			if info, err := os.Stat(cfgPath); err == nil {
				perm := info.Mode().Perm()
				if perm&0004 != 0 {
					slog.Warn("config file is world-readable", "path", cfgPath, "permissions", fmt.Sprintf("%04o", perm))
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Inject webhook URLs from env vars. Viper's AutomaticEnv cannot map
	// env vars onto nested struct fields reliably, so the secrets are
	// handled explicitly for container injection.
	if u := os.Getenv("AURORAWATCHER_WEBHOOK_URL"); u != "" {
		cfg.Notify.WebhookURL = u
	}
	if u := os.Getenv("AURORAWATCHER_LOG_WEBHOOK_URL"); u != "" {
		cfg.Notify.LogWebhookURL = u
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete and correct.
func (c *Config) Validate() error {
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera is required")
	}

	seen := make(map[string]bool)
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera[%d]: id is required", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("camera[%d]: duplicate id %q", i, cam.ID)
		}
		seen[cam.ID] = true
		if cam.URL == "" {
			return fmt.Errorf("camera[%d]: url is required", i)
		}
		if _, err := url.ParseRequestURI(cam.URL); err != nil {
			return fmt.Errorf("camera[%d]: url %q is invalid: %w", i, cam.URL, err)
		}
	}

	if c.Detection.ActivityMapURL == "" {
		return fmt.Errorf("detection.activity_map_url is required")
	}
	if c.Detection.ReferenceCamera == "" {
		return fmt.Errorf("detection.reference_camera is required")
	}
	if !seen[c.Detection.ReferenceCamera] {
		return fmt.Errorf("detection.reference_camera %q is not a configured camera", c.Detection.ReferenceCamera)
	}
	if c.Detection.BoxRadius < 0 {
		return fmt.Errorf("detection.box_radius must be >= 0")
	}
	if c.Detection.MaxDistance <= 0 {
		return fmt.Errorf("detection.max_distance must be > 0")
	}

	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("location.latitude %v is out of range", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("location.longitude %v is out of range", c.Location.Longitude)
	}

	if c.History.RetentionHours <= 0 {
		return fmt.Errorf("history.retention_hours must be > 0")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite driver")
		}
		dir := filepath.Dir(c.Storage.SQLite.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("creating storage directory %q: %w", dir, err)
			}
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'postgres', got %q", c.Storage.Driver)
	}

	if c.Watch.MinIntervalMinutes < 1 {
		return fmt.Errorf("watch.min_interval_minutes must be >= 1")
	}
	if c.Watch.MaxIntervalMinutes < c.Watch.MinIntervalMinutes {
		return fmt.Errorf("watch.max_interval_minutes must be >= watch.min_interval_minutes")
	}

	// Validate listen_addr.
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	return nil
}

// DSN returns the appropriate DSN for the configured storage driver.
func (c *Config) DSN() string {
	switch c.Storage.Driver {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return c.Storage.Postgres.DSN
	default:
		return ""
	}
}

// Camera returns the camera with the given ID, or nil if unknown.
func (c *Config) Camera(id string) *CameraConfig {
	for i := range c.Cameras {
		if c.Cameras[i].ID == id {
			return &c.Cameras[i]
		}
	}
	return nil
}
