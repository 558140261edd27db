package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		ListenAddr: ":8080",
		Location:   LocationConfig{Latitude: 65.0, Longitude: 25.5},
		Cameras: []CameraConfig{
			{ID: "cam1", URL: "https://cams.example/cam1.jpg"},
		},
		Detection: DetectionConfig{
			ActivityMapURL:  "https://maps.example/activity.png",
			ReferenceCamera: "cam1",
			BoxRadius:       10,
			MaxDistance:     50,
		},
		History: HistoryConfig{RetentionHours: 24},
		Storage: StorageConfig{Driver: "sqlite", SQLite: SQLiteConfig{Path: "test.db"}},
		Watch:   WatchConfig{MinIntervalMinutes: 1, MaxIntervalMinutes: 10},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no cameras", func(c *Config) { c.Cameras = nil }, true},
		{"camera missing id", func(c *Config) { c.Cameras[0].ID = "" }, true},
		{"camera missing url", func(c *Config) { c.Cameras[0].URL = "" }, true},
		{"camera invalid url", func(c *Config) { c.Cameras[0].URL = "not a url" }, true},
		{"duplicate camera id", func(c *Config) {
			c.Cameras = append(c.Cameras, CameraConfig{ID: "cam1", URL: "https://cams.example/dup.jpg"})
		}, true},
		{"missing activity map url", func(c *Config) { c.Detection.ActivityMapURL = "" }, true},
		{"missing reference camera", func(c *Config) { c.Detection.ReferenceCamera = "" }, true},
		{"unknown reference camera", func(c *Config) { c.Detection.ReferenceCamera = "nope" }, true},
		{"negative box radius", func(c *Config) { c.Detection.BoxRadius = -1 }, true},
		{"zero max distance", func(c *Config) { c.Detection.MaxDistance = 0 }, true},
		{"latitude out of range", func(c *Config) { c.Location.Latitude = 91 }, true},
		{"longitude out of range", func(c *Config) { c.Location.Longitude = -181 }, true},
		{"zero retention", func(c *Config) { c.History.RetentionHours = 0 }, true},
		{"invalid driver", func(c *Config) { c.Storage.Driver = "mysql" }, true},
		{"sqlite missing path", func(c *Config) { c.Storage.SQLite.Path = "" }, true},
		{"postgres missing dsn", func(c *Config) { c.Storage.Driver = "postgres" }, true},
		{"valid postgres", func(c *Config) {
			c.Storage.Driver = "postgres"
			c.Storage.Postgres.DSN = "postgres://localhost/aurora"
		}, false},
		{"zero min interval", func(c *Config) { c.Watch.MinIntervalMinutes = 0 }, true},
		{"max below min", func(c *Config) {
			c.Watch.MinIntervalMinutes = 10
			c.Watch.MaxIntervalMinutes = 5
		}, true},
		{"equal intervals", func(c *Config) {
			c.Watch.MinIntervalMinutes = 5
			c.Watch.MaxIntervalMinutes = 5
		}, false},
		{"bad listen addr", func(c *Config) { c.ListenAddr = "nonsense" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `
listen_addr: ":9090"
log_format: text
data_dir: ` + dir + `

location:
  latitude: 65.0
  longitude: 25.5

cameras:
  - id: kilpisjarvi
    url: "https://cams.example/kilpisjarvi.jpg"
    name: "Kilpisjärvi all-sky"

detection:
  reference_camera: kilpisjarvi

history:
  retention_hours: 48

storage:
  driver: sqlite
  sqlite:
    path: ` + filepath.Join(dir, "sightings.db") + `
`
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if len(cfg.Cameras) != 1 || cfg.Cameras[0].ID != "kilpisjarvi" {
		t.Errorf("cameras = %+v", cfg.Cameras)
	}
	if cfg.History.RetentionHours != 48 {
		t.Errorf("retention_hours = %d, want 48", cfg.History.RetentionHours)
	}

	// Defaults fill what the file leaves out.
	if cfg.Detection.ActivityMapURL == "" {
		t.Error("activity_map_url default not applied")
	}
	if cfg.Detection.BoxRadius != 10 {
		t.Errorf("box_radius = %d, want default 10", cfg.Detection.BoxRadius)
	}
	if cfg.Watch.MinIntervalMinutes != 1 || cfg.Watch.MaxIntervalMinutes != 10 {
		t.Errorf("watch interval = %+v, want defaults 1-10", cfg.Watch)
	}
}

func TestLoad_EnvVarWebhookInjection(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `
listen_addr: ":9090"
location:
  latitude: 65.0
  longitude: 25.5
cameras:
  - id: cam1
    url: "https://cams.example/cam1.jpg"
detection:
  reference_camera: cam1
storage:
  driver: sqlite
  sqlite:
    path: ` + filepath.Join(dir, "sightings.db") + `
`
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AURORAWATCHER_WEBHOOK_URL", "https://hooks.example/secret")
	t.Setenv("AURORAWATCHER_LOG_WEBHOOK_URL", "https://hooks.example/log")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Notify.WebhookURL != "https://hooks.example/secret" {
		t.Errorf("webhook_url = %q, want env value", cfg.Notify.WebhookURL)
	}
	if cfg.Notify.LogWebhookURL != "https://hooks.example/log" {
		t.Errorf("log_webhook_url = %q, want env value", cfg.Notify.LogWebhookURL)
	}
}

func TestConfig_DSN(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		cfg := Config{Storage: StorageConfig{Driver: "sqlite", SQLite: SQLiteConfig{Path: "/tmp/test.db"}}}
		if dsn := cfg.DSN(); dsn != "/tmp/test.db" {
			t.Errorf("DSN() = %q, want %q", dsn, "/tmp/test.db")
		}
	})

	t.Run("postgres", func(t *testing.T) {
		cfg := Config{Storage: StorageConfig{Driver: "postgres", Postgres: PostgresConfig{DSN: "postgres://localhost/db"}}}
		if dsn := cfg.DSN(); dsn != "postgres://localhost/db" {
			t.Errorf("DSN() = %q, want %q", dsn, "postgres://localhost/db")
		}
	})
}

func TestConfig_Camera(t *testing.T) {
	cfg := validConfig()

	if cam := cfg.Camera("cam1"); cam == nil || cam.ID != "cam1" {
		t.Errorf("Camera(cam1) = %+v, want the configured camera", cam)
	}
	if cam := cfg.Camera("missing"); cam != nil {
		t.Errorf("Camera(missing) = %+v, want nil", cam)
	}
}
