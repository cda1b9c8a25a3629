package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cyberxapi/gdrive-storage-api/internal/database"
	"github.com/cyberxapi/gdrive-storage-api/internal/scheduler"
	"github.com/cyberxapi/gdrive-storage-api/pkg/gdrive"
	"github.com/cyberxapi/gdrive-storage-api/pkg/notification"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"google.golang.org/api/googleapi"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the storage API.
//
// YAML example:
//
//	server:
//	  address: "0.0.0.0:8000"
//	  write_timeout: "10m"
//	history:
//	  driver: "sqlite"
//	  dsn: "gdrive-storage.db"
//	  retention: "720h"
//	notifications:
//	  - name: ops
//	    channel: slack
//	    enabled: true
//	    notify_on_error: true
//	    config:
//	      webhook_url: "https://hooks.slack.com/services/..."
//
// Environment overrides:
//
//	API_KEY                      shared API key; empty rejects every request
//	GOOGLE_CREDENTIALS           service account JSON
//	GOOGLE_CREDENTIALS_FILE      path read when GOOGLE_CREDENTIALS is empty
//	GDRIVE_STORAGE_ADDR          listen address
//	GDRIVE_STORAGE_HISTORY_DSN   history DSN; setting it enables history
//	GDRIVE_STORAGE_HISTORY_DRIVER sqlite or mysql
//	GDRIVE_STORAGE_METRICS       true/false
//	GDRIVE_STORAGE_TRACING_ENDPOINT OTLP gRPC collector; setting it enables tracing
//	GDRIVE_STORAGE_CONFIG        YAML file used when no path is given
type Config struct {
	APIKey                string                            `yaml:"api_key"`
	GoogleCredentials     string                            `yaml:"google_credentials"`
	GoogleCredentialsFile string                            `yaml:"google_credentials_file"`
	Server                ServerConfig                      `yaml:"server"`
	Drive                 DriveConfig                       `yaml:"drive"`
	History               HistoryConfig                     `yaml:"history"`
	Scheduler             SchedulerConfig                   `yaml:"scheduler"`
	Notifications         []notification.NotificationConfig `yaml:"notifications"`
	Metrics               MetricsConfig                     `yaml:"metrics"`
	Tracing               TracingConfig                     `yaml:"tracing"`
}

// ServerConfig controls the HTTP listener. Durations use time.ParseDuration syntax; empty means none.
type ServerConfig struct {
	Address         string `yaml:"address"`
	ReadTimeout     string `yaml:"read_timeout,omitempty"`
	WriteTimeout    string `yaml:"write_timeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

// DriveConfig controls transfer chunking. Zero falls back to the defaults.
type DriveConfig struct {
	UploadChunkSize   int   `yaml:"upload_chunk_size"`
	DownloadChunkSize int64 `yaml:"download_chunk_size"`
}

// HistoryConfig controls the operation history store.
type HistoryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Retention string `yaml:"retention,omitempty"`
}

// SchedulerConfig holds cron specs with a leading seconds field.
type SchedulerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialProbe string `yaml:"credential_probe,omitempty"`
	HistoryPrune    string `yaml:"history_prune,omitempty"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name,omitempty"`
	SampleRatio float64 `yaml:"sample_ratio,omitempty"` // 0.0 - 1.0
}

// Default returns a Config with local defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         "0.0.0.0:8000",
			ShutdownTimeout: "10s",
		},
		Drive: DriveConfig{
			UploadChunkSize:   googleapi.DefaultUploadChunkSize,
			DownloadChunkSize: gdrive.DefaultDownloadChunkSize,
		},
		History: HistoryConfig{
			Enabled:   true,
			Driver:    database.DriverSQLite,
			DSN:       "gdrive-storage.db",
			Retention: "720h",
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			CredentialProbe: "0 */15 * * * *",
			HistoryPrune:    "0 0 3 * * *",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "gdrive-storage-api",
			SampleRatio: 1.0,
		},
	}
}

// LoadDotEnv loads variables from the given .env files without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configuration from path. If path is empty, it uses GDRIVE_STORAGE_CONFIG,
// then ./config.yaml, then Default(). Environment overrides are applied last.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("GDRIVE_STORAGE_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg = applyEnvOverrides(cfg)

	if cfg.GoogleCredentials == "" && cfg.GoogleCredentialsFile != "" {
		b, err := os.ReadFile(cfg.GoogleCredentialsFile)
		if err != nil {
			return Config{}, fmt.Errorf("read credentials file: %w", err)
		}
		cfg.GoogleCredentials = string(b)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS"); v != "" {
		cfg.GoogleCredentials = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
	if v := os.Getenv("GDRIVE_STORAGE_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("GDRIVE_STORAGE_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
		cfg.History.Enabled = true
	}
	if v := os.Getenv("GDRIVE_STORAGE_HISTORY_DRIVER"); v != "" {
		cfg.History.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("GDRIVE_STORAGE_METRICS"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = enabled
		}
	}
	if v := os.Getenv("GDRIVE_STORAGE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
		cfg.Tracing.Enabled = true
	}
	return cfg
}

// Validate checks values that would otherwise fail at first use.
// Missing credentials and an empty API key are allowed.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	for name, value := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"history.retention":       c.History.Retention,
	} {
		if _, err := parseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Drive.UploadChunkSize < 0 {
		errs = append(errs, errors.New("drive.upload_chunk_size must not be negative"))
	}
	if c.Drive.DownloadChunkSize < 0 {
		errs = append(errs, errors.New("drive.download_chunk_size must not be negative"))
	}

	if c.History.Enabled {
		dbConfig := c.DatabaseConfig()
		if err := dbConfig.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		} else if c.History.Driver == database.DriverMySQL {
			if _, err := mysql.ParseDSN(c.History.DSN); err != nil {
				errs = append(errs, fmt.Errorf("history.dsn: %w", err))
			}
		}
	}

	if c.Scheduler.Enabled {
		for name, spec := range map[string]string{
			"scheduler.credential_probe": c.Scheduler.CredentialProbe,
			"scheduler.history_prune":    c.Scheduler.HistoryPrune,
		} {
			if spec == "" {
				continue
			}
			if err := scheduler.ValidateCronExpression(spec); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}

	seen := make(map[string]bool)
	for i, n := range c.Notifications {
		if n.Name == "" {
			errs = append(errs, fmt.Errorf("notifications[%d].name is required", i))
		} else if seen[n.Name] {
			errs = append(errs, fmt.Errorf("notifications[%d]: duplicate name %q", i, n.Name))
		}
		seen[n.Name] = true
		if err := notification.ValidateChannel(n.Channel); err != nil {
			errs = append(errs, fmt.Errorf("notifications[%d]: %w", i, err))
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			errs = append(errs, errors.New("tracing.sample_ratio must be between 0 and 1"))
		}
	}

	return errors.Join(errs...)
}

// DatabaseConfig returns the history store settings
func (c Config) DatabaseConfig() database.ServiceConfig {
	return database.ServiceConfig{Driver: c.History.Driver, DSN: c.History.DSN}
}

// SchedulerJobs returns the job settings with the history retention applied
func (c Config) SchedulerJobs() scheduler.Config {
	retention, _ := parseDuration(c.History.Retention)
	jobs := scheduler.Config{
		CredentialProbe:  c.Scheduler.CredentialProbe,
		HistoryRetention: retention,
	}
	if c.History.Enabled {
		jobs.HistoryPrune = c.Scheduler.HistoryPrune
	}
	return jobs
}

// ReadTimeoutDuration returns the parsed server read timeout
func (s ServerConfig) ReadTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.ReadTimeout)
	return d
}

// WriteTimeoutDuration returns the parsed server write timeout
func (s ServerConfig) WriteTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.WriteTimeout)
	return d
}

// ShutdownTimeoutDuration returns the parsed graceful shutdown timeout
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := parseDuration(s.ShutdownTimeout)
	return d
}

// CredentialsJSON returns the service account JSON, nil when absent
func (c Config) CredentialsJSON() []byte {
	if strings.TrimSpace(c.GoogleCredentials) == "" {
		return nil
	}
	return []byte(c.GoogleCredentials)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
