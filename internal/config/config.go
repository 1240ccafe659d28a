// Package config provides dynamic configuration management for backdrop.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for backdrop.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	// ControlPort (6677): panel UI + JWT-protected write API
	ControlPort int `mapstructure:"control_port"`
	// ViewerPort (1616): public read API + live stream for displays
	ViewerPort int `mapstructure:"viewer_port"`
	// PublicViewerURL is encoded into the panel's QR code. Empty means
	// "http://<server_host>:<viewer_port>".
	PublicViewerURL string `mapstructure:"public_viewer_url"`
	// WatchInterval polls the store for writes made by other processes
	// sharing it. 0 disables polling.
	WatchIntervalSeconds int `mapstructure:"watch_interval_seconds"`

	// ── Security ──────────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for panel tokens. Change it in production.
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminUser string `mapstructure:"admin_user"`
	AdminPass string `mapstructure:"admin_pass"`

	// ── Logging / tracing ─────────────────────────────────────────────────────
	LogLevel        string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat       string `mapstructure:"log_format"` // logfmt | json
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	OTelServiceName string `mapstructure:"otel_service_name"`

	// ── Store ─────────────────────────────────────────────────────────────────
	StoreDriver string `mapstructure:"store_driver"` // sqlite | rtdb | s3 | gcs | azure | memory
	StorePrefix string `mapstructure:"store_prefix"` // key prefix for object stores
	SQLitePath  string `mapstructure:"sqlite_path"`

	RTDBURL             string `mapstructure:"rtdb_url"`
	RTDBAuth            string `mapstructure:"rtdb_auth"` // database secret or ID token
	RTDBCredentialsFile string `mapstructure:"rtdb_credentials_file"`

	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`

	GCSBucket          string `mapstructure:"gcs_bucket"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file"`
	GCSEndpoint        string `mapstructure:"gcs_endpoint"`

	AzureAccountName string `mapstructure:"azure_account_name"`
	AzureAccountKey  string `mapstructure:"azure_account_key"`
	AzureContainer   string `mapstructure:"azure_container"`
	AzureServiceURL  string `mapstructure:"azure_service_url"`

	// ── Editor ────────────────────────────────────────────────────────────────
	EditorDebounceMS int `mapstructure:"editor_debounce_ms"`

	// ── Viewer ────────────────────────────────────────────────────────────────
	ViewerURL              string `mapstructure:"viewer_url"`
	ViewerReconnectSeconds int    `mapstructure:"viewer_reconnect_seconds"`
	ViewerFPS              int    `mapstructure:"viewer_fps"`

	// ── Terminal panel ────────────────────────────────────────────────────────
	PanelServerURL string `mapstructure:"panel_server_url"`
}

// EditorDebounce returns the write debounce as a duration.
func (c *Config) EditorDebounce() time.Duration {
	return time.Duration(c.EditorDebounceMS) * time.Millisecond
}

// WatchInterval returns the store poll interval; 0 means disabled.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalSeconds) * time.Second
}

// ViewerReconnect returns the delay before the viewer re-dials the stream.
func (c *Config) ViewerReconnect() time.Duration {
	return time.Duration(c.ViewerReconnectSeconds) * time.Second
}

// ViewerBaseURL is the address a display should open.
func (c *Config) ViewerBaseURL() string {
	if c.PublicViewerURL != "" {
		return strings.TrimRight(c.PublicViewerURL, "/")
	}
	host := c.ServerHost
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ViewerPort)
}

// Load reads config from file (./config.yaml or ~/.backdrop/config.yaml)
// and falls back to smart defaults. Environment variables with prefix
// BACKDROP_ override file values.
func Load() (*Config, error) {
	return load(viper.New(), true)
}

func load(v *viper.Viper, readFile bool) (*Config, error) {
	// --- Smart Defaults ---
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("control_port", 6677) // panel + write API
	v.SetDefault("viewer_port", 1616)  // displays
	v.SetDefault("public_viewer_url", "")
	v.SetDefault("watch_interval_seconds", 2)

	// Security defaults: MUST be overridden in production via config.yaml or env vars.
	v.SetDefault("jwt_secret", "bDrp#4kQ9!vN2@xL7$wZ5^cT8&hJ3*mR")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", "admin")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "logfmt")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("otel_service_name", "backdrop")

	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("store_prefix", "")
	v.SetDefault("sqlite_path", "backdrop.db")
	v.SetDefault("rtdb_url", "")
	v.SetDefault("rtdb_auth", "")
	v.SetDefault("rtdb_credentials_file", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_path_style", false)
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("gcs_bucket", "")
	v.SetDefault("gcs_credentials_file", "")
	v.SetDefault("gcs_endpoint", "")
	v.SetDefault("azure_account_name", "")
	v.SetDefault("azure_account_key", "")
	v.SetDefault("azure_container", "")
	v.SetDefault("azure_service_url", "")

	v.SetDefault("editor_debounce_ms", 250)

	v.SetDefault("viewer_url", "http://127.0.0.1:1616")
	v.SetDefault("viewer_reconnect_seconds", 3)
	v.SetDefault("viewer_fps", 30)

	v.SetDefault("panel_server_url", "http://127.0.0.1:6677")

	// --- Config file ---
	if readFile {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.backdrop")
		if err := v.ReadInConfig(); err != nil {
			// config file is optional; ignore "not found" errors
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("BACKDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
