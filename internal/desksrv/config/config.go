// Package config loads and validates the deskwise server configuration
// from a TOML file. All ergonomic constants are configuration values, not
// literals, since they change the meaning of every reported duration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the supported configuration file format version.
const Version = "0.1.0"

// TelemetryConfig holds the desk telemetry source configuration.
type TelemetryConfig struct {
	BaseURL         string `toml:"base_url"`          // Base URL of the desk simulator API
	APIKey          string `toml:"api_key"`           // API key segment for the simulator URL
	RequestTimeout  string `toml:"request_timeout"`   // Timeout for a single state read
	RefreshInterval string `toml:"refresh_interval"`  // Cache refresh interval; empty disables the refresher
	DefaultHeightMM int    `toml:"default_height_mm"` // Height assumed when a desk was never reachable
}

// GetRequestTimeout returns the telemetry request timeout as time.Duration.
func (t *TelemetryConfig) GetRequestTimeout() (time.Duration, error) {
	return ParseDuration(t.RequestTimeout)
}

// GetRequestTimeoutOrDefault returns the telemetry request timeout or
// panics if the configured value is invalid.
func (t *TelemetryConfig) GetRequestTimeoutOrDefault() time.Duration {
	duration, err := t.GetRequestTimeout()
	if err != nil {
		panic(fmt.Sprintf("invalid telemetry request timeout: %v", err))
	}
	return duration
}

// GetRefreshInterval returns the cache refresh interval, 0 if disabled.
func (t *TelemetryConfig) GetRefreshInterval() (time.Duration, error) {
	if t.RefreshInterval == "" {
		return 0, nil
	}
	return ParseDuration(t.RefreshInterval)
}

// ErgonomicsConfig holds the posture classification and scoring parameters.
type ErgonomicsConfig struct {
	SittingThresholdMM       int     `toml:"sitting_threshold_mm"`        // Heights below this classify as sitting
	SampleTickSeconds        float64 `toml:"sample_tick_seconds"`         // Minimum spacing between two samples of a session
	SecondsToReportedMinutes float64 `toml:"seconds_to_reported_minutes"` // Scale from raw elapsed seconds to reported minutes
	TargetSittingPct         float64 `toml:"target_sitting_pct"`          // Balance score sitting target
	TargetStandingPct        float64 `toml:"target_standing_pct"`         // Balance score standing target
	IdealChangesPerHour      float64 `toml:"ideal_changes_per_hour"`      // Activity score posture-change target
	ReportingWindow          string  `toml:"reporting_window"`            // How far back pairings count toward a report
}

// GetReportingWindow returns the reporting window as time.Duration.
func (e *ErgonomicsConfig) GetReportingWindow() (time.Duration, error) {
	return ParseDuration(e.ReportingWindow)
}

// GetReportingWindowOrDefault returns the reporting window or panics if the
// configured value is invalid.
func (e *ErgonomicsConfig) GetReportingWindowOrDefault() time.Duration {
	duration, err := e.GetReportingWindow()
	if err != nil {
		panic(fmt.Sprintf("invalid reporting window: %v", err))
	}
	return duration
}

// DBConfig holds the session store configuration. Driver "memory" selects
// the in-process store for demo deployments and tests.
type DBConfig struct {
	Driver   string `toml:"driver"`   // "postgres" or "memory"
	Host     string `toml:"host"`     // Database host
	Port     int    `toml:"port"`     // Database port
	DBName   string `toml:"dbname"`   // Database name
	User     string `toml:"user"`     // Database user
	Password string `toml:"password"` // Database password
	SSLMode  string `toml:"sslmode"`  // SSL mode for database connection
}

// ConfigParam holds all configuration parameters for the deskwise service.
type ConfigParam struct {
	// Configuration version
	FormatVersion string `toml:"format_version"` // Version of this configuration file format

	// Server configuration
	ServerHostName     string `toml:"server_hostname"`       // Hostname for the server
	ServerPort         string `toml:"server_port"`           // Port for the API server
	HandleCORS         bool   `toml:"handle_cors"`           // Whether to handle CORS
	MaxRequestBodySize int64  `toml:"max_request_body_size"` // Maximum size of request body in bytes
	SupportTLS         bool   `toml:"support_tls"`           // Whether to serve TLS
	TLSCertFile        string `toml:"tls_cert_file"`         // Path to TLS certificate file
	TLSKeyFile         string `toml:"tls_key_file"`          // Path to TLS key file

	// Session store configuration
	DB DBConfig `toml:"db"`

	// Telemetry source configuration
	Telemetry TelemetryConfig `toml:"telemetry"`

	// Ergonomics configuration
	Ergonomics ErgonomicsConfig `toml:"ergonomics"`
}

var cfg *ConfigParam

// Config returns the current configuration.
func Config() *ConfigParam {
	return cfg
}

// DSN returns the database connection string.
func (c *ConfigParam) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

// ParseDuration parses a duration string in the format "<number><unit>"
// where unit can be:
// - s: seconds
// - m: minutes
// - h: hours
// - d: days
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}

	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}

	var duration time.Duration
	switch unit {
	case "s":
		duration = time.Duration(value) * time.Second
	case "m":
		duration = time.Duration(value) * time.Minute
	case "h":
		duration = time.Duration(value) * time.Hour
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}

	return duration, nil
}

// ValidateConfig checks that all required configuration values are present
// and valid, and fills ergonomics defaults for unset fields.
func ValidateConfig(cfg *ConfigParam) error {
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateDBConfig(cfg); err != nil {
		return err
	}
	if err := validateTelemetryConfig(cfg); err != nil {
		return err
	}
	if err := validateErgonomicsConfig(cfg); err != nil {
		return err
	}
	if err := validateTLSConfig(cfg); err != nil {
		return err
	}
	return nil
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	if cfg.FormatVersion != Version {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	switch cfg.DB.Driver {
	case "":
		cfg.DB.Driver = "postgres"
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown db.driver: %s", cfg.DB.Driver)
	}
	if cfg.DB.Driver == "memory" {
		return nil
	}
	if cfg.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	if cfg.DB.Port <= 0 {
		return fmt.Errorf("db.port must be positive")
	}
	if cfg.DB.DBName == "" {
		return fmt.Errorf("db.dbname is required")
	}
	if cfg.DB.User == "" {
		return fmt.Errorf("db.user is required")
	}
	if cfg.DB.Password == "" {
		return fmt.Errorf("db.password is required")
	}
	if cfg.DB.SSLMode == "" {
		return fmt.Errorf("db.sslmode is required")
	}
	return nil
}

func validateTelemetryConfig(cfg *ConfigParam) error {
	if cfg.Telemetry.BaseURL == "" {
		return fmt.Errorf("telemetry.base_url is required")
	}
	if cfg.Telemetry.RequestTimeout == "" {
		cfg.Telemetry.RequestTimeout = "5s"
	}
	if _, err := ParseDuration(cfg.Telemetry.RequestTimeout); err != nil {
		return fmt.Errorf("invalid telemetry.request_timeout: %v", err)
	}
	if cfg.Telemetry.RefreshInterval != "" {
		if _, err := ParseDuration(cfg.Telemetry.RefreshInterval); err != nil {
			return fmt.Errorf("invalid telemetry.refresh_interval: %v", err)
		}
	}
	if cfg.Telemetry.DefaultHeightMM <= 0 {
		cfg.Telemetry.DefaultHeightMM = 680
	}
	return nil
}

func validateErgonomicsConfig(cfg *ConfigParam) error {
	e := &cfg.Ergonomics
	if e.SittingThresholdMM <= 0 {
		e.SittingThresholdMM = 850
	}
	if e.SampleTickSeconds <= 0 {
		e.SampleTickSeconds = 1
	}
	if e.SecondsToReportedMinutes <= 0 {
		e.SecondsToReportedMinutes = 1.0 / 60.0
	}
	if e.TargetSittingPct <= 0 {
		e.TargetSittingPct = 60
	}
	if e.TargetStandingPct <= 0 {
		e.TargetStandingPct = 40
	}
	if e.TargetSittingPct+e.TargetStandingPct != 100 {
		return fmt.Errorf("ergonomics targets must sum to 100, got %v + %v",
			e.TargetSittingPct, e.TargetStandingPct)
	}
	if e.IdealChangesPerHour <= 0 {
		e.IdealChangesPerHour = 2
	}
	if e.ReportingWindow == "" {
		e.ReportingWindow = "24h"
	}
	if _, err := ParseDuration(e.ReportingWindow); err != nil {
		return fmt.Errorf("invalid ergonomics.reporting_window: %v", err)
	}
	return nil
}

func validateTLSConfig(cfg *ConfigParam) error {
	if cfg.SupportTLS {
		if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
			return fmt.Errorf("tls_cert_file and tls_key_file are required when support_tls is set")
		}
		if _, err := os.Stat(cfg.TLSCertFile); err != nil {
			return fmt.Errorf("error reading tls cert file: %v", err)
		}
		if _, err := os.Stat(cfg.TLSKeyFile); err != nil {
			return fmt.Errorf("error reading tls key file: %v", err)
		}
	}
	return nil
}

// LoadConfig loads configuration from a file.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	cfg = &ConfigParam{}
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	return nil
}

var isTest = false

// IsTest reports whether the process runs in test mode.
func IsTest() bool {
	return isTest
}

// SetTestMode toggles test mode.
func SetTestMode(test bool) {
	isTest = test
}

// TestInit installs a default in-memory configuration for unit tests. No
// config file is needed; tests that care about a knob override it on the
// returned value.
func TestInit() *ConfigParam {
	isTest = true
	cfg = &ConfigParam{
		FormatVersion:      Version,
		ServerHostName:     "localhost",
		ServerPort:         "8195",
		MaxRequestBodySize: 1 << 20,
		DB: DBConfig{
			Driver: "memory",
		},
		Telemetry: TelemetryConfig{
			BaseURL:        "http://127.0.0.1:8001",
			RequestTimeout: "1s",
		},
	}
	if err := ValidateConfig(cfg); err != nil {
		panic(fmt.Errorf("invalid test configuration: %v", err))
	}
	return cfg
}
