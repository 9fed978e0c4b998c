package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"5s", 5 * time.Second, false},
		{"10m", 10 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"2d", 48 * time.Hour, false},
		{"", 0, true},
		{"5", 0, true},
		{"abc", 0, true},
		{"5w", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.input)
		if tc.wantErr {
			assert.Error(t, err, tc.input)
			continue
		}
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.expected, got, tc.input)
	}
}

func TestValidateConfigFillsDefaults(t *testing.T) {
	cfg := &ConfigParam{
		FormatVersion: Version,
		ServerPort:    "8195",
		DB:            DBConfig{Driver: "memory"},
		Telemetry:     TelemetryConfig{BaseURL: "http://127.0.0.1:8001"},
	}
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, int64(1<<20), cfg.MaxRequestBodySize)
	assert.Equal(t, "5s", cfg.Telemetry.RequestTimeout)
	assert.Equal(t, 680, cfg.Telemetry.DefaultHeightMM)
	assert.Equal(t, 850, cfg.Ergonomics.SittingThresholdMM)
	assert.Equal(t, 1.0, cfg.Ergonomics.SampleTickSeconds)
	assert.InDelta(t, 1.0/60.0, cfg.Ergonomics.SecondsToReportedMinutes, 1e-9)
	assert.Equal(t, 60.0, cfg.Ergonomics.TargetSittingPct)
	assert.Equal(t, 40.0, cfg.Ergonomics.TargetStandingPct)
	assert.Equal(t, 2.0, cfg.Ergonomics.IdealChangesPerHour)
	assert.Equal(t, "24h", cfg.Ergonomics.ReportingWindow)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	base := func() *ConfigParam {
		return &ConfigParam{
			FormatVersion: Version,
			ServerPort:    "8195",
			DB:            DBConfig{Driver: "memory"},
			Telemetry:     TelemetryConfig{BaseURL: "http://127.0.0.1:8001"},
		}
	}

	cfg := base()
	cfg.FormatVersion = "9.9.9"
	assert.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.ServerPort = ""
	assert.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.DB.Driver = "sqlite"
	assert.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.Telemetry.BaseURL = ""
	assert.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.Ergonomics.TargetSittingPct = 70
	cfg.Ergonomics.TargetStandingPct = 40
	assert.Error(t, ValidateConfig(cfg))

	cfg = base()
	cfg.Ergonomics.ReportingWindow = "soon"
	assert.Error(t, ValidateConfig(cfg))
}

func TestPostgresConfigRequiresConnectionFields(t *testing.T) {
	cfg := &ConfigParam{
		FormatVersion: Version,
		ServerPort:    "8195",
		DB:            DBConfig{Driver: "postgres"},
		Telemetry:     TelemetryConfig{BaseURL: "http://127.0.0.1:8001"},
	}
	assert.Error(t, ValidateConfig(cfg))

	cfg.DB = DBConfig{
		Driver:   "postgres",
		Host:     "localhost",
		Port:     5432,
		DBName:   "deskwise",
		User:     "deskwise",
		Password: "abc@123",
		SSLMode:  "disable",
	}
	require.NoError(t, ValidateConfig(cfg))
	assert.Contains(t, cfg.DSN(), "host=localhost")
	assert.Contains(t, cfg.DSN(), "dbname=deskwise")
}

func TestTestInitUsesMemoryDriver(t *testing.T) {
	cfg := TestInit()
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.True(t, IsTest())
	assert.Equal(t, cfg, Config())
}
