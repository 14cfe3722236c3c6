package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := newConfig()

	// Defaults come from fuda struct tags
	assert.Equal(t, StoreMongo, cfg.Store.Kind)
	assert.Empty(t, cfg.Store.Address)
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Empty(t, cfg.CatalogFile)
	assert.Zero(t, cfg.Seed)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, uint(3), cfg.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, "sensorsim", cfg.Telemetry.ServiceName)
	assert.False(t, cfg.Telemetry.IsEnabled())
	require.NoError(t, cfg.validate())
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("SENSORSIM_STORE", "postgres")
	t.Setenv("SENSORSIM_STORE_ADDRESS", "postgres://db:5432/sensors")
	t.Setenv("SENSORSIM_INTERVAL", "2s")
	t.Setenv("SENSORSIM_SEED", "42")

	cfg := newConfig()
	require.NoError(t, cfg.applyEnvOverrides())

	assert.Equal(t, StorePostgres, cfg.Store.Kind)
	assert.Equal(t, "postgres://db:5432/sensors", cfg.Store.Address)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, uint64(42), cfg.Seed)
}

func TestParseConfig_Flags(t *testing.T) {
	cfg, err := parseConfig("run", []string{
		"--store", "nats",
		"--store-address", "nats://bus:4222",
		"--interval", "500ms",
		"--seed", "7",
		"--log-format", "json",
		"--retry-attempts", "1",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, StoreNATS, cfg.Store.Kind)
	assert.Equal(t, "nats://bus:4222", cfg.Store.Address)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, uint(1), cfg.Retry.MaxAttempts)
}

func TestParseConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  kind: postgres
  address: postgres://file:5432/db
  namespace: telemetry
interval: 30s
log:
  level: debug
`), 0o600))
	t.Setenv("SENSORSIM_STORE_ADDRESS", "postgres://env:5432/db")

	cfg, err := parseConfig("once", []string{"--config", path, "--interval", "1s"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store.Kind)
	assert.Equal(t, "telemetry", cfg.Store.Namespace)
	assert.Equal(t, "postgres://env:5432/db", cfg.Store.Address)
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParseConfig_ConfigFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensorsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: memory\n"), 0o600))
	t.Setenv("SENSORSIM_CONFIG", path)

	cfg, err := parseConfig("run", nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Kind)
}

func TestParseConfig_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"bad duration", []string{"--interval", "soon"}},
		{"unknown store", []string{"--store", "redis"}},
		{"zero interval", []string{"--interval", "0s"}},
		{"bad log format", []string{"--log-format", "xml"}},
		{"positional argument", []string{"extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig("run", tt.args, io.Discard)
			require.ErrorIs(t, err, errUsage)
		})
	}
}

func TestParseConfig_Help(t *testing.T) {
	_, err := parseConfig("run", []string{"-h"}, io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestParseConfig_MissingConfigFile(t *testing.T) {
	_, err := parseConfig("run", []string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, io.Discard)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errUsage)
}
