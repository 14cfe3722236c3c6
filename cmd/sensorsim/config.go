package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arloliu/fuda"
	"github.com/go-playground/validator/v10"

	"github.com/arloliu/sensorsim/gateway"
	"github.com/arloliu/sensorsim/telemetry"
)

// Store kinds accepted by StoreConfig.Kind.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreNATS     = "nats"
	StoreMemory   = "memory"
)

// errUsage marks errors caused by the command line rather than the environment.
var errUsage = errors.New("usage error")

// Config holds all CLI configuration.
// Sources apply in order: struct tag defaults, the optional config file, env vars, flags.
type Config struct {
	Store StoreConfig `yaml:"store"`

	// Interval is the tick period.
	Interval time.Duration `yaml:"interval" default:"10s" env:"SENSORSIM_INTERVAL" validate:"gt=0"`

	// CatalogFile replaces the embedded catalog when set.
	CatalogFile string `yaml:"catalogFile" env:"SENSORSIM_CATALOG"`

	// Seed makes readings reproducible. Zero picks a time-based seed.
	Seed uint64 `yaml:"seed" env:"SENSORSIM_SEED"`

	Log LogConfig `yaml:"log"`

	Retry gateway.RetryPolicy `yaml:"retry"`

	Telemetry telemetry.Config `yaml:"telemetry"`
}

// StoreConfig selects the persistence target. Empty fields take the defaults of the chosen kind.
//
//	kind      address      namespace       history             snapshots
//	mongo     URI          database        history collection  snapshot collection
//	postgres  DSN          schema          history table       snapshot table
//	nats      server URL   subject prefix  history stream      snapshot KV bucket
type StoreConfig struct {
	Kind      string `yaml:"kind" default:"mongo" env:"SENSORSIM_STORE" validate:"oneof=mongo postgres nats memory"`
	Address   string `yaml:"address" env:"SENSORSIM_STORE_ADDRESS"`
	Namespace string `yaml:"namespace" env:"SENSORSIM_STORE_NAMESPACE"`
	History   string `yaml:"history" env:"SENSORSIM_STORE_HISTORY"`
	Snapshots string `yaml:"snapshots" env:"SENSORSIM_STORE_SNAPSHOTS"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" env:"SENSORSIM_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" env:"SENSORSIM_LOG_FORMAT" validate:"oneof=text json"`
}

func newConfig() *Config {
	cfg := &Config{}
	// Apply defaults from struct tags (fuda handles time.Duration and *bool parsing)
	_ = fuda.SetDefaults(cfg)

	return cfg
}

// loadConfig returns defaults overlaid with the file at path, if any, and env vars.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		cfg := newConfig()
		if err := cfg.applyEnvOverrides(); err != nil {
			return nil, err
		}

		return cfg, nil
	}

	cfg := &Config{}
	// fuda.LoadFile handles reading, parsing, env vars, defaults, and validation
	if err := fuda.LoadFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if err := fuda.LoadEnv(c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	return nil
}

func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Store.Kind, "store", c.Store.Kind, "Store kind: mongo, postgres, nats or memory")
	fs.StringVar(&c.Store.Address, "store-address", c.Store.Address, "Store URI, DSN or server URL")
	fs.StringVar(&c.Store.Namespace, "store-namespace", c.Store.Namespace, "Database, schema or subject prefix")
	fs.StringVar(&c.Store.History, "store-history", c.Store.History, "History collection, table or stream")
	fs.StringVar(&c.Store.Snapshots, "store-snapshots", c.Store.Snapshots, "Snapshot collection, table or KV bucket")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "Tick period")
	fs.StringVar(&c.CatalogFile, "catalog", c.CatalogFile, "YAML or JSON catalog file (default: embedded)")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "Random seed (0: time-based)")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "Log format: text or json")
	fs.UintVar(&c.Retry.MaxAttempts, "retry-attempts", c.Retry.MaxAttempts, "Submissions per batch, including the first (1: no retries)")
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// parseConfig builds the configuration for a mode from its arguments. Flags that were set on
// the command line are replayed over the loaded file and env values so they take precedence.
func parseConfig(mode string, args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := os.Getenv("SENSORSIM_CONFIG")
	fs.StringVar(&configPath, "config", configPath, "YAML or JSON config file")
	newConfig().bindFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %q", errUsage, fs.Args())
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	replay := flag.NewFlagSet(mode, flag.ContinueOnError)
	replay.SetOutput(io.Discard)
	cfg.bindFlags(replay)

	var replayErr error
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := replay.Set(f.Name, f.Value.String()); err != nil {
			replayErr = errors.Join(replayErr, err)
		}
	})
	if replayErr != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, replayErr)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	return cfg, nil
}
