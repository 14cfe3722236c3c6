package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arloliu/fuda"

	"github.com/arloliu/sensorsim/gateway"
	"github.com/arloliu/sensorsim/gateway/mongostore"
	"github.com/arloliu/sensorsim/gateway/natsstore"
	"github.com/arloliu/sensorsim/gateway/pgstore"
)

// store is a gateway that owns a connection.
type store interface {
	gateway.Gateway
	Close(ctx context.Context) error
}

type storeOpener func(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (store, error)

var storeOpeners = map[string]storeOpener{
	StoreMongo:    openMongo,
	StorePostgres: openPostgres,
	StoreNATS:     openNATS,
	StoreMemory: func(context.Context, StoreConfig, *slog.Logger) (store, error) {
		return gateway.NewMemory(), nil
	},
}

// openStore connects to the configured store and wraps it with retries and instrumentation.
// The returned close function releases the connection.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (gateway.Gateway, func(context.Context) error, error) {
	open, ok := storeOpeners[cfg.Store.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	st, err := open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}

	gw := gateway.WithRetry(st, cfg.Retry, logger)
	gw = gateway.Observe(gw, logger)

	return gw, st.Close, nil
}

func openMongo(ctx context.Context, sc StoreConfig, logger *slog.Logger) (store, error) {
	cfg := mongostore.Config{}
	_ = fuda.SetDefaults(&cfg)
	override(&cfg.URI, sc.Address)
	override(&cfg.Database, sc.Namespace)
	override(&cfg.History, sc.History)
	override(&cfg.Snapshots, sc.Snapshots)

	return mongostore.Open(ctx, cfg, mongostore.WithLogger(logger))
}

func openPostgres(ctx context.Context, sc StoreConfig, logger *slog.Logger) (store, error) {
	cfg := pgstore.Config{}
	_ = fuda.SetDefaults(&cfg)
	override(&cfg.DSN, sc.Address)
	override(&cfg.Schema, sc.Namespace)
	override(&cfg.History, sc.History)
	override(&cfg.Snapshots, sc.Snapshots)

	return pgstore.Open(ctx, cfg, pgstore.WithLogger(logger))
}

func openNATS(ctx context.Context, sc StoreConfig, logger *slog.Logger) (store, error) {
	cfg := natsstore.Config{}
	_ = fuda.SetDefaults(&cfg)
	override(&cfg.URL, sc.Address)
	override(&cfg.SubjectPrefix, sc.Namespace)
	override(&cfg.Stream, sc.History)
	override(&cfg.Bucket, sc.Snapshots)

	return natsstore.Open(ctx, cfg, natsstore.WithLogger(logger))
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
