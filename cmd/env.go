package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/udo-labs/udo-engine/internal/engine"
	"github.com/udo-labs/udo-engine/internal/notify"
	"github.com/udo-labs/udo-engine/internal/resilience"
	"github.com/udo-labs/udo-engine/internal/source"
	"github.com/udo-labs/udo-engine/internal/store"
)

// env bundles the wired application for a command invocation.
type env struct {
	Store  store.Store
	Engine *engine.Engine
	Hub    *notify.Hub
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "udo.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func guardConfig() resilience.GuardConfig {
	gc := resilience.DefaultGuardConfig()
	gc.Timeout = time.Duration(cfg.Source.TimeoutSecs) * time.Second
	gc.RatePerSec = cfg.Source.RatePerSec
	gc.Burst = cfg.Source.Burst
	gc.Breaker = resilience.BreakerConfig{
		FailureThreshold: cfg.Source.FailureThreshold,
		Cooldown:         time.Duration(cfg.Source.CooldownSecs) * time.Second,
	}
	return gc
}

// initEngine wires store, guarded source, hub and engine, and runs migrations.
func initEngine(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	params, err := engine.ParamsFromConfig(cfg.Engine)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	src := source.NewGuarded(source.NewStoreSource(st), guardConfig())
	hub := notify.NewHub()
	eng := engine.New(params, st, src, engine.WithPublisher(hub))

	return &env{Store: st, Engine: eng, Hub: hub}, nil
}
