// Package app wires the gate server runtime: config, logging, domain
// services, HTTP routes, and the notify gateway.
//
// It is intentionally small and deterministic to keep CI gates strict and
// behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Krishanu16/gate-platform/cmd/internal/access"
	"github.com/Krishanu16/gate-platform/cmd/internal/admin"
	"github.com/Krishanu16/gate-platform/cmd/internal/gateapi"
	"github.com/Krishanu16/gate-platform/cmd/internal/notify"
	"github.com/Krishanu16/gate-platform/cmd/internal/registry"
	"github.com/Krishanu16/gate-platform/cmd/internal/voucher"
	"github.com/Krishanu16/gate-platform/cmd/security/password"
)

// Store is a small app-level lifecycle abstraction. It exists to allow
// DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the gate server runtime: it owns HTTP server wiring and the
// domain service graph.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws  *notify.Gateway
	api *gateapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogPretty)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, regStore, vchStore, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	reg, err := registry.NewService(registry.DefaultServiceConfig(), regStore, log)
	if err != nil {
		return nil, err
	}
	ev, err := access.NewEvaluator(regStore, log)
	if err != nil {
		return nil, err
	}

	ws := notify.NewGateway(log, notify.NewHub(log), reg)

	admSvc, err := newAdminService(cfg, log, regStore, dbPool, ws.Hub())
	if err != nil {
		return nil, err
	}

	vch, err := voucher.NewService(vchStore, reg)
	if err != nil {
		return nil, err
	}

	catalog, err := gateapi.LoadCatalogDir(cfg.ContentDir)
	if err != nil {
		return nil, err
	}
	log.Info("content.catalog.loaded", "dir", cfg.ContentDir, "modules", len(catalog.Modules()))

	apiCfg := gateapi.DefaultConfig()
	apiCfg.TrustProxy = cfg.TrustProxy
	api := gateapi.NewHandler(log, apiCfg, reg, ev, admSvc, vch, catalog, nil)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
		api:       api,
	}, nil
}

// newAdminService builds the override surface, or nil when no admin
// credentials are configured (the endpoints then answer 503).
func newAdminService(cfg Config, log Logger, regStore registry.Store, pool *pgxpool.Pool, hub *notify.Hub) (*admin.Service, error) {
	pwcfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	gate, err := admin.NewGate(admin.GateConfig{
		Username:     cfg.AdminUsername,
		PasswordHash: cfg.AdminPasswordHash,
	}, pwcfg)
	if err != nil {
		if errors.Is(err, admin.ErrNotConfigured) {
			log.Warn("admin.disabled", "reason", "no credentials configured")
			return nil, nil
		}
		return nil, err
	}

	return admin.NewService(gate, regStore, admin.NewAuditor(pool, log), hub, log), nil
}

// Run starts the HTTP server and blocks until context cancellation or
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.api)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the in-memory
// dev stores.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, registry.Store, voucher.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, registry.NewMemoryStore(), voucher.NewMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, nil, err
	}

	log.Info("db.enabled.postgres_store")

	regStore, err := registry.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, nil, err
	}
	vchStore, err := voucher.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, nil, err
	}

	// The app owns the pool lifecycle; the stores hold no resources of
	// their own.
	return dbStore{pool: pool}, pool, true, regStore, vchStore, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
