package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medcard/medcard/internal/config"
	"github.com/medcard/medcard/internal/domain/access"
	"github.com/medcard/medcard/internal/domain/auditlog"
	"github.com/medcard/medcard/internal/domain/patient"
	"github.com/medcard/medcard/internal/domain/practitioner"
	"github.com/medcard/medcard/internal/domain/registry"
	"github.com/medcard/medcard/internal/domain/validation"
	"github.com/medcard/medcard/internal/platform/auth"
	"github.com/medcard/medcard/internal/platform/db"
	"github.com/medcard/medcard/internal/platform/metrics"
	"github.com/medcard/medcard/internal/platform/middleware"
)

const (
	version        = "0.1.0"
	requestTimeout = 30 * time.Second
	maxBodySize    = "1M"
)

// app holds everything the router needs. pinConn is nil when the router is
// built without a database (tests); per-request connections are then skipped.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	pinConn echo.MiddlewareFunc

	registry      *registry.Store
	engine        *validation.Engine
	practitioners *practitioner.Service
	patients      *patient.Service
	auditlog      *auditlog.Service
	access        *access.Service

	storeHealth  db.Pinger
	ledgerHealth db.Pinger
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts, err := poolOptions(cfg)
	if err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	ledger, ledgerHealth, closeLedger, err := openLedger(cfg, pool)
	if err != nil {
		return err
	}
	defer closeLedger()
	logger.Info().Str("driver", cfg.LedgerDriver).Msg("audit ledger ready")

	m := metrics.New()
	store, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	store.OnReload(func(rep registry.LoadReport) {
		m.ObserveRegistryLoad(rep.Degraded(), rep.Authorized.Records, rep.Blacklisted.Records)
	})
	logRegistryLoad(logger, store.Reload(ctx))

	if cfg.RegistryWatch {
		w := registry.NewWatcher(store, []string{cfg.RegistryAuthorizedSource, cfg.RegistryBlacklistSource}, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("registry watcher stopped")
			}
		}()
	}

	a := newApp(cfg, logger, m, pool, store, ledger)
	a.storeHealth = pool
	a.ledgerHealth = ledgerHealth

	e := a.router()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return e.Shutdown(shutdownCtx)
}

// openLedger selects the access log backend. The returned Pinger backs
// /health/ledger and close releases anything the ledger owns.
func openLedger(cfg *config.Config, pool *pgxpool.Pool) (auditlog.Ledger, db.Pinger, func(), error) {
	if cfg.LedgerDriver == config.LedgerSQLite {
		l, err := auditlog.OpenSQLiteLedger(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return l, l, func() { _ = l.Close() }, nil
	}
	return auditlog.NewLedgerPG(pool), pool, func() {}, nil
}

func newApp(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics, pool *pgxpool.Pool,
	store *registry.Store, ledger auditlog.Ledger) *app {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		timeout:  requestTimeout,
		registry: store,
		engine:   validation.NewEngine(store),
		auditlog: auditlog.NewService(ledger),
	}
	if pool != nil {
		a.pinConn = db.ConnMiddleware(pool)
	}
	a.practitioners = practitioner.NewService(practitioner.NewRepoPG(pool))
	a.patients = patient.NewService(patient.NewRepoPG(pool))
	a.access = access.NewService(a.practitioners, a.patients, a.engine, a.auditlog, m, logger)
	return a
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:   a.cfg.AuthIssuer,
		Audience: a.cfg.AuthAudience,
		JWKSURL:  a.cfg.AuthJWKSURL,
	}
	if a.cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(a.cfg.AuthSigningKey)
	}
	if a.cfg.IsDev() {
		a.logger.Warn().Msg("development auth enabled, identities may be set with " + auth.DevIdentityHeader)
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders(!a.cfg.IsDev()))
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader, auth.DevIdentityHeader},
	}))
	if a.cfg.MetricsEnabled {
		e.Use(a.metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	if a.storeHealth != nil {
		e.GET("/health/db", db.HealthHandler("postgres", a.storeHealth))
	}
	if a.ledgerHealth != nil {
		e.GET("/health/ledger", db.HealthHandler(a.cfg.LedgerDriver, a.ledgerHealth))
	}

	apiV1 := a.apiGroup(e, "/api/v1")
	practitioner.NewHandler(a.practitioners).RegisterRoutes(apiV1)
	patient.NewHandler(a.patients).RegisterRoutes(apiV1)
	auditlog.NewHandler(a.auditlog).RegisterRoutes(apiV1)
	access.NewHandler(a.access).RegisterRoutes(apiV1)
	validation.NewHandler(a.engine, a.registry).RegisterRoutes(apiV1)

	return e
}

// apiGroup applies the authenticated API chain. The pinned connection sits
// inside the deadline so it is acquired under it and released only after
// the handler has returned.
func (a *app) apiGroup(e *echo.Echo, prefix string) *echo.Group {
	g := e.Group(prefix, a.authMiddleware())
	g.Use(middleware.RequestTimeout(a.timeout))
	g.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}))
	if a.pinConn != nil {
		g.Use(a.pinConn)
	}
	return g
}
