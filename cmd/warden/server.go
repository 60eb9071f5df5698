package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"github.com/chatguard/chatguard/aggregator"
	"github.com/chatguard/chatguard/cachestore"
	"github.com/chatguard/chatguard/engine"
	"github.com/chatguard/chatguard/eventlog"
	"github.com/chatguard/chatguard/gateway"
	"github.com/chatguard/chatguard/policy"
	"github.com/chatguard/chatguard/reputation"
	"github.com/chatguard/chatguard/signal"
	"github.com/chatguard/chatguard/util/cliutil"
)

type Server struct {
	logger   *slog.Logger
	engine   *engine.Engine
	policies policy.DefinitionStore
	decay    *reputation.DecayWorker
	echo     *echo.Echo
}

type Config struct {
	DatabaseURL         string
	MaxDBConnections    int
	RedisURL            string
	ClassifierHost      string
	ClassifierRateLimit int
	SlackWebhookURL     string
	DecayInterval       time.Duration
	Logger              *slog.Logger
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
	if err != nil {
		return nil, fmt.Errorf("setting up database: %w", err)
	}

	repStore, err := reputation.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing reputation store: %w", err)
	}
	ledger, err := reputation.NewGormCoreLedger(db)
	if err != nil {
		return nil, fmt.Errorf("initializing core ledger: %w", err)
	}
	defStore, err := policy.NewGormDefinitionStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing policy store: %w", err)
	}

	var events eventlog.EventLog
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		evl, err := eventlog.NewRedisEventLog(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis event log: %w", err)
		}
		events = evl
		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %w", err)
		}
		cache = csh
	} else {
		events = eventlog.NewMemEventLog()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
	}

	var store reputation.Store = reputation.NewCachedStore(repStore, cache, logger.With("system", "reputation"))

	backend := gateway.NewClient(gateway.ClientConfig{
		Host:      config.ClassifierHost,
		PerSecond: config.ClassifierRateLimit,
		Logger:    logger.With("system", "gateway"),
	})

	eng := &engine.Engine{
		Logger: logger,
		Aggregator: &aggregator.Aggregator{
			Logger:  logger.With("system", "aggregator"),
			Fast:    &signal.HTTPClassifier{Client: backend, Layer: signal.LayerPattern},
			Intent:  &signal.HTTPClassifier{Client: backend, Layer: signal.LayerIntent},
			Content: &signal.HTTPClassifier{Client: backend, Layer: signal.LayerContent},
			Context: &signal.HTTPClassifier{Client: backend, Layer: signal.LayerContext},
		},
		Reputation: store,
		Ledger:     ledger,
		Policies:   policy.NewEngine(logger.With("system", "policy"), defStore, events),
		Events:     events,
	}
	if config.SlackWebhookURL != "" {
		eng.Notifier = &engine.SlackNotifier{SlackWebhookURL: config.SlackWebhookURL}
	}

	decay := reputation.NewDecayWorker(store, logger.With("system", "decay"))
	if config.DecayInterval > 0 {
		decay.Interval = config.DecayInterval
	}

	s := &Server{
		logger:   logger,
		engine:   eng,
		policies: defStore,
		decay:    decay,
	}
	s.echo = s.buildEcho()
	return s, nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.logger.With("system", "http")))
	e.Use(middleware.Recover())

	e.GET("/_health", s.handleHealthCheck)
	e.POST("/api/v1/messages", s.handleMessage)
	e.GET("/api/v1/reputation/:scope/:user", s.handleGetReputation)
	e.POST("/api/v1/reputation/:scope/:user/override", s.handleOverride)
	e.GET("/api/v1/policies/:scope", s.handleListPolicies)
	e.POST("/api/v1/policies/:scope", s.handleCreatePolicy)
	e.PUT("/api/v1/policies/:scope/:id", s.handleUpdatePolicy)
	e.DELETE("/api/v1/policies/:scope/:id", s.handleDeletePolicy)
	return e
}

// SeedPolicies installs the default policy set for each named scope,
// skipping any policies that already exist.
func (s *Server) SeedPolicies(ctx context.Context, scopes []string) error {
	for _, scope := range scopes {
		if err := policy.SeedDefaults(ctx, s.policies, scope); err != nil {
			return fmt.Errorf("seeding policies for scope %s: %w", scope, err)
		}
		s.logger.Info("seeded default policies", "scope", scope)
	}
	return nil
}

// Run starts the decay worker and the HTTP API, blocking until the context
// is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, bind string) error {
	go s.decay.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http shutdown failed", "err", err)
		}
	}()
	err := s.echo.Start(bind)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(c echo.Context) error {
	var msg engine.Message
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message body")
	}
	if msg.Scope == "" || msg.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "scope and userId are required")
	}
	dec := s.engine.ProcessMessage(c.Request().Context(), msg)
	return c.JSON(http.StatusOK, dec)
}

func (s *Server) handleGetReputation(c echo.Context) error {
	rec, err := s.engine.Reputation.GetScore(c.Request().Context(), c.Param("user"), c.Param("scope"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "reputation lookup failed")
	}
	return c.JSON(http.StatusOK, rec)
}

type overrideRequest struct {
	Score     float64 `json:"score"`
	Moderator string  `json:"moderator"`
}

func (s *Server) handleOverride(c echo.Context) error {
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid override body")
	}
	if req.Moderator == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "moderator is required")
	}
	rec, err := reputation.ApplyOverride(c.Request().Context(), s.engine.Reputation, c.Param("user"), c.Param("scope"), req.Score, req.Moderator)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "override failed")
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListPolicies(c echo.Context) error {
	defs, err := s.policies.List(c.Request().Context(), c.Param("scope"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "policy list failed")
	}
	return c.JSON(http.StatusOK, defs)
}

func (s *Server) handleCreatePolicy(c echo.Context) error {
	var def policy.Definition
	if err := c.Bind(&def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid policy body")
	}
	def.Scope = c.Param("scope")
	if def.ID == "" || def.Condition.Category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id and condition.category are required")
	}
	if err := s.policies.Create(c.Request().Context(), &def); err != nil {
		return echo.NewHTTPError(http.StatusConflict, "policy create failed")
	}
	return c.JSON(http.StatusCreated, def)
}

func (s *Server) handleUpdatePolicy(c echo.Context) error {
	var def policy.Definition
	if err := c.Bind(&def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid policy body")
	}
	def.Scope = c.Param("scope")
	def.ID = c.Param("id")
	if err := s.policies.Update(c.Request().Context(), &def); err != nil {
		if err == policy.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "no such policy")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "policy update failed")
	}
	return c.JSON(http.StatusOK, def)
}

func (s *Server) handleDeletePolicy(c echo.Context) error {
	if err := s.policies.Delete(c.Request().Context(), c.Param("scope"), c.Param("id")); err != nil {
		if err == policy.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "no such policy")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "policy delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}
