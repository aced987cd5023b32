package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"invest-analyzer/api"
	"invest-analyzer/internal/alert"
	"invest-analyzer/internal/config"
	"invest-analyzer/internal/infrastructure"
	"invest-analyzer/internal/model"
	"invest-analyzer/internal/processor"
	"invest-analyzer/internal/provider"
	"invest-analyzer/internal/push"
	"invest-analyzer/internal/storage"
	"invest-analyzer/internal/syncer"
	"invest-analyzer/internal/tradestats"
)

// App defines the application structure and its dependencies
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *pgxpool.Pool
	NC           *nats.Conn
	JS           nats.JetStreamContext
	Store        *storage.Store
	Orchestrator *syncer.Orchestrator
	Monitor      *alert.Monitor
	PushGateway  *push.Gateway
	Multipliers  tradestats.MultiplierTable
	HTTPServer   *http.Server
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	infrastructure.Init()
	logger := infrastructure.Logger

	return &App{
		Config: &cfg,
		Logger: logger,
	}, nil
}

// Init initializes all application components
func (a *App) Init(ctx context.Context) error {
	// 1. Database
	dbPool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = dbPool
	a.Store = storage.New(dbPool, a.Logger)

	if err := a.Store.InitSchema(ctx, "scripts/init.sql"); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 2. NATS
	nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.NC = nc
	a.JS = js

	// 3. Option multipliers
	hk, err := config.LoadHKMultipliers(a.Config.HKMultipliersFile)
	if err != nil {
		return fmt.Errorf("failed to load HK multipliers: %w", err)
	}
	a.Multipliers = tradestats.MultiplierTable{HK: hk, US: map[string]int64{}}

	// 4. Providers and services
	quotes := map[model.Market]provider.QuoteProvider{}
	if a.Config.AlpacaAPIKey != "" {
		quotes[model.MarketUS] = provider.NewAlpacaQuoteProvider(
			a.Config.AlpacaAPIKey, a.Config.AlpacaAPISecret, a.Logger)
	}

	enricher := processor.NewEnricher(a.Store, a.Logger)
	a.Orchestrator = syncer.NewOrchestrator(a.Store, quotes, provider.UnconfiguredBroker{},
		enricher, a.Logger, syncer.Config{
			Workers:         a.Config.SyncWorkers,
			BarFetchTimeout: time.Duration(a.Config.BarFetchTimeoutMS) * time.Millisecond,
			BrokerTimeout:   time.Duration(a.Config.BrokerTimeoutMS) * time.Millisecond,
			MaxRetries:      a.Config.SyncMaxRetries,
			RetryBackoff:    500 * time.Millisecond,
			KlineDays:       a.Config.KlineDays,
			TradeDays:       a.Config.TradeDays,
		})

	a.Monitor = alert.NewMonitor(a.Store, a.JS, a.Logger)
	a.PushGateway = push.NewGateway(a.JS, a.Logger)

	return nil
}

// Run starts the monitor loop and the HTTP server
func (a *App) Run(ctx context.Context) error {
	a.startAlertLoop(ctx)

	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

// startAlertLoop periodically evaluates active price alerts.
func (a *App) startAlertLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sum := a.Monitor.CheckAll(ctx, 0)
				if sum.Triggered > 0 || len(sum.Errors) > 0 {
					a.Logger.Info("alert check finished",
						zap.Int("checked", sum.Checked),
						zap.Int("triggered", sum.Triggered),
						zap.Int("errors", len(sum.Errors)))
				}
			}
		}
	}()
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.NC.Close()
	a.DB.Close()

	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	apiHandler := api.NewHandler(a.Store, a.Orchestrator, a.Monitor,
		a.Multipliers, a.Config.JWTSecret, a.Logger)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/register", apiHandler.Register)
		v1.POST("/login", apiHandler.Login)
		v1.GET("/klines/:symbol", apiHandler.GetKlines)
	}

	protected := r.Group("/api/v1")
	protected.Use(api.AuthMiddleware(a.Config.JWTSecret))
	{
		protected.GET("/analyze/:symbol", apiHandler.Analyze)
		protected.GET("/portfolio", apiHandler.Portfolio)
		protected.GET("/tradestats", apiHandler.TradeStats)
		protected.POST("/backtest", apiHandler.RunBacktest)
		protected.POST("/sync/:type", apiHandler.Sync)
		protected.POST("/alerts", apiHandler.CreateAlert)
		protected.GET("/alerts", apiHandler.ListAlerts)
		protected.POST("/alerts/check", apiHandler.CheckAlerts)
	}

	r.GET("/ws", func(c *gin.Context) {
		a.PushGateway.ServeHTTP(c.Writer, c.Request)
	})

	return r
}
