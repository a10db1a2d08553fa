package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/internal/core/services"
	httphandlers "cctvdash/internal/handlers/http"
	"cctvdash/internal/infrastructure/backend"
	"cctvdash/internal/infrastructure/middleware"
	"cctvdash/internal/infrastructure/monitoring"
	"cctvdash/internal/infrastructure/projection"
	"cctvdash/internal/infrastructure/pushchannel"
	"cctvdash/pkg/circuitbreaker"
	"cctvdash/pkg/config"
	"cctvdash/pkg/logger"
	"cctvdash/pkg/retry"
	"cctvdash/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var demoMode bool
	var demoTick time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, demoMode, demoTick)
		},
	}
	cmd.Flags().BoolVar(&demoMode, "demo", false, "start the simulated backend in-process and follow it")
	cmd.Flags().DurationVar(&demoTick, "demo-tick", 5*time.Second, "interval between simulated presence changes in demo mode")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, demoMode bool, demoTick time.Duration) error {
	startTime := time.Now()

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if demoMode {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listen for demo backend: %w", err)
		}
		demoSrv := startDemoBackend(listener, demoTick, log.Named("demo"))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = demoSrv.Shutdown(shutdownCtx)
		}()

		addr := listener.Addr().String()
		cfg.Backend.BaseURL = "http://" + addr
		cfg.Push.Transport = "websocket"
		cfg.Push.URL = "ws://" + addr + "/camera"
		log.Infow("Demo mode enabled", "backend", cfg.Backend.BaseURL)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "cctvdash",
		Version:     version,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error shutting down tracer provider", "error", err)
		}
	}()

	// Metrics: in-process counters, exported to prometheus when enabled
	var exporter ports.DashboardMetrics
	if cfg.Monitoring.PrometheusEnabled {
		exporter = monitoring.NewPrometheusCollector(nil)
	}
	metricsService := services.NewMetricsService(exporter)

	backendClient, err := backend.NewClient(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		RequestTimeout: cfg.Backend.RequestTimeout,
		Retry: retry.Policy{
			MaxAttempts:  cfg.Backend.Retry.MaxAttempts,
			InitialDelay: cfg.Backend.Retry.InitialDelay,
			MaxDelay:     cfg.Backend.Retry.MaxDelay,
			Multiplier:   cfg.Backend.Retry.Multiplier,
		},
		CircuitBreaker: circuitbreaker.Config{
			FailureThreshold:    cfg.Backend.CircuitBreaker.MaxFailures,
			SuccessThreshold:    1,
			Timeout:             cfg.Backend.CircuitBreaker.ResetTimeout,
			MaxRequestsHalfOpen: 1,
		},
	}, metricsService, log.Named("backend"))
	if err != nil {
		return err
	}

	pushFactory := pushchannel.NewFactory(cfg, log.Named("push"))
	defer pushFactory.Close()

	var commands ports.StreamCommandSender
	push, transport, err := pushFactory.Create()
	if err != nil {
		log.Warnw("Push channel unavailable, live view disabled", "error", err)
	} else {
		commands = push
		log.Infow("Push channel ready", "transport", transport)
	}

	hub := projection.NewHub(projection.Config{
		PingInterval: cfg.Projection.PingInterval,
		WriteTimeout: cfg.Projection.WriteTimeout,
		SendBuffer:   cfg.Projection.SendBuffer,
	}, log.Named("projection"))

	dashCfg := services.DefaultDashboardConfig()
	dashCfg.PollInterval = cfg.Backend.PollInterval
	dashCfg.RequestTimeout = cfg.Backend.RequestTimeout
	dashCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	dashCfg.TrackLimiter = middleware.NewTrackLimiter(cfg)

	dashboard, err := services.NewDashboard(backendClient, commands, metricsService, log.Named("dashboard"), dashCfg, hub)
	if err != nil {
		return err
	}

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddBackendCheck(dashboard.Snapshot)
	if push != nil {
		healthChecker.AddPushCheck(push.Connected)
	}
	if client := pushFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 2*time.Second)
	}

	router, err := newRouter(cfg, log, dashboard, metricsService, hub, healthChecker, startTime)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	dashCtx, cancelDash := context.WithCancel(context.Background())
	defer cancelDash()
	pushCtx, cancelPush := context.WithCancel(context.Background())
	defer cancelPush()

	dashboardDone := make(chan struct{})
	go func() {
		defer close(dashboardDone)
		if err := dashboard.Run(dashCtx); err != nil {
			log.Errorw("Dashboard stopped with error", "error", err)
		}
	}()

	pushDone := make(chan struct{})
	go func() {
		defer close(pushDone)
		if push == nil {
			return
		}
		if err := push.Run(pushCtx, dashboard); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("Push channel stopped with error", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting cctvdash server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
		runErr = err
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	}

	log.Info("Shutting down cctvdash server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	// The dashboard flushes its stop_stream command through the push channel,
	// so the channel is closed only after the dashboard has stopped.
	cancelDash()
	select {
	case <-dashboardDone:
	case <-shutdownCtx.Done():
		log.Warn("Timed out waiting for dashboard to stop")
	}
	cancelPush()
	if push != nil {
		if err := push.Close(); err != nil {
			log.Errorw("Error closing push channel", "error", err)
		}
	}
	<-pushDone

	log.Info("cctvdash server stopped")
	return runErr
}

func newRouter(
	cfg *config.Config,
	log *zap.SugaredLogger,
	dashboard *services.Dashboard,
	metricsService *services.MetricsService,
	hub *projection.Hub,
	healthChecker *monitoring.HealthChecker,
	startTime time.Time,
) (*gin.Engine, error) {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(log.Named("http"))),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(log),
	)

	var guards httphandlers.RouteGuards
	if cfg.Auth.Enabled {
		authService, err := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
		if err != nil {
			return nil, err
		}
		authenticate := middleware.AuthMiddleware(authService)
		guards.View = []gin.HandlerFunc{authenticate}
		guards.Operate = []gin.HandlerFunc{authenticate, middleware.RequireRole(authService, domain.RoleOperator)}
		httphandlers.NewAuthHandler(authService).SetupRoutes(router)
		log.Info("Operator authentication enabled")
	}

	httphandlers.NewDashboardHandler(dashboard, metricsService).SetupRoutes(router, guards)

	// Live snapshot stream for viewers
	wsHandlers := append([]gin.HandlerFunc{}, guards.View...)
	wsHandlers = append(wsHandlers, gin.WrapF(hub.HandleWebSocket))
	router.GET("/ws", wsHandlers...)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"viewers":   hub.ConnectedViewers(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := healthChecker.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	return router, nil
}
