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

	"cctvdash/internal/infrastructure/demo"
	"cctvdash/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDemoBackendCmd(opts *rootOptions) *cobra.Command {
	var address string
	var tick time.Duration

	cmd := &cobra.Command{
		Use:   "demo-backend",
		Short: "Run the simulated camera/presence backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer zapLogger.Sync()
			log := zapLogger.Sugar().Named("demo")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", address)
			if err != nil {
				return fmt.Errorf("listen %s: %w", address, err)
			}
			srv := startDemoBackend(listener, tick, log)

			<-ctx.Done()
			log.Info("Shutting down demo backend...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&address, "address", ":5000", "listen address")
	cmd.Flags().DurationVar(&tick, "tick", 5*time.Second, "interval between simulated presence changes")
	return cmd
}

type demoServer struct {
	server *http.Server
	stop   chan struct{}
	log    *zap.SugaredLogger
}

// startDemoBackend serves the simulated backend on listener and starts the
// presence simulation.
func startDemoBackend(listener net.Listener, tick time.Duration, log *zap.SugaredLogger) *demoServer {
	gin.SetMode(gin.ReleaseMode)
	backend := demo.NewBackend(log)

	d := &demoServer{
		server: &http.Server{Handler: backend.Router()},
		stop:   make(chan struct{}),
		log:    log,
	}
	go backend.Run(tick, d.stop)
	go func() {
		log.Infow("Demo backend listening", "address", listener.Addr().String())
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Demo backend failed", "error", err)
		}
	}()
	return d
}

func (d *demoServer) Shutdown(ctx context.Context) error {
	close(d.stop)
	if err := d.server.Shutdown(ctx); err != nil {
		d.log.Errorw("Error during demo backend shutdown", "error", err)
		return d.server.Close()
	}
	return nil
}
