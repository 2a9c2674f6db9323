package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/minisc/minisc/internal/api"
	"github.com/minisc/minisc/internal/config"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// server is asked to stop.
const shutdownTimeout = 30 * time.Second

// ServeFlags are the serve command's inputs.
type ServeFlags struct {
	ClusterFlags
	Addr string
}

// listen opens the server socket. Tests replace it.
var listen = func(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve handles the serve command. It exposes the workflows over HTTP
// until ctx is cancelled.
//
// Each request overlays its fields on the configuration loaded here, so
// the config file only needs the settings requests do not carry.
func Serve(ctx context.Context, flags ServeFlags) error {
	zl, logger, err := newLogger(flags.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	if !flags.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	svc := newService(logger)
	router := api.SetupRouter(&api.RouterConfig{
		Service: svc,
		BaseConfig: func() (*config.Config, error) {
			return loadConfig(flags.ConfigPath, flags.Provider)
		},
		Logger:   zl,
		Registry: svc.Metrics().Registry,
	})

	ln, err := listen(flags.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", flags.Addr, err)
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("API server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	zl.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
