package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coopquality/internal/adapters/httpapi"
	"coopquality/internal/core"
	"coopquality/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, Prometheus metrics and the alert websocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := a.serve(ctx); err != nil {
				return a.fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

// server bundles the HTTP server with the resources it owns.
type server struct {
	http  *http.Server
	hub   *notify.Hub
	close func() error
}

// newServer wires store, service, metrics, websocket hub and routes. The hub
// must be started with hub.Run by the caller.
func (a *app) newServer(ctx context.Context) (*server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, err
	}
	hub := notify.NewHub(notify.WithLogger(a.logger))
	svc, closeStore, err := a.openService(ctx,
		core.WithMetricsRecorder(metrics),
		core.WithAlertDispatcher(hub),
		core.WithAuditRecorder(core.NewJSONAuditRecorder(a.stdout)),
	)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewHandler(svc, a.logger).Router()
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	router.GET("/ws/alerts", gin.WrapH(hub))

	return &server{
		http: &http.Server{
			Addr:              a.cfg.HTTP.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		hub:   hub,
		close: closeStore,
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	srv, err := a.newServer(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go srv.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", srv.http.Addr, "storage", a.cfg.Storage.Driver, "evidence", a.cfg.Blob.Driver)
		errCh <- srv.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.http.Shutdown(shutdownCtx)
}
