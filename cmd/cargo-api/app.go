package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	cargosapi "github.com/BearBump/CargoTrack/internal/api/cargos_api"
	"github.com/BearBump/CargoTrack/internal/broker/kafka"
	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/services/cargos"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type cargoAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	gatherer prometheus.Gatherer

	// authRoutes, when set, is mounted under /api/auth.
	authRoutes http.Handler

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

type statusUpdater interface {
	ApplyStatusUpdate(ctx context.Context, msg messages.CargoStatusUpdate) error
}

func runCargoAPI(ctx context.Context, opts cargoAPIOpts, api *cargosapi.CargosAPI, svc *cargos.Service, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, newRouter(api, opts))
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		err := consumer.Consume(ctx, statusUpdateHandler(svc))
		if err != nil && ctx.Err() == nil {
			slog.Error("kafka consumer stopped", "topic", opts.topic, "error", err.Error())
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func newRouter(api *cargosapi.CargosAPI, opts cargoAPIOpts) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	gatherer := opts.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	if opts.authRoutes != nil {
		r.Mount("/api/auth", opts.authRoutes)
	}
	r.Mount("/", api.Routes())
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if err == http.ErrServerClosed {
		return ctx.Err()
	}
	return err
}

// statusUpdateHandler drops undecodable messages. Store errors go back to the
// consumer, which retries the same message so a command is never skipped.
func statusUpdateHandler(svc statusUpdater) kafka.Handler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		var m messages.CargoStatusUpdate
		if err := json.Unmarshal(value, &m); err != nil {
			return kafka.Drop(errors.Wrap(err, "decode status update"))
		}
		return svc.ApplyStatusUpdate(ctx, m)
	}
}
