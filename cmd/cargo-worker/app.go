package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/broker/kafka"
	"github.com/BearBump/CargoTrack/internal/services/sweeper"
	"github.com/BearBump/CargoTrack/internal/storage/pgcargo"
)

type workerFactories struct {
	newStorage  func(cfg *config.Config) (repo sweeper.Repository, closeFn func(), err error)
	newProducer func(cfg *config.Config) (p sweeper.Producer, closeFn func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (sweeper.Repository, func(), error) {
			st, err := pgcargo.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (sweeper.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
	}
}

type workerSettings struct {
	topic        string
	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration
	httpAddr     string
}

func workerSettingsFrom(cfg *config.Config) workerSettings {
	s := workerSettings{
		topic:        cfg.Kafka.CargoStatusUpdatesTopicName,
		pollInterval: time.Duration(cfg.CargoTrack.WorkerPollIntervalSeconds) * time.Second,
		batchSize:    cfg.CargoTrack.WorkerBatchSize,
		concurrency:  cfg.CargoTrack.WorkerConcurrency,
		lease:        time.Duration(cfg.CargoTrack.WorkerLeaseSeconds) * time.Second,
		httpAddr:     cfg.CargoTrack.WorkerHTTPAddr,
	}
	if s.topic == "" {
		s.topic = "cargo.status.updates"
	}
	if s.pollInterval <= 0 {
		s.pollInterval = time.Minute
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.concurrency <= 0 {
		s.concurrency = 10
	}
	if s.lease <= 0 {
		s.lease = 10 * time.Minute
	}
	if s.httpAddr == "" {
		s.httpAddr = ":8082"
	}
	return s
}

// RunCargoWorker runs the delay sweeper until ctx ends. The status HTTP server
// is started only when swaggerPath is set; its failure does not stop sweeping.
func RunCargoWorker(ctx context.Context, cfg *config.Config, f workerFactories, swaggerPath string) error {
	s := workerSettingsFrom(cfg)

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}

	sw := sweeper.New(repo, producer, s.topic).
		WithSettings(s.pollInterval, s.batchSize, s.concurrency, s.lease)

	if swaggerPath != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    s.httpAddr,
				swaggerPath: swaggerPath,
				sweeper:     sw,
				settings:    s,
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("worker http server stopped", "error", err.Error())
			}
		}()
	}

	slog.Info("delay sweeper started", "topic", s.topic, "poll_interval", s.pollInterval.String(), "batch_size", s.batchSize)
	return sw.Run(ctx)
}
