package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/CargoTrack/config"
	cargosapi "github.com/BearBump/CargoTrack/internal/api/cargos_api"
	usersapi "github.com/BearBump/CargoTrack/internal/api/users_api"
	"github.com/BearBump/CargoTrack/internal/audit"
	"github.com/BearBump/CargoTrack/internal/broker/kafka"
	"github.com/BearBump/CargoTrack/internal/cache/rediscache"
	"github.com/BearBump/CargoTrack/internal/services/cargos"
	"github.com/BearBump/CargoTrack/internal/services/users"
	"github.com/BearBump/CargoTrack/internal/storage/pgcargo"
	"github.com/prometheus/client_golang/prometheus"
)

type cargoAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   cargoAPIOpts
	api    *cargosapi.CargosAPI
	svc    *cargos.Service

	consumer *kafka.Consumer
	closers  []func()
}

type apiSettings struct {
	httpAddr      string
	consumerGroup string
	updatesTopic  string
	changedTopic  string
	cacheTTL      time.Duration
	rlPerMin      int64
	tokenTTL      time.Duration
}

func apiSettingsFrom(cfg *config.Config) apiSettings {
	s := apiSettings{
		httpAddr:      cfg.CargoTrack.HTTPAddr,
		consumerGroup: cfg.CargoTrack.KafkaConsumerGroup,
		updatesTopic:  cfg.Kafka.CargoStatusUpdatesTopicName,
		changedTopic:  cfg.Kafka.CargoStatusChangedTopicName,
		cacheTTL:      time.Duration(cfg.CargoTrack.PublicCacheTTLSeconds) * time.Second,
		rlPerMin:      int64(cfg.CargoTrack.PublicRateLimitPerMinute),
		tokenTTL:      time.Duration(cfg.Auth.TokenTTLSeconds) * time.Second,
	}
	if s.httpAddr == "" {
		s.httpAddr = ":8080"
	}
	if s.consumerGroup == "" {
		s.consumerGroup = "cargo-api"
	}
	if s.updatesTopic == "" {
		s.updatesTopic = "cargo.status.updates"
	}
	if s.changedTopic == "" {
		s.changedTopic = "cargo.status.changed"
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = time.Minute
	}
	if s.rlPerMin <= 0 {
		s.rlPerMin = 60
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}
	return s
}

func mustBootstrapCargoAPI() *cargoAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("parse config: %v", err))
	}
	if cfg.Auth.JWTSecret == "" {
		panic("auth.jwt_secret is required")
	}
	s := apiSettingsFrom(cfg)

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), s.updatesTopic, s.consumerGroup)

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	assigner := audit.NewAssigner(nil, nil)
	recorder := audit.NewRecorder(st, audit.NewMetrics(registry))
	publisher := cargos.NewStatusPublisher(kafka.NewGuardedProducer(producer, "cargo-status-changed", 5, 30*time.Second), s.changedTopic)

	// Order matters: the history entry is written before the change is announced.
	svc := cargos.New(st, rc, s.cacheTTL).
		WithBeforeCreate(assigner.BeforeCreate).
		WithAfterCreate(recorder.AfterCreate).
		WithAfterUpdate(recorder.AfterUpdate, publisher.AfterUpdate).
		WithLogRecorder(recorder)
	accounts := usersapi.New(users.New(st, cfg.Auth.JWTSecret, s.tokenTTL), rl, s.rlPerMin)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &cargoAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: cargoAPIOpts{
			httpAddr:      s.httpAddr,
			swaggerPath:   swaggerPath,
			topic:         s.updatesTopic,
			consumerGroup: s.consumerGroup,
			gatherer:      registry,
			authRoutes:    accounts.Routes(),
		},
		api:      cargosapi.New(svc, cfg.Auth.JWTSecret, rl, s.rlPerMin),
		svc:      svc,
		consumer: consumer,
		closers: []func(){
			func() { _ = consumer.Close() },
			func() { _ = producer.Close() },
			func() { _ = rl.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgcargo.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgcargo.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *cargoAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *cargoAPIApp) Run() error {
	return runCargoAPI(a.ctx, a.opts, a.api, a.svc, a.consumer)
}
