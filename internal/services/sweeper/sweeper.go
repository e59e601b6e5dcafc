package sweeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

const reasonOverdue = "estimated delivery date passed"

// OverdueStatuses are the statuses a cargo can still be marked Delayed from.
var OverdueStatuses = []models.CargoStatus{
	models.CargoStatusPending,
	models.CargoStatusInTransit,
	models.CargoStatusCustomsClearance,
}

type Repository interface {
	ClaimOverdueCargos(ctx context.Context, now time.Time, statuses []models.CargoStatus, limit int, lease time.Duration) ([]*models.Cargo, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Sweeper finds cargos past their estimated delivery date and asks cargo-api,
// through the status-updates topic, to mark them Delayed. The update goes
// through the regular write path so it gets a transition log like any other.
type Sweeper struct {
	repo     Repository
	producer Producer
	topic    string

	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration

	publishAttempts int
	publishBackoff  time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalPublished      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, producer Producer, topic string) *Sweeper {
	return &Sweeper{
		repo: repo, producer: producer, topic: topic,
		pollInterval:      time.Minute,
		batchSize:         100,
		concurrency:       10,
		lease:             10 * time.Minute,
		publishAttempts:   5,
		publishBackoff:    150 * time.Millisecond,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Sweeper {
	if pollInterval > 0 {
		s.pollInterval = pollInterval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if lease > 0 {
		s.lease = lease
	}
	return s
}

// Trigger forces an immediate sweep (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalPublished int64      `json:"totalPublished"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalClaimed:   s.totalClaimed.Load(),
		TotalPublished: s.totalPublished.Load(),
		TotalErrors:    s.totalErrors.Load(),
		InFlight:       s.inFlight.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	s.lastCycleUnixNano.Store(now.UnixNano())

	items, err := s.repo.ClaimOverdueCargos(ctx, now, OverdueStatuses, s.batchSize, s.lease)
	if err != nil {
		slog.Error("claim overdue cargos", "error", err.Error())
		s.setLastError(err)
		return
	}
	s.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, c := range items {
		sem <- struct{}{}
		wg.Add(1)
		s.inFlight.Add(1)
		go func() {
			defer func() {
				s.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := s.markDelayed(ctx, c, now); err != nil {
				s.totalErrors.Add(1)
				s.setLastError(err)
				slog.Error("mark cargo delayed", "cargo_id", c.ID, "error", err.Error())
				return
			}
			s.totalPublished.Add(1)
		}()
	}
	wg.Wait()
}

func (s *Sweeper) markDelayed(ctx context.Context, c *models.Cargo, now time.Time) error {
	b, err := json.Marshal(messages.CargoStatusUpdate{
		CargoID:     c.ID,
		Status:      string(models.CargoStatusDelayed),
		Reason:      reasonOverdue,
		RequestedAt: now,
	})
	if err != nil {
		return errors.Wrap(err, "marshal status update")
	}

	key := []byte(c.ID)
	var pubErr error
	for i := 0; i < s.publishAttempts; i++ {
		if pubErr = s.producer.Publish(ctx, s.topic, key, b); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * s.publishBackoff):
		}
	}
	return pubErr
}

func (s *Sweeper) setLastError(err error) {
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}
