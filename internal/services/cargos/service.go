package cargos

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/cache"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const trackHistoryLimit = 500

type Repository interface {
	CreateCargo(ctx context.Context, c *models.Cargo) (*models.Cargo, error)
	UpdateCargo(ctx context.Context, id string, patch models.CargoPatch) (updated, original *models.Cargo, err error)
	GetCargoByID(ctx context.Context, id string) (*models.Cargo, error)
	GetCargoByTrackingCode(ctx context.Context, code string) (*models.Cargo, error)
	ListCargos(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error)
	ListStatusLogs(ctx context.Context, cargoID string, limit, offset int) ([]*models.StatusLog, error)
}

// BeforeCreateHook may mutate the candidate cargo; it cannot reject it.
type BeforeCreateHook func(c *models.Cargo, actor *models.Actor)

// AfterCreateHook and AfterUpdateHook run after the write is committed and
// cannot fail it; they own their error reporting.
type AfterCreateHook func(ctx context.Context, c *models.Cargo, actor *models.Actor)

type AfterUpdateHook func(ctx context.Context, updated, original *models.Cargo, actor *models.Actor)

// LogRecorder stores status log entries written by hand rather than by a cargo write.
type LogRecorder interface {
	Record(ctx context.Context, l *models.StatusLog, actor *models.Actor) (*models.StatusLog, error)
}

type Service struct {
	repo      Repository
	cache     cache.BytesCache
	publicTTL time.Duration

	beforeCreate []BeforeCreateHook
	afterCreate  []AfterCreateHook
	afterUpdate  []AfterUpdateHook
	logs         LogRecorder
}

func New(repo Repository, c cache.BytesCache, publicTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, publicTTL: publicTTL}
}

func (s *Service) WithBeforeCreate(h ...BeforeCreateHook) *Service {
	s.beforeCreate = append(s.beforeCreate, h...)
	return s
}

func (s *Service) WithAfterCreate(h ...AfterCreateHook) *Service {
	s.afterCreate = append(s.afterCreate, h...)
	return s
}

func (s *Service) WithAfterUpdate(h ...AfterUpdateHook) *Service {
	s.afterUpdate = append(s.afterUpdate, h...)
	return s
}

func (s *Service) WithLogRecorder(r LogRecorder) *Service {
	s.logs = r
	return s
}

func (s *Service) CreateCargo(ctx context.Context, in models.CargoCreateInput, actor *models.Actor) (*models.Cargo, error) {
	status := in.CurrentStatus
	if status == "" {
		status = models.CargoStatusPending
	}
	if !status.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidStatus, "status %q", status)
	}

	c := &models.Cargo{
		TrackingCode:          strings.TrimSpace(in.TrackingCode),
		SenderName:            in.SenderName,
		SenderPhone:           in.SenderPhone,
		ReceiverName:          in.ReceiverName,
		ReceiverPhone:         in.ReceiverPhone,
		Origin:                in.Origin,
		Destination:           in.Destination,
		CurrentStatus:         status,
		EstimatedDeliveryDate: in.EstimatedDeliveryDate,
	}
	for _, h := range s.beforeCreate {
		h(c, actor)
	}

	created, err := s.repo.CreateCargo(ctx, c)
	if err != nil {
		return nil, err
	}

	for _, h := range s.afterCreate {
		h(ctx, created, actor)
	}
	s.dropPublic(ctx, created.TrackingCode)
	return created, nil
}

func (s *Service) UpdateCargo(ctx context.Context, id string, patch models.CargoPatch, actor *models.Actor) (*models.Cargo, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "cargo id is required")
	}
	if patch.CurrentStatus != nil && !patch.CurrentStatus.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidStatus, "status %q", *patch.CurrentStatus)
	}

	updated, original, err := s.repo.UpdateCargo(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	for _, h := range s.afterUpdate {
		h(ctx, updated, original, actor)
	}
	s.dropPublic(ctx, updated.TrackingCode)
	return updated, nil
}

func (s *Service) UpdateCargoStatus(ctx context.Context, id string, status models.CargoStatus, actor *models.Actor) (*models.Cargo, error) {
	return s.UpdateCargo(ctx, id, models.CargoPatch{CurrentStatus: &status}, actor)
}

func (s *Service) GetCargo(ctx context.Context, id string) (*models.Cargo, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "cargo id is required")
	}
	return s.repo.GetCargoByID(ctx, id)
}

func (s *Service) ListCargos(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidStatus, "status %q", f.Status)
	}
	return s.repo.ListCargos(ctx, f)
}

func (s *Service) ListStatusLogs(ctx context.Context, cargoID string, limit, offset int) ([]*models.StatusLog, error) {
	return s.repo.ListStatusLogs(ctx, cargoID, limit, offset)
}

// AddStatusLog appends a history entry without touching the cargo itself.
// The status defaults to the cargo's current one.
func (s *Service) AddStatusLog(ctx context.Context, cargoID string, in models.StatusLogInput, actor *models.Actor) (*models.StatusLog, error) {
	if s.logs == nil {
		return nil, errors.New("status log recorder is not configured")
	}
	c, err := s.GetCargo(ctx, cargoID)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = c.CurrentStatus
	}
	if !status.Valid() {
		return nil, errors.Wrapf(models.ErrInvalidStatus, "status %q", status)
	}

	l, err := s.logs.Record(ctx, &models.StatusLog{
		CargoID:   c.ID,
		Status:    status,
		Location:  strings.TrimSpace(in.Location),
		Note:      strings.TrimSpace(in.Note),
		UpdatedBy: in.UpdatedBy,
	}, actor)
	if err != nil {
		return nil, err
	}
	s.dropPublic(ctx, c.TrackingCode)
	return l, nil
}

// TrackingView is what the public tracking page gets for a code.
type TrackingView struct {
	Cargo   *models.Cargo       `json:"cargo"`
	History []*models.StatusLog `json:"history"`
}

// cachedView is a public tracking entry tagged with the generation it was
// read under. Entries from an older generation are ignored.
type cachedView struct {
	Gen  string       `json:"gen"`
	View TrackingView `json:"view"`
}

// TrackByCode looks a cargo up by tracking code, ignoring case. Cache errors
// are treated as misses.
func (s *Service) TrackByCode(ctx context.Context, code string) (*TrackingView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "tracking code is required")
	}

	// The generation is read before the database so a write landing in
	// between leaves this result tagged stale.
	gen, cacheable := s.generation(ctx, code)
	if cacheable {
		if b, ok, err := s.cache.Get(ctx, publicKey(code)); err == nil && ok {
			var e cachedView
			if json.Unmarshal(b, &e) == nil && e.Gen == gen && e.View.Cargo != nil {
				return &e.View, nil
			}
		}
	}

	c, err := s.repo.GetCargoByTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListStatusLogs(ctx, c.ID, trackHistoryLimit, 0)
	if err != nil {
		return nil, err
	}
	v := &TrackingView{Cargo: c, History: history}

	if cacheable {
		b, _ := json.Marshal(cachedView{Gen: gen, View: *v})
		_ = s.cache.Set(ctx, publicKey(code), b, s.publicTTL)
	}
	return v, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.publicTTL > 0
}

// generation returns the current cache generation for code. A missing key is
// generation "". When it cannot be read the result is not cached at all.
func (s *Service) generation(ctx context.Context, code string) (string, bool) {
	if !s.cacheEnabled() {
		return "", false
	}
	b, ok, err := s.cache.Get(ctx, genKey(code))
	if err != nil {
		return "", false
	}
	if !ok {
		return "", true
	}
	return string(b), true
}

// dropPublic moves code to a new generation, then removes the cached view.
// The generation outlives any entry written under the previous one.
func (s *Service) dropPublic(ctx context.Context, code string) {
	if !s.cacheEnabled() || code == "" {
		return
	}
	if err := s.cache.Set(ctx, genKey(code), []byte(uuid.NewString()), s.publicTTL+time.Hour); err != nil {
		slog.Warn("bump public tracking generation", "tracking_code", code, "error", err.Error())
	}
	if err := s.cache.Del(ctx, publicKey(code)); err != nil {
		slog.Warn("drop public tracking cache", "tracking_code", code, "error", err.Error())
	}
}

func publicKey(code string) string {
	return fmt.Sprintf("cargo:code:%s:public", strings.ToLower(code))
}

func genKey(code string) string {
	return fmt.Sprintf("cargo:code:%s:gen", strings.ToLower(code))
}
