package pgcargo

import (
	"context"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const cargoColumns = `
  id, tracking_code,
  sender_name, sender_phone, receiver_name, receiver_phone,
  origin, destination,
  current_status, estimated_delivery_date,
  COALESCE(created_by, ''),
  created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCargo(row scanner) (*models.Cargo, error) {
	var c models.Cargo
	var status string
	var eta *time.Time
	if err := row.Scan(
		&c.ID, &c.TrackingCode,
		&c.SenderName, &c.SenderPhone, &c.ReceiverName, &c.ReceiverPhone,
		&c.Origin, &c.Destination,
		&status, &eta,
		&c.CreatedBy,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.CurrentStatus = models.CargoStatus(status)
	c.EstimatedDeliveryDate = eta
	return &c, nil
}

func collectCargos(rows pgx.Rows) ([]*models.Cargo, error) {
	defer rows.Close()

	out := []*models.Cargo{}
	for rows.Next() {
		c, err := scanCargo(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan cargo")
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CreateCargo inserts c as is and fills ID and timestamps.
func (s *Storage) CreateCargo(ctx context.Context, c *models.Cargo) (*models.Cargo, error) {
	now := time.Now().UTC()

	out := *c
	out.ID = uuid.NewString()

	row := s.db.QueryRow(ctx, `
INSERT INTO cargos (
  id, tracking_code,
  sender_name, sender_phone, receiver_name, receiver_phone,
  origin, destination,
  current_status, estimated_delivery_date,
  created_by, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$12)
RETURNING `+cargoColumns,
		out.ID, out.TrackingCode,
		out.SenderName, out.SenderPhone, out.ReceiverName, out.ReceiverPhone,
		out.Origin, out.Destination,
		string(out.CurrentStatus), out.EstimatedDeliveryDate,
		out.CreatedBy, now,
	)
	created, err := scanCargo(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert cargo")
	}
	return created, nil
}

// UpdateCargo applies patch under a row lock and returns the stored row
// before and after the change.
func (s *Storage) UpdateCargo(ctx context.Context, id string, patch models.CargoPatch) (updated, original *models.Cargo, err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	original, err = scanCargo(tx.QueryRow(ctx, `SELECT `+cargoColumns+` FROM cargos WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, models.ErrCargoNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "select cargo for update")
	}

	next := *original
	patch.Apply(&next)

	updated, err = scanCargo(tx.QueryRow(ctx, `
UPDATE cargos
SET
  sender_name = $2,
  sender_phone = $3,
  receiver_name = $4,
  receiver_phone = $5,
  origin = $6,
  destination = $7,
  current_status = $8,
  estimated_delivery_date = $9,
  updated_at = now()
WHERE id = $1
RETURNING `+cargoColumns,
		id,
		next.SenderName, next.SenderPhone, next.ReceiverName, next.ReceiverPhone,
		next.Origin, next.Destination,
		string(next.CurrentStatus), next.EstimatedDeliveryDate,
	))
	if err != nil {
		return nil, nil, errors.Wrap(err, "update cargo")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit tx")
	}
	return updated, original, nil
}

func (s *Storage) GetCargoByID(ctx context.Context, id string) (*models.Cargo, error) {
	c, err := scanCargo(s.db.QueryRow(ctx, `SELECT `+cargoColumns+` FROM cargos WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCargoNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select cargo")
	}
	return c, nil
}

func (s *Storage) GetCargoByTrackingCode(ctx context.Context, code string) (*models.Cargo, error) {
	c, err := scanCargo(s.db.QueryRow(ctx, `SELECT `+cargoColumns+` FROM cargos WHERE lower(tracking_code) = lower($1)`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCargoNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select cargo by code")
	}
	return c, nil
}

func (s *Storage) ListCargos(ctx context.Context, f models.CargoFilter) ([]*models.Cargo, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT `+cargoColumns+`
FROM cargos
WHERE ($1 = '' OR current_status = $1)
  AND ($2 = '' OR created_by = $2)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4
`, string(f.Status), f.CreatedBy, f.Limit, f.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "select cargos")
	}
	return collectCargos(rows)
}

// ClaimOverdueCargos picks cargos whose estimated delivery date has passed while
// they are still in one of statuses, and leases them so a concurrent sweep skips them.
// Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimOverdueCargos(ctx context.Context, now time.Time, statuses []models.CargoStatus, limit int, lease time.Duration) ([]*models.Cargo, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	raw := make([]string, 0, len(statuses))
	for _, st := range statuses {
		raw = append(raw, string(st))
	}

	rows, err := tx.Query(ctx, `
SELECT `+cargoColumns+`
FROM cargos
WHERE estimated_delivery_date <= $1
  AND current_status = ANY($2)
  AND (sweep_lease_until IS NULL OR sweep_lease_until <= $1)
ORDER BY estimated_delivery_date ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), raw, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select overdue cargos")
	}
	picked, err := collectCargos(rows)
	if err != nil {
		return nil, err
	}

	leaseUntil := now.UTC().Add(lease)
	for _, c := range picked {
		if _, err := tx.Exec(ctx, `UPDATE cargos SET sweep_lease_until = $2 WHERE id = $1`, c.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease cargo")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}
