package pgcargo

import (
	"context"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

// CreateStatusLog appends one history entry. created_at is assigned by the database clock.
func (s *Storage) CreateStatusLog(ctx context.Context, l *models.StatusLog) (*models.StatusLog, error) {
	out := *l
	err := s.db.QueryRow(ctx, `
INSERT INTO cargo_status_logs (cargo_id, status, location, note, updated_by, created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''), clock_timestamp())
RETURNING id, created_at
`, l.CargoID, string(l.Status), l.Location, l.Note, l.UpdatedBy).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert status log")
	}
	return &out, nil
}

func (s *Storage) ListStatusLogs(ctx context.Context, cargoID string, limit, offset int) ([]*models.StatusLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, cargo_id, status, location, note, COALESCE(updated_by, ''), created_at
FROM cargo_status_logs
WHERE cargo_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2 OFFSET $3
`, cargoID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select status logs")
	}
	defer rows.Close()

	out := []*models.StatusLog{}
	for rows.Next() {
		var l models.StatusLog
		var status string
		if err := rows.Scan(&l.ID, &l.CargoID, &status, &l.Location, &l.Note, &l.UpdatedBy, &l.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan status log")
		}
		l.Status = models.CargoStatus(status)
		out = append(out, &l)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
