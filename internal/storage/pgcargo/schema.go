package pgcargo

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS cargos (
  id TEXT PRIMARY KEY,
  tracking_code TEXT NOT NULL,
  sender_name TEXT NOT NULL DEFAULT '',
  sender_phone TEXT NOT NULL DEFAULT '',
  receiver_name TEXT NOT NULL DEFAULT '',
  receiver_phone TEXT NOT NULL DEFAULT '',
  origin TEXT NOT NULL DEFAULT '',
  destination TEXT NOT NULL DEFAULT '',
  current_status TEXT NOT NULL,
  estimated_delivery_date TIMESTAMPTZ NULL,
  created_by TEXT NULL,
  sweep_lease_until TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Public lookups are case-insensitive, so uniqueness is too.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_cargos_tracking_code ON cargos(lower(tracking_code))`,
		`CREATE INDEX IF NOT EXISTS idx_cargos_created_by ON cargos(created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_cargos_status_eta ON cargos(current_status, estimated_delivery_date)`,
		`
CREATE TABLE IF NOT EXISTS cargo_status_logs (
  id BIGSERIAL PRIMARY KEY,
  cargo_id TEXT NOT NULL REFERENCES cargos(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  note TEXT NOT NULL DEFAULT '',
  updated_by TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_cargo_status_logs_cargo_id_created_at ON cargo_status_logs(cargo_id, created_at, id)`,
		`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'client',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users(lower(email))`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
