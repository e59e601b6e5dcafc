package pgcargo

import (
	"context"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

const userColumns = `id, email, name, password_hash, role, created_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// CreateUser stores u with a fresh ID. A taken email yields models.ErrUserExists.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	out, err := scanUser(s.db.QueryRow(ctx, `
INSERT INTO users (id, email, name, password_hash, role, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+userColumns,
		uuid.NewString(), u.Email, u.Name, u.PasswordHash, string(u.Role), time.Now().UTC()))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, models.ErrUserExists
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return out, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return u, nil
}
