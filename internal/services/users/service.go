package users

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/auth"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

type Repository interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Session is what a successful sign-in hands back.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Service registers client accounts and exchanges credentials for access
// tokens. Staff accounts are provisioned out of band.
type Service struct {
	repo     Repository
	secret   string
	tokenTTL time.Duration
	cost     int
	now      func() time.Time
}

func New(repo Repository, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{repo: repo, secret: jwtSecret, tokenTTL: tokenTTL, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost sets the bcrypt cost used for new password hashes.
func (s *Service) WithCost(cost int) *Service {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.cost = cost
	}
	return s
}

func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, errors.Wrapf(models.ErrInvalidInput, "password must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, errors.Wrap(models.ErrInvalidInput, "password is too long")
	}
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u, err := s.repo.CreateUser(ctx, &models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         models.RoleClient,
	})
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// Login never says which of email or password was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) session(u *models.User) (*Session, error) {
	tok, err := auth.IssueToken(s.secret, *u.Actor(), s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: s.now().UTC().Add(s.tokenTTL), User: u}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", errors.Wrap(models.ErrInvalidInput, "email is invalid")
	}
	return strings.ToLower(addr.Address), nil
}
