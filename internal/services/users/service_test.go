package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/auth"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "test-secret"

type memRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
}

func newMemRepo() *memRepo { return &memRepo{users: map[string]*models.User{}} }

func (r *memRepo) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	key := strings.ToLower(u.Email)
	if _, ok := r.users[key]; ok {
		return nil, models.ErrUserExists
	}
	out := *u
	out.ID = fmt.Sprintf("u%d", len(r.users)+1)
	out.CreatedAt = time.Now().UTC()
	stored := out
	r.users[key] = &stored
	return &out, nil
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func newService(r *memRepo) *Service {
	return New(r, secret, time.Hour).WithCost(bcrypt.MinCost)
}

func TestService_RegisterThenLogin(t *testing.T) {
	r := newMemRepo()
	svc := newService(r)
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	sess, err := svc.Register(ctx, models.RegisterInput{Email: " Awa@Example.com ", Name: " Awa ", Password: "correct horse"})
	require.NoError(t, err)
	require.Equal(t, "awa@example.com", sess.User.Email)
	require.Equal(t, "Awa", sess.User.Name)
	require.Equal(t, models.RoleClient, sess.User.Role)
	require.Equal(t, time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC), sess.ExpiresAt)

	// only the hash is stored
	stored := r.users["awa@example.com"]
	require.NotEqual(t, "correct horse", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")))

	actor, err := auth.ParseToken(secret, sess.Token)
	require.NoError(t, err)
	require.Equal(t, sess.User.ID, actor.ID)
	require.Equal(t, models.RoleClient, actor.Role)

	sess, err = svc.Login(ctx, "AWA@example.com", "correct horse")
	require.NoError(t, err)
	actor, err = auth.ParseToken(secret, sess.Token)
	require.NoError(t, err)
	require.Equal(t, stored.ID, actor.ID)
}

func TestService_LoginKeepsStaffRole(t *testing.T) {
	r := newMemRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("dispatch-2025"), bcrypt.MinCost)
	require.NoError(t, err)
	r.users["ops@example.com"] = &models.User{ID: "U2", Email: "ops@example.com", PasswordHash: string(hash), Role: models.RoleStaff}

	sess, err := newService(r).Login(context.Background(), "ops@example.com", "dispatch-2025")
	require.NoError(t, err)
	actor, err := auth.ParseToken(secret, sess.Token)
	require.NoError(t, err)
	require.True(t, actor.IsStaff())
}

func TestService_LoginRejects(t *testing.T) {
	r := newMemRepo()
	svc := newService(r)
	ctx := context.Background()
	_, err := svc.Register(ctx, models.RegisterInput{Email: "awa@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "awa@example.com", "wrong horse")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, models.ErrInvalidCredentials)

	r.err = errors.New("db down")
	_, err = svc.Login(ctx, "awa@example.com", "correct horse")
	require.Error(t, err)
	require.NotErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestService_RegisterValidation(t *testing.T) {
	svc := newService(newMemRepo())
	ctx := context.Background()

	cases := map[string]models.RegisterInput{
		"bad email":      {Email: "not-an-email", Password: "correct horse"},
		"display name":   {Email: "Awa <awa@example.com>", Password: "correct horse"},
		"short password": {Email: "awa@example.com", Password: "short"},
		"long password":  {Email: "awa@example.com", Password: strings.Repeat("x", 73)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, in)
			require.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc := newService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterInput{Email: "awa@example.com", Password: "correct horse"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, models.RegisterInput{Email: "AWA@example.com", Password: "another one"})
	require.ErrorIs(t, err, models.ErrUserExists)
}

func TestNew_Defaults(t *testing.T) {
	svc := New(nil, secret, 0).WithCost(1)
	require.Equal(t, 24*time.Hour, svc.tokenTTL)
	require.Equal(t, bcrypt.DefaultCost, svc.cost)
}
