package users_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/users"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
)

const loginScope = "login"

type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int64, window time.Duration) (bool, int64, error)
}

// UsersAPI serves account registration and sign-in under /api/auth.
type UsersAPI struct {
	svc *users.Service

	rl       RateLimiter
	rlPerMin int64
}

// New builds the API. A nil rate limiter or non-positive limit disables
// throttling of login attempts.
func New(svc *users.Service, rl RateLimiter, perMinute int64) *UsersAPI {
	return &UsersAPI{svc: svc, rl: rl, rlPerMin: perMinute}
}

// Routes are relative to the mount point.
func (a *UsersAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Post("/register", a.register)
	r.Post("/login", a.login)
	return r
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type SessionDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserDTO   `json:"user"`
}

func toSessionDTO(s *users.Session) SessionDTO {
	return SessionDTO{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User: UserDTO{
			ID:        s.User.ID,
			Email:     s.User.Email,
			Name:      s.User.Name,
			Role:      string(s.User.Role),
			CreatedAt: s.User.CreatedAt,
		},
	}
}

func (a *UsersAPI) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := a.svc.Register(r.Context(), models.RegisterInput{Email: req.Email, Name: req.Name, Password: req.Password})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	slog.Info("user registered", "user_id", sess.User.ID)
	writeJSON(w, http.StatusCreated, toSessionDTO(sess))
}

func (a *UsersAPI) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !a.allowLogin(r) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	sess, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

// allowLogin applies a per-IP fixed window. Limiter errors let the request through.
func (a *UsersAPI) allowLogin(r *http.Request) bool {
	if a.rl == nil || a.rlPerMin <= 0 {
		return true
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ok, _, err := a.rl.Allow(r.Context(), loginScope, ip, a.rlPerMin, time.Minute)
	if err != nil {
		slog.Warn("login rate limiter", "ip", ip, "error", err.Error())
		return true
	}
	return ok
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, models.ErrUserExists):
		writeError(w, http.StatusConflict, "email is already registered")
	case errors.Is(err, models.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("users api", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
