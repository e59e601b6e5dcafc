package cargos_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/CargoTrack/internal/auth"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/cargos"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
)

const trackScope = "track"

type RateLimiter interface {
	Allow(ctx context.Context, scope, subject string, limit int64, window time.Duration) (bool, int64, error)
}

type CargosAPI struct {
	svc *cargos.Service

	rl        RateLimiter
	rlPerMin  int64
	jwtSecret string
}

// New builds the API. A nil rate limiter or non-positive limit disables
// throttling of the public tracking endpoint.
func New(svc *cargos.Service, jwtSecret string, rl RateLimiter, perMinute int64) *CargosAPI {
	return &CargosAPI{
		svc:       svc,
		rl:        rl,
		rlPerMin:  perMinute,
		jwtSecret: jwtSecret,
	}
}

func (a *CargosAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(auth.Authenticate(a.jwtSecret))

	r.Get("/api/track/{code}", a.trackByCode)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor)
		r.Post("/api/cargos", a.createCargo)
		r.Get("/api/cargos", a.listCargos)
		r.Get("/api/cargos/{id}", a.getCargo)
		r.Get("/api/cargos/{id}/logs", a.listStatusLogs)
		r.With(auth.RequireStaff).Patch("/api/cargos/{id}", a.updateCargo)
		r.With(auth.RequireStaff).Post("/api/cargos/{id}/logs", a.addStatusLog)
	})
	return r
}

func (a *CargosAPI) createCargo(w http.ResponseWriter, r *http.Request) {
	var req CreateCargoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actor := auth.ActorFromContext(r.Context())

	// Only staff may hand out their own tracking codes or start past Pending.
	if !actor.IsStaff() {
		req.TrackingCode = ""
		req.CurrentStatus = ""
	}

	c, err := a.svc.CreateCargo(r.Context(), req.toInput(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCargoDTO(c))
}

func (a *CargosAPI) listCargos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.CargoFilter{
		Status:    models.CargoStatus(q.Get("status")),
		CreatedBy: q.Get("created_by"),
		Limit:     atoiOr(q.Get("limit"), 0),
		Offset:    atoiOr(q.Get("offset"), 0),
	}
	if actor := auth.ActorFromContext(r.Context()); !actor.IsStaff() {
		f.CreatedBy = actor.ActorID()
	}

	items, err := a.svc.ListCargos(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]CargoDTO, 0, len(items))
	for _, c := range items {
		out = append(out, toCargoDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cargos": out})
}

func (a *CargosAPI) getCargo(w http.ResponseWriter, r *http.Request) {
	c, err := a.visibleCargo(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCargoDTO(c))
}

func (a *CargosAPI) updateCargo(w http.ResponseWriter, r *http.Request) {
	var req UpdateCargoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := a.svc.UpdateCargo(r.Context(), chi.URLParam(r, "id"), req.toPatch(), auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCargoDTO(c))
}

func (a *CargosAPI) listStatusLogs(w http.ResponseWriter, r *http.Request) {
	c, err := a.visibleCargo(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	q := r.URL.Query()
	logs, err := a.svc.ListStatusLogs(r.Context(), c.ID, atoiOr(q.Get("limit"), 0), atoiOr(q.Get("offset"), 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": toStatusLogDTOs(logs)})
}

func (a *CargosAPI) addStatusLog(w http.ResponseWriter, r *http.Request) {
	var req CreateStatusLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	l, err := a.svc.AddStatusLog(r.Context(), chi.URLParam(r, "id"), req.toInput(), auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStatusLogDTO(l))
}

func (a *CargosAPI) trackByCode(w http.ResponseWriter, r *http.Request) {
	if !a.allowPublic(r) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	v, err := a.svc.TrackByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TrackingDTO{
		Cargo:   toPublicCargoDTO(v.Cargo),
		History: toStatusLogDTOs(v.History),
	})
}

// visibleCargo loads the {id} cargo and hides it from clients who did not create it.
func (a *CargosAPI) visibleCargo(r *http.Request) (*models.Cargo, error) {
	c, err := a.svc.GetCargo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	actor := auth.ActorFromContext(r.Context())
	if !actor.IsStaff() && c.CreatedBy != actor.ActorID() {
		return nil, models.ErrForbidden
	}
	return c, nil
}

// allowPublic applies a per-IP fixed window. Limiter errors let the request through.
func (a *CargosAPI) allowPublic(r *http.Request) bool {
	if a.rl == nil || a.rlPerMin <= 0 {
		return true
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ok, _, err := a.rl.Allow(r.Context(), trackScope, ip, a.rlPerMin, time.Minute)
	if err != nil {
		slog.Warn("public rate limiter", "ip", ip, "error", err.Error())
		return true
	}
	return ok
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrCargoNotFound):
		writeError(w, http.StatusNotFound, "cargo not found")
	case errors.Is(err, models.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, models.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("cargos api", "error", err.Error())
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

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
