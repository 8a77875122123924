package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dermaluz/agenda/internal/agenda"
)

type RouterConfig struct {
	Engine  *agenda.Engine
	View    *agenda.View
	Dirs    agenda.Directories
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(OperatorMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := NewHandlers(cfg.Engine, cfg.View, cfg.Dirs)

	// Appointment lifecycle
	r.Post("/appointments", h.book)
	r.Get("/appointments", h.list)
	r.Get("/appointments/{id}", h.get)
	r.Put("/appointments/{id}", h.edit)
	r.Post("/appointments/{id}/cancel", h.cancel)
	r.Post("/appointments/{id}/complete", h.complete)
	r.Post("/appointments/{id}/reassign", h.reassign)
	r.Delete("/appointments/{id}", h.remove)

	// Grid projections
	r.Get("/agenda/week", h.week)
	r.Get("/agenda/day", h.day)

	// Selection lists
	r.Get("/directory/patients", listDirectory(cfg.Dirs.Patients))
	r.Get("/directory/treatments", listDirectory(cfg.Dirs.Treatments))
	r.Get("/directory/offices", listDirectory(cfg.Dirs.Offices))

	return r
}
