package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// pinger is satisfied by *pgxpool.Pool and by redisPinger.
type pinger interface {
	Ping(ctx context.Context) error
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Counter reports the size of one registry for the liveness payload.
type Counter func() int

type HealthHandler struct {
	postgres     pinger
	redis        pinger
	env          string
	version      string
	clinics      Counter
	users        Counter
	appointments Counter
	now          func() time.Time
}

func NewHealthHandler(pgPool *pgxpool.Pool, rdb *redis.Client, env, version string) *HealthHandler {
	h := &HealthHandler{
		env:     env,
		version: version,
		now:     time.Now,
	}
	if pgPool != nil {
		h.postgres = pgPool
	}
	if rdb != nil {
		h.redis = redisPinger{client: rdb}
	}
	return h
}

// WithCounts attaches the registry sizes reported by Liveness.
func (h *HealthHandler) WithCounts(clinics, users, appointments Counter) *HealthHandler {
	h.clinics = clinics
	h.users = users
	h.appointments = appointments
	return h
}

type LivenessResponse struct {
	Status            string `json:"status"`
	Service           string `json:"service"`
	Timestamp         string `json:"timestamp"`
	Version           string `json:"version,omitempty"`
	Env               string `json:"env,omitempty"`
	ClinicsCount      int    `json:"clinics_count"`
	UsersCount        int    `json:"users_count"`
	AppointmentsCount int    `json:"appointments_count"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:            "healthy",
		Service:           serviceName,
		Timestamp:         h.now().Format(time.RFC3339),
		Version:           h.version,
		Env:               h.env,
		ClinicsCount:      count(h.clinics),
		UsersCount:        count(h.users),
		AppointmentsCount: count(h.appointments),
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness pings the optional event sinks. Postgres down is an error,
// Redis down only degrades; an unconfigured sink is reported as disabled.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	switch state := probe(ctx, h.postgres); state {
	case "down":
		deps["postgres"] = state
		status = "error"
	default:
		deps["postgres"] = state
	}

	switch state := probe(ctx, h.redis); state {
	case "down":
		deps["redis"] = state
		if status == "ok" {
			status = "degraded"
		}
	default:
		deps["redis"] = state
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func probe(ctx context.Context, p pinger) string {
	if p == nil {
		return "disabled"
	}
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		return "down"
	}
	return "ok"
}

func count(c Counter) int {
	if c == nil {
		return 0
	}
	return c()
}
