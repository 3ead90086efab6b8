package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dentalreserve/internal/appointment"
	"github.com/hackgods/dentalreserve/internal/auth"
	"github.com/hackgods/dentalreserve/internal/clinic"
	"github.com/hackgods/dentalreserve/internal/eventlog"
	"github.com/hackgods/dentalreserve/internal/metrics"
	"github.com/hackgods/dentalreserve/internal/user"
	"github.com/hackgods/dentalreserve/pkg/logging"
)

const serviceName = "dentalreserve"

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookingRequest) (appointment.Appointment, error)
	List(patientEmail string) []appointment.Appointment
	Get(id string) (appointment.Appointment, error)
	InitiateCall(ctx context.Context, appointmentID, direction string) (appointment.Call, error)
	Stats() appointment.Stats
	Count() int
}

type RouterConfig struct {
	Clinics      *clinic.Registry
	Users        *user.Directory
	Appointments AppointmentService
	Tokens       *auth.Issuer
	Events       eventlog.Recorder
	Metrics      *metrics.Metrics
	Logger       *logging.Logger

	// MetricsHandler serves /metrics; omitted when nil.
	MetricsHandler http.Handler

	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string

	CORSAllowedOrigins []string
	LegacyErrorStatus  bool
	AdminAuthRequired  bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Events == nil {
		cfg.Events = eventlog.Nop{}
	}

	h := &handlers{
		clinics:      cfg.Clinics,
		users:        cfg.Users,
		appointments: cfg.Appointments,
		tokens:       cfg.Tokens,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		version:      cfg.Version,
		validate:     newValidator(),
		rs:           responder{legacyStatus: cfg.LegacyErrorStatus},
	}

	cors := DefaultCORSConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSAllowedOrigins
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cors))

	r.Get("/", h.root)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version).
		WithCounts(cfg.Clinics.Count, cfg.Users.Count, cfg.Appointments.Count)
	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/clinics", h.listClinics)
		r.Get("/clinics/search", h.searchClinics)
		r.Get("/clinics/{id}", h.getClinic)
		r.Get("/search", h.searchClinics)

		r.Post("/login", h.login)
		r.Get("/me", h.me)

		r.Get("/appointments", h.listAppointments)
		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments/{id}", h.getAppointment)

		r.Post("/calls/initiate", h.initiateCall)

		r.Route("/admin", func(r chi.Router) {
			if cfg.AdminAuthRequired {
				r.Use(AdminOnly(cfg.Tokens))
			}
			r.Get("/stats", h.adminStats)
			r.Post("/clinics", h.addClinic)
			r.Delete("/clinics/{id}", h.deleteClinic)
			r.Get("/appointments", h.adminAppointments)
		})
	})

	return r
}
