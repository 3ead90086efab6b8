package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hackgods/dentalreserve/internal/appointment"
	"github.com/hackgods/dentalreserve/internal/auth"
	"github.com/hackgods/dentalreserve/internal/clinic"
	"github.com/hackgods/dentalreserve/internal/eventlog"
	"github.com/hackgods/dentalreserve/internal/metrics"
	"github.com/hackgods/dentalreserve/internal/user"
	"github.com/hackgods/dentalreserve/pkg/logging"
)

var errMissingBearer = errors.New("missing bearer token")

type handlers struct {
	clinics      *clinic.Registry
	users        *user.Directory
	appointments AppointmentService
	tokens       *auth.Issuer
	events       eventlog.Recorder
	metrics      *metrics.Metrics
	logger       *logging.Logger
	version      string
	validate     *validator.Validate
	rs           responder
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	h.rs.ok(w, http.StatusOK, envelope{
		"message": "DentalReserve API is running",
		"service": serviceName,
		"status":  "online",
		"version": h.version,
		"endpoints": map[string]string{
			"health":       "/health",
			"clinics":      "/api/clinics",
			"search":       "/api/search",
			"appointments": "/api/appointments",
			"metrics":      "/metrics",
		},
	})
}

func (h *handlers) listClinics(w http.ResponseWriter, r *http.Request) {
	clinics := h.clinics.List()
	h.rs.ok(w, http.StatusOK, envelope{
		"count":     len(clinics),
		"clinics":   clinics,
		"timestamp": timestamp(),
	})
}

func (h *handlers) getClinic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.clinics.Get(id)
	if err != nil {
		h.handleClinicError(w, err, id)
		return
	}
	h.rs.ok(w, http.StatusOK, envelope{
		"clinic":    c,
		"timestamp": timestamp(),
	})
}

func (h *handlers) searchClinics(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	service := r.URL.Query().Get("service")

	results := h.clinics.Search(city, service)
	h.rs.ok(w, http.StatusOK, envelope{
		"count":   len(results),
		"results": results,
		"filters": map[string]any{
			"city":    nullable(city),
			"service": nullable(service),
		},
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req) {
		return
	}

	u, err := h.users.Verify(req.identity(), req.Password)
	if err != nil {
		h.metrics.ObserveLogin("failed")
		h.handleAuthError(w, err)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		h.metrics.ObserveLogin("error")
		h.logger.Error(err, "failed to issue token", "email", u.Email)
		h.rs.fail(w, http.StatusInternalServerError, "internal_error", "could not issue token", nil)
		return
	}

	h.metrics.ObserveLogin("success")
	eventlog.Emit(r.Context(), h.events, h.logger, eventlog.EventUserLoggedIn, u.Email, map[string]any{
		"role": u.Role,
	})

	h.rs.ok(w, http.StatusOK, envelope{
		"message":    "login successful",
		"user":       u,
		"token":      token,
		"token_type": "Bearer",
	})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r, h.tokens)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	u, err := h.users.Get(claims.Email())
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	body := envelope{"user": u}
	if claims.ExpiresAt != nil {
		body["expires_at"] = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	h.rs.ok(w, http.StatusOK, body)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("user_email")
	if email == "" {
		email = r.URL.Query().Get("patient_email")
	}

	appts := h.appointments.List(email)
	h.rs.ok(w, http.StatusOK, envelope{
		"count":        len(appts),
		"appointments": appts,
	})
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !h.bind(w, r, &req) {
		return
	}

	appt, err := h.appointments.Book(r.Context(), appointment.BookingRequest{
		ClinicID:     req.ClinicID,
		Date:         req.Date,
		Time:         req.Time,
		Service:      req.Service,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		Notes:        req.Notes,
	})
	if err != nil {
		h.handleCreateError(w, err, req.ClinicID)
		return
	}

	h.rs.ok(w, http.StatusCreated, envelope{
		"message":       "appointment booked",
		"appointment":   appt,
		"virtual_phone": appt.VirtualPhone,
	})
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appt, err := h.appointments.Get(id)
	if err != nil {
		h.handleAppointmentError(w, err, id)
		return
	}
	h.rs.ok(w, http.StatusOK, envelope{"appointment": appt})
}

func (h *handlers) initiateCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if !h.bind(w, r, &req) {
		return
	}

	call, err := h.appointments.InitiateCall(r.Context(), req.AppointmentID, req.Direction)
	if err != nil {
		h.handleAppointmentError(w, err, req.AppointmentID)
		return
	}

	h.rs.ok(w, http.StatusOK, envelope{
		"message":        "call initiated",
		"appointment_id": call.AppointmentID,
		"direction":      call.Direction,
		"virtual_phone":  call.VirtualPhone,
		"call_id":        call.CallID,
		"status":         call.Status,
	})
}

func (h *handlers) adminStats(w http.ResponseWriter, r *http.Request) {
	s := h.appointments.Stats()
	h.rs.ok(w, http.StatusOK, envelope{
		"stats": map[string]int{
			"total_clinics":          h.clinics.Count(),
			"total_users":            h.users.Count(),
			"total_appointments":     s.Total,
			"confirmed_appointments": s.Confirmed,
			"cancelled_appointments": s.Cancelled,
			"today_appointments":     s.Today,
		},
	})
}

func (h *handlers) addClinic(w http.ResponseWriter, r *http.Request) {
	var req addClinicRequest
	if !h.bind(w, r, &req) {
		h.metrics.ObserveClinicAdmin("add", "invalid")
		return
	}

	c := h.clinics.Add(req.toNewClinic())
	h.metrics.ObserveClinicAdmin("add", "success")
	payload := map[string]any{
		"name": c.Name,
		"city": c.City,
	}
	if admin := adminEmail(r); admin != "" {
		payload["admin"] = admin
	}
	h.logger.Info("clinic added", "clinic_id", c.ID, "name", c.Name, "admin", adminEmail(r))
	eventlog.Emit(r.Context(), h.events, h.logger, eventlog.EventClinicAdded, c.ID, payload)

	h.rs.ok(w, http.StatusCreated, envelope{
		"message": "clinic added",
		"clinic":  c,
	})
}

func (h *handlers) deleteClinic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.clinics.Delete(id) {
		h.metrics.ObserveClinicAdmin("delete", "not_found")
		h.handleClinicError(w, clinic.ErrClinicNotFound, id)
		return
	}

	h.metrics.ObserveClinicAdmin("delete", "success")
	var payload map[string]any
	if admin := adminEmail(r); admin != "" {
		payload = map[string]any{"admin": admin}
	}
	h.logger.Info("clinic deleted", "clinic_id", id, "admin", adminEmail(r))
	eventlog.Emit(r.Context(), h.events, h.logger, eventlog.EventClinicDeleted, id, payload)

	h.rs.ok(w, http.StatusOK, envelope{
		"message":   "clinic deleted",
		"clinic_id": id,
	})
}

func (h *handlers) adminAppointments(w http.ResponseWriter, r *http.Request) {
	appts := h.appointments.List("")
	h.rs.ok(w, http.StatusOK, envelope{
		"count":        len(appts),
		"appointments": appts,
	})
}

// adminEmail is empty unless AdminOnly authenticated the request.
func adminEmail(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.Email()
	}
	return ""
}

// bind decodes and validates the request input, answering 400 on failure.
func (h *handlers) bind(w http.ResponseWriter, r *http.Request, dst formBinder) bool {
	if err := decodeInput(r, dst); err != nil {
		h.rs.fail(w, http.StatusBadRequest, "invalid_request_body", err.Error(), nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.rs.fail(w, http.StatusBadRequest, "validation_failed", validationMessage(err), nil)
		return false
	}
	return true
}

func (h *handlers) handleClinicError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, clinic.ErrClinicNotFound):
		h.rs.fail(w, http.StatusNotFound, "clinic_not_found", err.Error(), envelope{"clinic_id": id})
	default:
		h.internalError(w, err)
	}
}

func (h *handlers) handleCreateError(w http.ResponseWriter, err error, clinicID string) {
	switch {
	case errors.Is(err, clinic.ErrClinicNotFound):
		h.rs.fail(w, http.StatusNotFound, "clinic_not_found", err.Error(), envelope{"clinic_id": clinicID})
	default:
		h.internalError(w, err)
	}
}

func (h *handlers) handleAppointmentError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		h.rs.fail(w, http.StatusNotFound, "appointment_not_found", err.Error(), envelope{"appointment_id": id})
	default:
		h.internalError(w, err)
	}
}

func (h *handlers) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrAuthenticationFailed):
		h.rs.fail(w, http.StatusUnauthorized, "authentication_failed", "invalid username or password", nil)
	case errors.Is(err, errMissingBearer):
		h.rs.fail(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, user.ErrUserNotFound):
		h.rs.fail(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token", nil)
	default:
		h.internalError(w, err)
	}
}

func (h *handlers) internalError(w http.ResponseWriter, err error) {
	h.logger.Error(err, "request failed")
	h.rs.fail(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
}

func nullable(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
