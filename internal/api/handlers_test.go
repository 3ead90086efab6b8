package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dentalreserve/internal/appointment"
	"github.com/hackgods/dentalreserve/internal/auth"
	"github.com/hackgods/dentalreserve/internal/clinic"
	"github.com/hackgods/dentalreserve/internal/eventlog"
	"github.com/hackgods/dentalreserve/internal/metrics"
	"github.com/hackgods/dentalreserve/internal/user"
	"github.com/hackgods/dentalreserve/pkg/logging"
)

type memorySink struct {
	mu     sync.Mutex
	events []eventlog.Event
}

func (m *memorySink) Record(_ context.Context, ev eventlog.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

func (m *memorySink) last() eventlog.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

type testServer struct {
	handler http.Handler
	clinics *clinic.Registry
	tokens  *auth.Issuer
	sink    *memorySink
}

func newTestServer(t *testing.T, mutate func(*RouterConfig)) *testServer {
	t.Helper()

	clinics := clinic.NewRegistry(clinic.SeedClinics())
	sink := &memorySink{}
	m := metrics.New(prometheus.NewRegistry())
	tokens := auth.NewIssuer("test-secret", time.Hour)

	svc := appointment.NewService(appointment.Deps{
		Clinics: clinics,
		Events:  sink,
		Metrics: m,
		Logger:  logging.Nop(),
	})

	cfg := RouterConfig{
		Clinics:      clinics,
		Users:        user.NewDirectory(user.DemoUsers()),
		Appointments: svc,
		Tokens:       tokens,
		Events:       sink,
		Metrics:      m,
		Logger:       logging.Nop(),
		Env:          "test",
		Version:      "1.0.0",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testServer{handler: NewRouter(cfg), clinics: clinics, tokens: tokens, sink: sink}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func validBooking() map[string]any {
	return map[string]any{
		"clinic_id":     "1",
		"date":          "2025-12-20",
		"time":          "10:00",
		"service":       "洗牙",
		"patient_name":  "张三",
		"patient_email": "patient@example.com",
		"patient_phone": "+1-416-555-0000",
	}
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "online", body["status"])

	rec, body = s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "dentalreserve", body["service"])
	assert.EqualValues(t, 4, body["clinics_count"])
	assert.EqualValues(t, 3, body["users_count"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadinessWithoutSinks(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, body["dependencies"])
}

func TestListAndGetClinics(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/clinics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["count"])
	assert.Len(t, body["clinics"], 4)

	rec, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/clinics/2", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	c := body["clinic"].(map[string]any)
	assert.Equal(t, "Vancouver Dental Care", c["name"])

	rec, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/clinics/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "clinic_not_found", body["code"])
	assert.Equal(t, "99", body["clinic_id"])
}

func TestSearchClinics(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/search", "/api/clinics/search"} {
		rec, body := s.do(t, httptest.NewRequest(http.MethodGet, path+"?city=toronto", nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.EqualValues(t, 1, body["count"], path)
		filters := body["filters"].(map[string]any)
		assert.Equal(t, "toronto", filters["city"])
		assert.Nil(t, filters["service"])
	}

	q := url.Values{"service": {"牙齿美白"}}
	_, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/search?"+q.Encode(), nil))
	assert.EqualValues(t, 2, body["count"])

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.EqualValues(t, 4, body["count"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("json with username", func(t *testing.T) {
		rec, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
			"username": "patient@example.com",
			"password": "Patient123!",
		}))
		require.Equal(t, http.StatusOK, rec.Code)
		u := body["user"].(map[string]any)
		assert.Equal(t, "patient", u["role"])
		assert.Equal(t, "张三", u["name"])

		claims, err := s.tokens.Parse(body["token"].(string))
		require.NoError(t, err)
		assert.Equal(t, "patient@example.com", claims.Email())
	})

	t.Run("query parameters", func(t *testing.T) {
		q := url.Values{"username": {"admin@dentalreserve.ca"}, "password": {"Admin123!"}}
		rec, body := s.do(t, httptest.NewRequest(http.MethodPost, "/api/login?"+q.Encode(), nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "admin", body["user"].(map[string]any)["role"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rec, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
			"email":    "patient@example.com",
			"password": "nope",
		}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "authentication_failed", body["code"])
	})

	t.Run("missing password", func(t *testing.T) {
		rec, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/login", map[string]string{
			"username": "patient@example.com",
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_failed", body["code"])
		assert.Contains(t, body["error"], "password is required")
	})

	assert.Contains(t, s.sink.types(), eventlog.EventUserLoggedIn)
}

func TestMe(t *testing.T) {
	s := newTestServer(t, nil)

	token, err := s.tokens.Issue(user.User{Email: "dr.smith@torontodental.com", Name: "Dr. Smith", Role: user.RoleDoctor})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, body := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doctor", body["user"].(map[string]any)["role"])

	rec, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["code"])

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec, body = s.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", body["code"])
}

func TestCreateAndReadAppointments(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/appointments", validBooking()))
	require.Equal(t, http.StatusCreated, rec.Code, body)
	appt := body["appointment"].(map[string]any)
	assert.Equal(t, "Toronto Downtown Dental", appt["clinic_name"])
	assert.Equal(t, "confirmed", appt["status"])
	assert.Nil(t, appt["notes"])
	assert.Equal(t, appt["virtual_phone"], body["virtual_phone"])
	id := appt["id"].(string)
	assert.True(t, strings.HasPrefix(id, "appt_"))

	other := validBooking()
	other["patient_email"] = "someone@example.com"
	other["clinic_id"] = "3"
	rec, _ = s.do(t, jsonRequest(t, http.MethodPost, "/api/appointments", other))
	require.Equal(t, http.StatusCreated, rec.Code)

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
	assert.EqualValues(t, 2, body["count"])

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/appointments?user_email=patient@example.com", nil))
	assert.EqualValues(t, 1, body["count"])
	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/appointments?patient_email=someone@example.com", nil))
	assert.EqualValues(t, 1, body["count"])

	rec, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/appointments/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["appointment"].(map[string]any)["id"])

	rec, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/appointments/appt_missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", body["code"])
}

func TestCreateAppointmentFromQueryParameters(t *testing.T) {
	s := newTestServer(t, nil)

	q := url.Values{}
	for k, v := range validBooking() {
		q.Set(k, v.(string))
	}
	q.Set("notes", "first visit")

	rec, body := s.do(t, httptest.NewRequest(http.MethodPost, "/api/appointments?"+q.Encode(), nil))
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.Equal(t, "first visit", body["appointment"].(map[string]any)["notes"])
}

func TestCreateAppointmentErrors(t *testing.T) {
	s := newTestServer(t, nil)

	unknown := validBooking()
	unknown["clinic_id"] = "42"
	rec, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/appointments", unknown))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "clinic_not_found", body["code"])

	missing := validBooking()
	delete(missing, "patient_phone")
	rec, body = s.do(t, jsonRequest(t, http.MethodPost, "/api/appointments", missing))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "patient_phone is required")

	req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec, body = s.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", body["code"])

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/appointments", nil))
	assert.EqualValues(t, 0, body["count"])
}

func TestLegacyErrorStatus(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.LegacyErrorStatus = true })

	rec, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/clinics/99", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "clinic not found", body["error"])
}

func TestInitiateCall(t *testing.T) {
	s := newTestServer(t, nil)

	_, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/appointments", validBooking()))
	appt := body["appointment"].(map[string]any)

	rec, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/calls/initiate", map[string]string{
		"appointment_id": appt["id"].(string),
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "patient_to_clinic", body["direction"])
	assert.Equal(t, "connecting", body["status"])
	assert.Equal(t, appt["virtual_phone"], body["virtual_phone"])
	assert.True(t, strings.HasPrefix(body["call_id"].(string), "call_"))

	q := url.Values{"appointment_id": {appt["id"].(string)}, "direction": {"clinic_to_patient"}}
	_, body = s.do(t, httptest.NewRequest(http.MethodPost, "/api/calls/initiate?"+q.Encode(), nil))
	assert.Equal(t, "clinic_to_patient", body["direction"])

	rec, body = s.do(t, jsonRequest(t, http.MethodPost, "/api/calls/initiate", map[string]string{
		"appointment_id": "appt_missing",
	}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", body["code"])

	assert.Equal(t, []string{
		eventlog.EventAppointmentCreated,
		eventlog.EventCallInitiated,
		eventlog.EventCallInitiated,
	}, s.sink.types())
}

func TestAdminClinicLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, jsonRequest(t, http.MethodPost, "/api/admin/clinics", map[string]any{
		"name":     "Ottawa Smile Studio",
		"address":  "1 Rideau Street, Ottawa, ON",
		"phone":    "+1-613-555-0101",
		"email":    "hello@ottawasmile.ca",
		"city":     "Ottawa",
		"services": "洗牙, 补牙 ,",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, body)
	c := body["clinic"].(map[string]any)
	assert.Equal(t, "5", c["id"])
	assert.Equal(t, []any{"洗牙", "补牙"}, c["services"])
	assert.Equal(t, clinic.DefaultHours, c["hours"])
	assert.Equal(t, 4.5, c["rating"])

	rec, body = s.do(t, jsonRequest(t, http.MethodPost, "/api/admin/clinics", map[string]any{
		"name":     "Halifax Harbour Dental",
		"address":  "2 Water Street, Halifax, NS",
		"phone":    "+1-902-555-0102",
		"email":    "desk@harbourdental.ca",
		"city":     "Halifax",
		"services": []string{"种植牙"},
		"rating":   4.9,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.Equal(t, 4.9, body["clinic"].(map[string]any)["rating"])

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 6, stats["total_clinics"])
	assert.EqualValues(t, 3, stats["total_users"])

	rec, body = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/admin/clinics/5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", body["clinic_id"])
	assert.Equal(t, 5, s.clinics.Count())

	rec, body = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/admin/clinics/5", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "clinic_not_found", body["code"])

	rec, body = s.do(t, jsonRequest(t, http.MethodPost, "/api/admin/clinics", map[string]any{"name": "Incomplete"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", body["code"])

	assert.Equal(t, []string{
		eventlog.EventClinicAdded,
		eventlog.EventClinicAdded,
		eventlog.EventClinicDeleted,
	}, s.sink.types())
}

func TestAdminStatsAndAppointments(t *testing.T) {
	s := newTestServer(t, nil)

	today := validBooking()
	today["date"] = time.Now().Format("2006-01-02")
	s.do(t, jsonRequest(t, http.MethodPost, "/api/appointments", today))
	s.do(t, jsonRequest(t, http.MethodPost, "/api/appointments", validBooking()))

	_, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	stats := body["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["total_appointments"])
	assert.EqualValues(t, 2, stats["confirmed_appointments"])
	assert.EqualValues(t, 0, stats["cancelled_appointments"])
	assert.EqualValues(t, 1, stats["today_appointments"])

	_, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/appointments", nil))
	assert.EqualValues(t, 2, body["count"])
}

func TestAdminAuthRequired(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.AdminAuthRequired = true })

	rec, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	patient, err := s.tokens.Issue(user.User{Email: "patient@example.com", Role: user.RolePatient})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+patient)
	rec, body := s.do(t, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", body["code"])

	admin, err := s.tokens.Issue(user.User{Email: "admin@dentalreserve.ca", Role: user.RoleAdmin})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec, _ = s.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/clinics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminClinicEventsCarryAdminEmail(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.AdminAuthRequired = true })
	token, err := s.tokens.Issue(user.User{Email: "admin@dentalreserve.ca", Role: user.RoleAdmin})
	require.NoError(t, err)

	req := jsonRequest(t, http.MethodPost, "/api/admin/clinics", map[string]any{
		"name":    "Ottawa Smile Studio",
		"address": "1 Rideau Street, Ottawa, ON",
		"phone":   "+1-613-555-0101",
		"email":   "hello@ottawasmile.ca",
		"city":    "Ottawa",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	rec, body := s.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, body)

	var added map[string]any
	ev := s.sink.last()
	require.Equal(t, eventlog.EventClinicAdded, ev.Type)
	require.NoError(t, json.Unmarshal(ev.Payload, &added))
	assert.Equal(t, "admin@dentalreserve.ca", added["admin"])
	assert.Equal(t, "Ottawa", added["city"])

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/clinics/5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, _ = s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var deleted map[string]any
	ev = s.sink.last()
	require.Equal(t, eventlog.EventClinicDeleted, ev.Type)
	require.NoError(t, json.Unmarshal(ev.Payload, &deleted))
	assert.Equal(t, "admin@dentalreserve.ca", deleted["admin"])
}

func TestAdminClinicEventsWithoutAuthOmitAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(t, httptest.NewRequest(http.MethodDelete, "/api/admin/clinics/4", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ev := s.sink.last()
	assert.Equal(t, eventlog.EventClinicDeleted, ev.Type)
	assert.Empty(t, ev.Payload)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.CORSAllowedOrigins = []string{"https://app.dentalreserve.ca"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/appointments", nil)
	req.Header.Set("Origin", "https://app.dentalreserve.ca")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.dentalreserve.ca", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/api/clinics", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.Metrics = m
		cfg.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	})

	s.do(t, httptest.NewRequest(http.MethodGet, "/api/clinics/1", nil))

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dentalreserve_http_requests_total{method="GET",route="/api/clinics/{id}",status="200"} 1`)
}

func TestRecovererTurnsPanicsInto500(t *testing.T) {
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.Appointments = panickingService{} })

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/appointments", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panickingService struct{ AppointmentService }

func (panickingService) List(string) []appointment.Appointment { panic("ledger exploded") }
func (panickingService) Count() int                            { return 0 }
