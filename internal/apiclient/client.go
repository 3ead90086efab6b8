package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hackgods/dentalreserve/internal/appointment"
	"github.com/hackgods/dentalreserve/internal/clinic"
)

// StatusError is returned when the API answers with success=false or a
// non-2xx status.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is an API not-found answer.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || strings.HasSuffix(se.Code, "_not_found"))
}

// Client talks to a running dentalreserve API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// WithToken returns a copy that sends the bearer token on every request.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	} `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/login", map[string]string{
		"username": email,
		"password": password,
	}, &out)
	return out, err
}

func (c *Client) ListClinics(ctx context.Context) ([]clinic.Clinic, error) {
	var out struct {
		Clinics []clinic.Clinic `json:"clinics"`
	}
	err := c.do(ctx, http.MethodGet, "/api/clinics", nil, &out)
	return out.Clinics, err
}

func (c *Client) SearchClinics(ctx context.Context, city, service string) ([]clinic.Clinic, error) {
	q := url.Values{}
	if city != "" {
		q.Set("city", city)
	}
	if service != "" {
		q.Set("service", service)
	}

	var out struct {
		Results []clinic.Clinic `json:"results"`
	}
	err := c.do(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &out)
	return out.Results, err
}

type AddClinicInput struct {
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email"`
	City     string   `json:"city"`
	Services []string `json:"services"`
	Hours    string   `json:"hours,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
}

func (c *Client) AddClinic(ctx context.Context, in AddClinicInput) (clinic.Clinic, error) {
	var out struct {
		Clinic clinic.Clinic `json:"clinic"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/clinics", in, &out)
	return out.Clinic, err
}

type BookInput struct {
	ClinicID     string  `json:"clinic_id"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Service      string  `json:"service"`
	PatientName  string  `json:"patient_name"`
	PatientEmail string  `json:"patient_email"`
	PatientPhone string  `json:"patient_phone"`
	Notes        *string `json:"notes,omitempty"`
}

func (c *Client) Book(ctx context.Context, in BookInput) (appointment.Appointment, error) {
	var out struct {
		Appointment appointment.Appointment `json:"appointment"`
	}
	err := c.do(ctx, http.MethodPost, "/api/appointments", in, &out)
	return out.Appointment, err
}

func (c *Client) GetAppointment(ctx context.Context, id string) (appointment.Appointment, error) {
	var out struct {
		Appointment appointment.Appointment `json:"appointment"`
	}
	err := c.do(ctx, http.MethodGet, "/api/appointments/"+url.PathEscape(id), nil, &out)
	return out.Appointment, err
}

func (c *Client) ListAppointments(ctx context.Context, patientEmail string) ([]appointment.Appointment, error) {
	path := "/api/appointments"
	if patientEmail != "" {
		path += "?" + url.Values{"user_email": {patientEmail}}.Encode()
	}

	var out struct {
		Appointments []appointment.Appointment `json:"appointments"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Appointments, err
}

func (c *Client) InitiateCall(ctx context.Context, appointmentID, direction string) (appointment.Call, error) {
	var out appointment.Call
	err := c.do(ctx, http.MethodPost, "/api/calls/initiate", map[string]string{
		"appointment_id": appointmentID,
		"direction":      direction,
	}, &out)
	return out, err
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Code: "invalid_response", Message: err.Error()}
	}
	// Legacy mode answers errors with 200, so the body flag wins.
	if resp.StatusCode >= 300 || (env.Success != nil && !*env.Success) {
		return &StatusError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
