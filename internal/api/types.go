package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/dentalreserve/internal/clinic"
)

var errInvalidBody = errors.New("invalid request body")

type loginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// identity accepts either field; the original form posted "username".
func (r loginRequest) identity() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

func (r *loginRequest) bindForm(v url.Values) error {
	r.Username = v.Get("username")
	r.Email = v.Get("email")
	r.Password = v.Get("password")
	return nil
}

type bookingRequest struct {
	ClinicID     string  `json:"clinic_id" validate:"required"`
	Date         string  `json:"date" validate:"required"`
	Time         string  `json:"time" validate:"required"`
	Service      string  `json:"service" validate:"required"`
	PatientName  string  `json:"patient_name" validate:"required"`
	PatientEmail string  `json:"patient_email" validate:"required"`
	PatientPhone string  `json:"patient_phone" validate:"required"`
	Notes        *string `json:"notes"`
}

func (r *bookingRequest) bindForm(v url.Values) error {
	r.ClinicID = v.Get("clinic_id")
	r.Date = v.Get("date")
	r.Time = v.Get("time")
	r.Service = v.Get("service")
	r.PatientName = v.Get("patient_name")
	r.PatientEmail = v.Get("patient_email")
	r.PatientPhone = v.Get("patient_phone")
	if v.Has("notes") {
		notes := v.Get("notes")
		r.Notes = &notes
	}
	return nil
}

type callRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	Direction     string `json:"direction"`
}

func (r *callRequest) bindForm(v url.Values) error {
	r.AppointmentID = v.Get("appointment_id")
	r.Direction = v.Get("direction")
	return nil
}

// serviceList decodes either a JSON array or a comma separated string.
type serviceList []string

func (s *serviceList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*s = out
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("services must be a list or a comma separated string")
	}
	*s = clinic.ParseServices(raw)
	return nil
}

type addClinicRequest struct {
	Name     string      `json:"name" validate:"required"`
	Address  string      `json:"address" validate:"required"`
	Phone    string      `json:"phone" validate:"required"`
	Email    string      `json:"email" validate:"required"`
	City     string      `json:"city" validate:"required"`
	Services serviceList `json:"services" validate:"required,min=1"`
	Hours    string      `json:"hours"`
	Rating   *float64    `json:"rating" validate:"omitempty,gte=0,lte=5"`
}

func (r *addClinicRequest) bindForm(v url.Values) error {
	r.Name = v.Get("name")
	r.Address = v.Get("address")
	r.Phone = v.Get("phone")
	r.Email = v.Get("email")
	r.City = v.Get("city")
	if raw := v.Get("services"); raw != "" {
		r.Services = clinic.ParseServices(raw)
	}
	r.Hours = v.Get("hours")
	if raw := v.Get("rating"); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("rating must be a number")
		}
		r.Rating = &rating
	}
	return nil
}

func (r addClinicRequest) toNewClinic() clinic.NewClinic {
	return clinic.NewClinic{
		Name:     r.Name,
		Address:  r.Address,
		Phone:    r.Phone,
		Email:    r.Email,
		City:     r.City,
		Services: []string(r.Services),
		Hours:    r.Hours,
		Rating:   r.Rating,
	}
}

type formBinder interface {
	bindForm(url.Values) error
}

// decodeInput fills dst from a JSON body when the request declares one,
// otherwise from query and form parameters.
func decodeInput(r *http.Request, dst formBinder) error {
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := dst.bindForm(r.Form); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_without":
			parts = append(parts, fe.Field()+" is required")
		case "min":
			parts = append(parts, fe.Field()+" must not be empty")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
