package appointment

import (
	"time"
)

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	// StatusCancelled is counted in stats but no operation sets it yet.
	StatusCancelled AppointmentStatus = "cancelled"
)

const (
	DirectionPatientToClinic = "patient_to_clinic"
	DirectionClinicToPatient = "clinic_to_patient"

	CallStatusConnecting = "connecting"
)

type Appointment struct {
	ID           string            `json:"id"`
	ClinicID     string            `json:"clinic_id"`
	ClinicName   string            `json:"clinic_name"`
	Date         string            `json:"date"`
	Time         string            `json:"time"`
	Service      string            `json:"service"`
	PatientName  string            `json:"patient_name"`
	PatientEmail string            `json:"patient_email"`
	PatientPhone string            `json:"patient_phone"`
	VirtualPhone string            `json:"virtual_phone"`
	Status       AppointmentStatus `json:"status"`
	Notes        *string           `json:"notes"`
	CreatedAt    time.Time         `json:"created_at"`
}

type BookingRequest struct {
	ClinicID     string
	Date         string
	Time         string
	Service      string
	PatientName  string
	PatientEmail string
	PatientPhone string
	Notes        *string
}

// Call is the outcome of a simulated call; no telephony is involved.
type Call struct {
	CallID        string `json:"call_id"`
	AppointmentID string `json:"appointment_id"`
	Direction     string `json:"direction"`
	VirtualPhone  string `json:"virtual_phone"`
	Status        string `json:"status"`
}

type Stats struct {
	Total     int `json:"total_appointments"`
	Confirmed int `json:"confirmed_appointments"`
	Cancelled int `json:"cancelled_appointments"`
	Today     int `json:"today_appointments"`
}
