package appointment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/dentalreserve/internal/clinic"
	"github.com/hackgods/dentalreserve/internal/eventlog"
	"github.com/hackgods/dentalreserve/internal/metrics"
	"github.com/hackgods/dentalreserve/pkg/logging"
)

const dateLayout = "2006-01-02"

var tracer = otel.Tracer("github.com/hackgods/dentalreserve/internal/appointment")

// ClinicLookup resolves clinics at booking time.
type ClinicLookup interface {
	Get(id string) (clinic.Clinic, error)
}

type Deps struct {
	Clinics ClinicLookup
	Ledger  *Ledger
	Phones  *PhoneAllocator
	Events  eventlog.Recorder
	Metrics *metrics.Metrics
	Logger  *logging.Logger
	Now     func() time.Time
}

type Service struct {
	clinics ClinicLookup
	ledger  *Ledger
	phones  *PhoneAllocator
	events  eventlog.Recorder
	metrics *metrics.Metrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		clinics: d.Clinics,
		ledger:  d.Ledger,
		phones:  d.Phones,
		events:  d.Events,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     d.Now,
	}
	if s.ledger == nil {
		s.ledger = NewLedger()
	}
	if s.phones == nil {
		s.phones = NewPhoneAllocator(rand.NewSource(time.Now().UnixNano()))
	}
	if s.events == nil {
		s.events = eventlog.Nop{}
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Book resolves the clinic, allocates a virtual number and appends a
// confirmed appointment. The ledger is untouched when the clinic is unknown.
func (s *Service) Book(ctx context.Context, req BookingRequest) (Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Book",
		trace.WithAttributes(attribute.String("clinic.id", req.ClinicID)))
	defer span.End()

	c, err := s.clinics.Get(req.ClinicID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, clinic.ErrClinicNotFound) {
			s.metrics.ObserveBooking("clinic_not_found")
			return Appointment{}, err
		}
		s.metrics.ObserveBooking("error")
		return Appointment{}, fmt.Errorf("resolve clinic %s: %w", req.ClinicID, err)
	}

	appt := Appointment{
		ID:           "appt_" + uuid.NewString(),
		ClinicID:     c.ID,
		ClinicName:   c.Name,
		Date:         req.Date,
		Time:         req.Time,
		Service:      req.Service,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		VirtualPhone: s.phones.Allocate(s.ledger.PhoneInUse),
		Status:       StatusConfirmed,
		Notes:        req.Notes,
		CreatedAt:    s.now().UTC(),
	}
	s.ledger.Append(appt)

	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	s.metrics.ObserveBooking("confirmed")
	s.metrics.SetLedgerSize(s.ledger.Len())
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"clinic_id", appt.ClinicID,
		"date", appt.Date,
		"time", appt.Time,
	)

	eventlog.Emit(ctx, s.events, s.logger, eventlog.EventAppointmentCreated, appt.ID, map[string]any{
		"clinic_id":     appt.ClinicID,
		"date":          appt.Date,
		"time":          appt.Time,
		"service":       appt.Service,
		"patient_email": appt.PatientEmail,
		"virtual_phone": appt.VirtualPhone,
	})

	return appt, nil
}

// List returns every appointment, or only the patient's when patientEmail is set.
func (s *Service) List(patientEmail string) []Appointment {
	return s.ledger.List(patientEmail)
}

func (s *Service) Get(id string) (Appointment, error) {
	return s.ledger.Get(id)
}

func (s *Service) Count() int {
	return s.ledger.Len()
}

// Stats counts the ledger, using the service clock to decide what "today" is.
func (s *Service) Stats() Stats {
	return s.ledger.Stats(s.now().Format(dateLayout))
}

// InitiateCall simulates connecting patient and clinic through the
// appointment's virtual number. An empty direction means patient_to_clinic.
func (s *Service) InitiateCall(ctx context.Context, appointmentID, direction string) (Call, error) {
	ctx, span := tracer.Start(ctx, "appointment.InitiateCall")
	defer span.End()

	if direction == "" {
		direction = DirectionPatientToClinic
	}
	span.SetAttributes(
		attribute.String("appointment.id", appointmentID),
		attribute.String("call.direction", direction),
	)

	appt, err := s.ledger.Get(appointmentID)
	if err != nil {
		s.metrics.ObserveCall(direction, "appointment_not_found")
		span.SetStatus(codes.Error, err.Error())
		return Call{}, err
	}

	call := Call{
		CallID:        "call_" + uuid.NewString(),
		AppointmentID: appt.ID,
		Direction:     direction,
		VirtualPhone:  appt.VirtualPhone,
		Status:        CallStatusConnecting,
	}

	s.metrics.ObserveCall(direction, "connecting")
	s.logger.Info("call initiated",
		"call_id", call.CallID,
		"appointment_id", appt.ID,
		"direction", direction,
	)

	eventlog.Emit(ctx, s.events, s.logger, eventlog.EventCallInitiated, appt.ID, map[string]any{
		"call_id":       call.CallID,
		"direction":     direction,
		"virtual_phone": call.VirtualPhone,
	})

	return call, nil
}
