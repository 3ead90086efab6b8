package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hackgods/dentalreserve/pkg/logging"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventCallInitiated      = "CALL_INITIATED"
	EventClinicAdded        = "CLINIC_ADDED"
	EventClinicDeleted      = "CLINIC_DELETED"
	EventUserLoggedIn       = "USER_LOGGED_IN"
)

type Event struct {
	Type      string          `json:"type"`
	SubjectID string          `json:"subject_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Recorder appends events to an audit sink.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Nop drops every event. Used when no sink is configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Multi fans an event out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit builds and records an event. Failures are logged and swallowed so that
// auditing never fails the operation that produced the event.
func Emit(ctx context.Context, rec Recorder, logger *logging.Logger, eventType, subjectID string, payload map[string]any) {
	if rec == nil {
		return
	}

	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			logger.Error(err, "failed to marshal event payload", "event_type", eventType)
			data = nil
		}
	}

	ev := Event{
		Type:      eventType,
		SubjectID: subjectID,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}

	if err := rec.Record(ctx, ev); err != nil {
		logger.Error(err, "failed to record event", "event_type", eventType, "subject_id", subjectID)
	}
}
