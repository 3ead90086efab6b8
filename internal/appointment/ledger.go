package appointment

import (
	"errors"
	"sync"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Ledger is the append-only, insertion ordered appointment store.
type Ledger struct {
	mu           sync.RWMutex
	appointments []Appointment
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(a Appointment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appointments = append(l.appointments, a)
}

// List returns every appointment, or only those whose patient email equals
// patientEmail when it is non-empty.
func (l *Ledger) List(patientEmail string) []Appointment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Appointment, 0, len(l.appointments))
	for _, a := range l.appointments {
		if patientEmail != "" && a.PatientEmail != patientEmail {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (l *Ledger) Get(id string) (Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, a := range l.appointments {
		if a.ID == id {
			return a, nil
		}
	}
	return Appointment{}, ErrAppointmentNotFound
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.appointments)
}

// PhoneInUse reports whether a virtual number was already handed out.
func (l *Ledger) PhoneInUse(number string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, a := range l.appointments {
		if a.VirtualPhone == number {
			return true
		}
	}
	return false
}

// Stats counts appointments by status and those dated today (YYYY-MM-DD).
func (l *Ledger) Stats(today string) Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Total: len(l.appointments)}
	for _, a := range l.appointments {
		switch a.Status {
		case StatusConfirmed:
			s.Confirmed++
		case StatusCancelled:
			s.Cancelled++
		}
		if a.Date == today {
			s.Today++
		}
	}
	return s
}
