package clinic

import (
	"strconv"
	"strings"
	"sync"
)

// Registry holds the clinic collection in insertion order.
type Registry struct {
	mu      sync.RWMutex
	clinics []Clinic
}

func NewRegistry(seed []Clinic) *Registry {
	r := &Registry{clinics: make([]Clinic, 0, len(seed))}
	for _, c := range seed {
		r.clinics = append(r.clinics, c.clone())
	}
	return r
}

func (r *Registry) List() []Clinic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Clinic, 0, len(r.clinics))
	for _, c := range r.clinics {
		out = append(out, c.clone())
	}
	return out
}

func (r *Registry) Get(id string) (Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.clinics[i].clone(), nil
	}
	return Clinic{}, ErrClinicNotFound
}

// Search filters by address substring (city) and offered service substring,
// both case-insensitive. Empty filters match everything.
func (r *Registry) Search(city, service string) []Clinic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	city = strings.ToLower(strings.TrimSpace(city))
	service = strings.TrimSpace(service)

	out := make([]Clinic, 0)
	for _, c := range r.clinics {
		if city != "" && !strings.Contains(strings.ToLower(c.Address), city) {
			continue
		}
		if service != "" && !c.OffersService(service) {
			continue
		}
		out = append(out, c.clone())
	}
	return out
}

// Add appends a clinic whose id is count+1. When a delete left that id in use,
// the next free number is taken instead.
func (r *Registry) Add(in NewClinic) Clinic {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.clinics) + 1
	for r.indexOf(strconv.Itoa(n)) >= 0 {
		n++
	}

	c := Clinic{
		ID:       strconv.Itoa(n),
		Name:     in.Name,
		Address:  in.Address,
		Phone:    in.Phone,
		Email:    in.Email,
		Rating:   DefaultRating,
		Services: append([]string(nil), in.Services...),
		Hours:    in.Hours,
		City:     in.City,
	}
	if c.Services == nil {
		c.Services = []string{}
	}
	if c.Hours == "" {
		c.Hours = DefaultHours
	}
	if in.Rating != nil {
		c.Rating = *in.Rating
	}

	r.clinics = append(r.clinics, c)
	return c.clone()
}

// Delete removes the clinic with id and reports whether the collection shrank.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.clinics)
	kept := r.clinics[:0]
	for _, c := range r.clinics {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	r.clinics = kept
	return len(r.clinics) < before
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clinics)
}

// indexOf expects r.mu to be held.
func (r *Registry) indexOf(id string) int {
	for i, c := range r.clinics {
		if c.ID == id {
			return i
		}
	}
	return -1
}
