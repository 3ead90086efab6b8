package clinic

import (
	"errors"
	"strings"
)

var ErrClinicNotFound = errors.New("clinic not found")

const (
	DefaultHours  = "周一至周五: 9:00 AM - 6:00 PM"
	DefaultRating = 4.5
)

type Clinic struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email"`
	Rating   float64  `json:"rating"`
	Services []string `json:"services"`
	Hours    string   `json:"hours"`
	City     string   `json:"city"`
}

// NewClinic carries the admin supplied fields for Registry.Add.
// Zero Hours and nil Rating fall back to the defaults.
type NewClinic struct {
	Name     string
	Address  string
	Phone    string
	Email    string
	City     string
	Services []string
	Hours    string
	Rating   *float64
}

// OffersService reports whether any offered service contains query, ignoring case.
func (c Clinic) OffersService(query string) bool {
	query = strings.ToLower(query)
	for _, s := range c.Services {
		if strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}

func (c Clinic) clone() Clinic {
	c.Services = append(make([]string, 0, len(c.Services)), c.Services...)
	return c
}

// ParseServices splits a comma separated service list.
func ParseServices(raw string) []string {
	parts := strings.Split(raw, ",")
	services := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			services = append(services, p)
		}
	}
	return services
}
