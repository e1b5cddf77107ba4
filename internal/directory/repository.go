// Package directory exposes the doctor directory the dialog browses:
// specialist types, doctors by type and town, and per-doctor contact details.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrDoctorNotFound is returned when no doctor matches the given name.
	ErrDoctorNotFound = errors.New("doctor not found")
)

// Doctor is one directory entry.
type Doctor struct {
	ID       int64
	Name     string
	Type     string
	Location string
	Contact  string
	Email    string
	Address  string
}

// Details is the caller-facing contact card for a doctor.
type Details struct {
	Name     string
	Contact  string
	Location string
	Email    string
	Address  string
}

// Repository defines the interface for directory reads.
type Repository interface {
	// Types returns the distinct specialist types, trimmed and deduplicated
	// in first-appearance order.
	Types(ctx context.Context) ([]string, error)
	// NamesByTypeLocation returns the names of doctors of the given type
	// practicing in the given town. An empty result is not an error.
	NamesByTypeLocation(ctx context.Context, specialistType, location string) ([]string, error)
	// Details returns the contact card for a doctor by name.
	Details(ctx context.Context, name string) (*Details, error)
	// IDByName resolves a doctor name to its id.
	IDByName(ctx context.Context, name string) (int64, error)
}

// dedupTrimmed collapses duplicate type strings, trimming whitespace first so
// "Dentist" and "Dentist " count as one entry.
func dedupTrimmed(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// InMemoryRepository is a Repository over a fixed doctor list, used in local
// development and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	doctors []Doctor
}

// NewInMemoryRepository creates an in-memory directory over the given doctors.
func NewInMemoryRepository(doctors []Doctor) *InMemoryRepository {
	return &InMemoryRepository{doctors: doctors}
}

func (r *InMemoryRepository) Types(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.doctors))
	for _, d := range r.doctors {
		types = append(types, d.Type)
	}
	return dedupTrimmed(types), nil
}

func (r *InMemoryRepository) NamesByTypeLocation(ctx context.Context, specialistType, location string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, d := range r.doctors {
		if strings.TrimSpace(d.Type) == specialistType && d.Location == location {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

func (r *InMemoryRepository) Details(ctx context.Context, name string) (*Details, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.doctors {
		if d.Name == name {
			return &Details{
				Name:     d.Name,
				Contact:  d.Contact,
				Location: d.Location,
				Email:    d.Email,
				Address:  d.Address,
			}, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *InMemoryRepository) IDByName(ctx context.Context, name string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.doctors {
		if d.Name == name {
			return d.ID, nil
		}
	}
	return 0, ErrDoctorNotFound
}
