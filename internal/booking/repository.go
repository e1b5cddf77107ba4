// Package booking persists patients and their scheduled appointments, and
// answers which slots a doctor already has taken on a given day.
package booking

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when no patient matches the phone number.
	ErrUserNotFound = errors.New("user not found")
)

// StatusScheduled is the status newly recorded appointments carry.
const StatusScheduled = "Scheduled"

// User is a registered patient.
type User struct {
	ID       int64
	Name     string
	Age      string
	Phone    string
	Location string
}

// Appointment is a scheduled visit, physical or remote.
type Appointment struct {
	ID       string
	UserID   int64
	DoctorID int64
	Date     string
	Time     string
	Status   string
}

// Repository defines the interface for patient and appointment storage.
type Repository interface {
	// FindUserByPhone returns the patient registered under the phone number.
	FindUserByPhone(ctx context.Context, phone string) (*User, error)
	// InsertUser registers a patient and returns the stored record.
	InsertUser(ctx context.Context, name, age, phone, location string) (*User, error)
	// RecordAppointment stores a physical appointment.
	RecordAppointment(ctx context.Context, userID, doctorID int64, date, slot string) (*Appointment, error)
	// RecordTeleappointment stores a remote (video) appointment.
	RecordTeleappointment(ctx context.Context, userID, doctorID int64, date, slot string) (*Appointment, error)
	// BookedSlots returns the 24-hour "HH:MM" start times already taken for
	// the doctor on the given date.
	BookedSlots(ctx context.Context, date string, doctorID int64) ([]string, error)
}

// InMemoryRepository is a Repository over process-local maps, used in local
// development and tests.
type InMemoryRepository struct {
	mu           sync.Mutex
	nextUserID   int64
	users        map[string]*User
	appointments []*Appointment
	booked       map[string][]string
}

// NewInMemoryRepository creates an empty in-memory booking store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:  make(map[string]*User),
		booked: make(map[string][]string),
	}
}

func (r *InMemoryRepository) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[phone]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *InMemoryRepository) InsertUser(ctx context.Context, name, age, phone, location string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[phone]; ok {
		copied := *existing
		return &copied, nil
	}
	r.nextUserID++
	u := &User{ID: r.nextUserID, Name: name, Age: age, Phone: phone, Location: location}
	r.users[phone] = u
	copied := *u
	return &copied, nil
}

func (r *InMemoryRepository) RecordAppointment(ctx context.Context, userID, doctorID int64, date, slot string) (*Appointment, error) {
	return r.record(userID, doctorID, date, slot)
}

func (r *InMemoryRepository) RecordTeleappointment(ctx context.Context, userID, doctorID int64, date, slot string) (*Appointment, error) {
	return r.record(userID, doctorID, date, slot)
}

func (r *InMemoryRepository) record(userID, doctorID int64, date, slot string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt := &Appointment{
		ID:       uuid.New().String(),
		UserID:   userID,
		DoctorID: doctorID,
		Date:     date,
		Time:     slot,
		Status:   StatusScheduled,
	}
	r.appointments = append(r.appointments, apt)
	copied := *apt
	return &copied, nil
}

func (r *InMemoryRepository) BookedSlots(ctx context.Context, date string, doctorID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.booked[bookedKey(date, doctorID)]...), nil
}

// MarkBooked seeds a taken calendar slot; test and demo hook.
func (r *InMemoryRepository) MarkBooked(date string, doctorID int64, slot string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := bookedKey(date, doctorID)
	r.booked[key] = append(r.booked[key], slot)
}

// Appointments returns a snapshot of everything recorded; test hook.
func (r *InMemoryRepository) Appointments() []*Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Appointment, 0, len(r.appointments))
	for _, apt := range r.appointments {
		copied := *apt
		out = append(out, &copied)
	}
	return out
}

func bookedKey(date string, doctorID int64) string {
	return date + "|" + strconv.FormatInt(doctorID, 10)
}
