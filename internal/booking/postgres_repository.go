package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type bookingDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients and appointments in the relational
// database.
type PostgresRepository struct {
	db bookingDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db bookingDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	query := `
		SELECT user_id, name, age, phone_number, location
		FROM users
		WHERE phone_number = $1
	`
	var u User
	if err := r.db.QueryRow(ctx, query, phone).Scan(
		&u.ID,
		&u.Name,
		&u.Age,
		&u.Phone,
		&u.Location,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("booking: select user failed: %w", err)
	}
	return &u, nil
}

func (r *PostgresRepository) InsertUser(ctx context.Context, name, age, phone, location string) (*User, error) {
	query := `
		INSERT INTO users (name, age, phone_number, location)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone_number) DO UPDATE
		SET name = EXCLUDED.name, age = EXCLUDED.age, location = EXCLUDED.location
		RETURNING user_id
	`
	var id int64
	if err := r.db.QueryRow(ctx, query, name, age, phone, location).Scan(&id); err != nil {
		return nil, fmt.Errorf("booking: insert user failed: %w", err)
	}
	return &User{ID: id, Name: name, Age: age, Phone: phone, Location: location}, nil
}

func (r *PostgresRepository) RecordAppointment(ctx context.Context, userID, doctorID int64, date, slot string) (*Appointment, error) {
	return r.record(ctx, "appointments", userID, doctorID, date, slot)
}

func (r *PostgresRepository) RecordTeleappointment(ctx context.Context, userID, doctorID int64, date, slot string) (*Appointment, error) {
	return r.record(ctx, "teleappointments", userID, doctorID, date, slot)
}

func (r *PostgresRepository) record(ctx context.Context, table string, userID, doctorID int64, date, slot string) (*Appointment, error) {
	id := uuid.New()
	query := fmt.Sprintf(`
		INSERT INTO %s (appointment_id, user_id, doctor_id, date, time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, table)
	if _, err := r.db.Exec(ctx, query, id.String(), userID, doctorID, date, slot, StatusScheduled); err != nil {
		return nil, fmt.Errorf("booking: insert into %s failed: %w", table, err)
	}
	return &Appointment{
		ID:       id.String(),
		UserID:   userID,
		DoctorID: doctorID,
		Date:     date,
		Time:     slot,
		Status:   StatusScheduled,
	}, nil
}

func (r *PostgresRepository) BookedSlots(ctx context.Context, date string, doctorID int64) ([]string, error) {
	query := `
		SELECT to_char(start_time, 'HH24:MI')
		FROM calendar_appointments
		WHERE date = $1 AND doctor_id = $2
	`
	rows, err := r.db.Query(ctx, query, date, doctorID)
	if err != nil {
		return nil, fmt.Errorf("booking: select booked slots failed: %w", err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("booking: scan booked slot failed: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: read booked slots failed: %w", err)
	}
	return slots, nil
}
