package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type directoryDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads the doctor directory from the relational database.
type PostgresRepository struct {
	db directoryDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting a mock database for testing.
func NewPostgresRepositoryWithDB(db directoryDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Types(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT type FROM doctors ORDER BY doctor_id`)
	if err != nil {
		return nil, fmt.Errorf("directory: select types failed: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("directory: scan type failed: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: read types failed: %w", err)
	}
	return dedupTrimmed(types), nil
}

func (r *PostgresRepository) NamesByTypeLocation(ctx context.Context, specialistType, location string) ([]string, error) {
	query := `
		SELECT name FROM doctors
		WHERE TRIM(type) = $1 AND location = $2
		ORDER BY doctor_id
	`
	rows, err := r.db.Query(ctx, query, specialistType, location)
	if err != nil {
		return nil, fmt.Errorf("directory: select names failed: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("directory: scan name failed: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: read names failed: %w", err)
	}
	return names, nil
}

func (r *PostgresRepository) Details(ctx context.Context, name string) (*Details, error) {
	query := `
		SELECT name, contact_info, location, email, address
		FROM doctors
		WHERE name = $1
	`
	var d Details
	if err := r.db.QueryRow(ctx, query, name).Scan(
		&d.Name,
		&d.Contact,
		&d.Location,
		&d.Email,
		&d.Address,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("directory: select details failed: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) IDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx, `SELECT doctor_id FROM doctors WHERE name = $1`, name).Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrDoctorNotFound
		}
		return 0, fmt.Errorf("directory: select id failed: %w", err)
	}
	return id, nil
}
