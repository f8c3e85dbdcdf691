package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careline-ai/careline/internal/scheduling"
)

// ErrNotFound is returned when a provider id matches no row.
var ErrNotFound = errors.New("providers: not found")

// Repository is the provider directory storage interface.
type Repository interface {
	Search(ctx context.Context, filter SearchFilter) ([]Provider, error)
	Get(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*Details, error)
	Specialties(ctx context.Context) ([]string, error)
}

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository on top of Postgres.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a provider repository backed by a pgx pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("providers: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const providerColumns = `id, full_name, specialty, email, phone, fee_cents, rating, available, created_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	if err := row.Scan(
		&p.ID, &p.FullName, &p.Specialty, &p.Email, &p.Phone,
		&p.FeeCents, &p.Rating, &p.Available, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Search(ctx context.Context, filter SearchFilter) ([]Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers`
	var clauses []string
	var args []any
	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		clauses = append(clauses, fmt.Sprintf("lower(specialty) = lower($%d)", len(args)))
	}
	if filter.AvailableOnly {
		clauses = append(clauses, "available")
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY rating DESC, full_name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("providers: search: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("providers: scan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.db.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)
	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("providers: get: %w", err)
	}
	return p, nil
}

// GetDetails loads a provider together with their recurring weekly windows,
// ordered by weekday then start time.
func (r *PostgresRepository) GetDetails(ctx context.Context, id uuid.UUID) (*Details, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT weekday, start_minute, end_minute, slot_minutes
		FROM recurring_windows
		WHERE provider_id = $1 AND active
		ORDER BY weekday, start_minute
	`, id)
	if err != nil {
		return nil, fmt.Errorf("providers: load schedule: %w", err)
	}
	defer rows.Close()

	details := &Details{Provider: *p}
	for rows.Next() {
		var w scheduling.RecurringWindow
		var wd int
		if err := rows.Scan(&wd, &w.Start, &w.End, &w.SlotMinutes); err != nil {
			return nil, fmt.Errorf("providers: scan schedule: %w", err)
		}
		w.Weekday = time.Weekday(wd)
		details.Schedule = append(details.Schedule, scheduleEntry(w))
	}
	return details, rows.Err()
}

func (r *PostgresRepository) Specialties(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT specialty FROM providers WHERE available ORDER BY specialty
	`)
	if err != nil {
		return nil, fmt.Errorf("providers: specialties: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("providers: scan specialty: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
