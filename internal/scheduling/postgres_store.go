package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists schedules and appointments in the relational store.
// The (provider, date, start) uniqueness guarantee lives in a partial unique
// index (appointments_slot_key); this store translates the violation into
// ErrSlotUnavailable.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) WindowsForWeekday(ctx context.Context, providerID uuid.UUID, weekday time.Weekday) ([]RecurringWindow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, provider_id, weekday, start_minute, end_minute, slot_minutes, active
		FROM recurring_windows
		WHERE provider_id = $1 AND weekday = $2 AND active
		ORDER BY start_minute, end_minute
	`, providerID, int(weekday))
	if err != nil {
		return nil, fmt.Errorf("scheduling: load windows: %w", err)
	}
	defer rows.Close()

	var out []RecurringWindow
	for rows.Next() {
		var w RecurringWindow
		var wd int
		if err := rows.Scan(&w.ID, &w.ProviderID, &wd, &w.Start, &w.End, &w.SlotMinutes, &w.Active); err != nil {
			return nil, fmt.Errorf("scheduling: scan window: %w", err)
		}
		w.Weekday = time.Weekday(wd)
		out = append(out, w)
	}
	return out, rows.Err()
}

const appointmentColumns = `id, patient_id, provider_id, date, start_minute, status,
	reason, notes, cancelled_by, cancel_reason, cancelled_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(
		&a.ID, &a.PatientID, &a.ProviderID, &a.Date, &a.Start, &status,
		&a.Reason, &a.Notes, &a.CancelledBy, &a.CancelReason, &a.CancelledAt,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.Date = DateOnly(a.Date)
	return &a, nil
}

func (s *PostgresStore) AppointmentsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND date = $2 AND status <> 'cancelled'
		ORDER BY start_minute
	`, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("scheduling: load appointments: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

const insertAppointmentSQL = `
	INSERT INTO appointments (id, patient_id, provider_id, date, start_minute,
		status, reason, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (s *PostgresStore) InsertIfFree(ctx context.Context, appt *Appointment) error {
	_, err := s.db.Exec(ctx, insertAppointmentSQL,
		appt.ID, appt.PatientID, appt.ProviderID, appt.Date, appt.Start,
		string(appt.Status), appt.Reason, appt.Notes, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		if isSlotConflict(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("scheduling: insert appointment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scheduling: load appointment: %w", err)
	}
	return a, nil
}

const updateStatusSQL = `
	UPDATE appointments
	SET status = $2, cancelled_by = $3, cancel_reason = $4, cancelled_at = $5, updated_at = $6
	WHERE id = $1
`

func (s *PostgresStore) UpdateStatus(ctx context.Context, appt *Appointment) error {
	tag, err := s.db.Exec(ctx, updateStatusSQL,
		appt.ID, string(appt.Status), appt.CancelledBy, appt.CancelReason,
		appt.CancelledAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("scheduling: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reschedule cancels orig and inserts repl in one transaction so the pair is
// atomic: a conflict on the new slot rolls the cancellation back.
func (s *PostgresStore) Reschedule(ctx context.Context, orig *Appointment, repl *Appointment) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("scheduling: begin reschedule: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, updateStatusSQL,
		orig.ID, string(orig.Status), orig.CancelledBy, orig.CancelReason,
		orig.CancelledAt, orig.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("scheduling: reschedule cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, insertAppointmentSQL,
		repl.ID, repl.PatientID, repl.ProviderID, repl.Date, repl.Start,
		string(repl.Status), repl.Reason, repl.Notes, repl.CreatedAt, repl.UpdatedAt,
	); err != nil {
		if isSlotConflict(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("scheduling: reschedule insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("scheduling: commit reschedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListForPatient(ctx context.Context, patientID uuid.UUID, includePast bool, today time.Time) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_minute DESC
	`
	args := []any{patientID}
	if !includePast {
		query = `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1 AND date >= $2 AND status IN ('scheduled', 'confirmed')
		ORDER BY date, start_minute
	`
		args = append(args, today)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduling: list for patient: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendChange(ctx context.Context, rec ChangeRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointment_changes (appointment_id, kind, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.AppointmentID, rec.Kind, rec.Actor, rec.Detail, rec.At)
	if err != nil {
		return fmt.Errorf("scheduling: append change: %w", err)
	}
	return nil
}
