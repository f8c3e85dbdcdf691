package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

func TestPostgresInsertIfFreeMapsUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	appt := &Appointment{
		ID:         uuid.New(),
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		Date:       monday,
		Start:      600,
		Status:     StatusScheduled,
		Reason:     "checkup",
		CreatedAt:  fixedNow,
		UpdatedAt:  fixedNow,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(appt.ID, appt.PatientID, appt.ProviderID, appt.Date, appt.Start,
			string(appt.Status), appt.Reason, appt.Notes, appt.CreatedAt, appt.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_slot_key"})

	if err := store.InsertIfFree(context.Background(), appt); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable on unique violation, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresInsertIfFreeSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	appt := &Appointment{
		ID: uuid.New(), PatientID: uuid.New(), ProviderID: uuid.New(),
		Date: monday, Start: 600, Status: StatusScheduled, Reason: "checkup",
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(appt.ID, appt.PatientID, appt.ProviderID, appt.Date, appt.Start,
			string(appt.Status), appt.Reason, appt.Notes, appt.CreatedAt, appt.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.InsertIfFree(context.Background(), appt); err != nil {
		t.Fatalf("InsertIfFree: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRescheduleRollsBackOnConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := fixedNow
	orig := &Appointment{
		ID: uuid.New(), PatientID: uuid.New(), ProviderID: uuid.New(),
		Date: monday, Start: 600, Status: StatusCancelled,
		CancelledBy: "patient", CancelReason: "rescheduled", CancelledAt: &now,
		UpdatedAt: now,
	}
	repl := &Appointment{
		ID: uuid.New(), PatientID: orig.PatientID, ProviderID: orig.ProviderID,
		Date: monday, Start: 660, Status: StatusScheduled, Reason: "checkup",
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(orig.ID, string(orig.Status), orig.CancelledBy, orig.CancelReason,
			orig.CancelledAt, orig.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(repl.ID, repl.PatientID, repl.ProviderID, repl.Date, repl.Start,
			string(repl.Status), repl.Reason, repl.Notes, repl.CreatedAt, repl.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	if err := store.Reschedule(context.Background(), orig, repl); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRescheduleCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	now := fixedNow
	orig := &Appointment{
		ID: uuid.New(), Status: StatusCancelled, CancelledBy: "patient",
		CancelReason: "rescheduled", CancelledAt: &now, UpdatedAt: now,
	}
	repl := &Appointment{
		ID: uuid.New(), PatientID: uuid.New(), ProviderID: uuid.New(),
		Date: monday, Start: 660, Status: StatusScheduled, Reason: "checkup",
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE appointments").
		WithArgs(orig.ID, string(orig.Status), orig.CancelledBy, orig.CancelReason,
			orig.CancelledAt, orig.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(repl.ID, repl.PatientID, repl.ProviderID, repl.Date, repl.Start,
			string(repl.Status), repl.Reason, repl.Notes, repl.CreatedAt, repl.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	if err := store.Reschedule(context.Background(), orig, repl); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresWindowsForWeekday(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStore(mock)
	providerID := uuid.New()
	windowID := uuid.New()

	rows := pgxmock.NewRows([]string{
		"id", "provider_id", "weekday", "start_minute", "end_minute", "slot_minutes", "active",
	}).AddRow(windowID, providerID, 1, TimeOfDay(540), TimeOfDay(1020), 30, true)

	mock.ExpectQuery("SELECT (.+) FROM recurring_windows").
		WithArgs(providerID, 1).
		WillReturnRows(rows)

	windows, err := store.WindowsForWeekday(context.Background(), providerID, time.Monday)
	if err != nil {
		t.Fatalf("WindowsForWeekday: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].Weekday != time.Monday || windows[0].Start.String() != "09:00" {
		t.Fatalf("unexpected window: %+v", windows[0])
	}
}
