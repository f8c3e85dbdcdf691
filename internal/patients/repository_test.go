package patients

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

func TestRegisterDuplicatePhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectExec("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), "Maya", "Singh", "maya@example.test", "+15550100",
			pgxmock.AnyArg(), "", "", "", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "patients_phone_key"})

	_, err = repo.Register(context.Background(), &RegisterRequest{
		FirstName: "Maya", LastName: "Singh",
		Email: "maya@example.test", Phone: "+15550100",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing name", RegisterRequest{Email: "a@b.test", Phone: "+15550100"}},
		{"missing phone", RegisterRequest{FirstName: "Maya", LastName: "Singh", Email: "a@b.test"}},
		{"bad email", RegisterRequest{FirstName: "Maya", LastName: "Singh", Email: "nope", Phone: "+15550100"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := repo.Register(context.Background(), &tc.req); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestRegisterNormalizesFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectExec("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), "Maya", "Singh", "maya@example.test", "+15550100",
			pgxmock.AnyArg(), "", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p, err := repo.Register(context.Background(), &RegisterRequest{
		FirstName: " Maya ", LastName: "Singh",
		Email: " MAYA@Example.Test ", Phone: " +15550100 ",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.Email != "maya@example.test" || p.Phone != "+15550100" {
		t.Fatalf("fields not normalized: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
