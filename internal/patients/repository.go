// Package patients manages patient registration and lookup. Phone and email
// are unique; the conversation flow keys patients by phone number.
package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no patient matches the lookup.
	ErrNotFound = errors.New("patients: not found")
	// ErrDuplicate is returned when registration collides with an existing
	// phone or email.
	ErrDuplicate = errors.New("patients: phone or email already registered")
	// ErrInvalid is returned for registrations missing required fields.
	ErrInvalid = errors.New("patients: invalid registration")
)

// Patient is a registered patient record.
type Patient struct {
	ID          uuid.UUID  `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	BloodGroup  string     `json:"blood_group,omitempty"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RegisterRequest carries the fields for a new patient record.
type RegisterRequest struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	BloodGroup  string     `json:"blood_group,omitempty"`
	Address     string     `json:"address,omitempty"`
}

func (r *RegisterRequest) validate() error {
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("%w: first and last name required", ErrInvalid)
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("%w: phone required", ErrInvalid)
	}
	if !strings.Contains(r.Email, "@") {
		return fmt.Errorf("%w: valid email required", ErrInvalid)
	}
	return nil
}

// Repository is the patient storage interface.
type Repository interface {
	Register(ctx context.Context, req *RegisterRequest) (*Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByPhone(ctx context.Context, phone string) (*Patient, error)
	GetByEmail(ctx context.Context, email string) (*Patient, error)
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

// NewPostgresRepository creates a patient repository backed by a pgx pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const patientColumns = `id, first_name, last_name, email, phone, date_of_birth,
	gender, blood_group, address, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.DateOfBirth,
		&p.Gender, &p.BloodGroup, &p.Address, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) Register(ctx context.Context, req *RegisterRequest) (*Patient, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	p := &Patient{
		ID:          uuid.New(),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       strings.TrimSpace(req.Phone),
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		BloodGroup:  req.BloodGroup,
		Address:     req.Address,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, phone,
			date_of_birth, gender, blood_group, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.FirstName, p.LastName, p.Email, p.Phone,
		p.DateOfBirth, p.Gender, p.BloodGroup, p.Address, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("patients: register: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientColumns+` FROM patients WHERE phone = $1`, strings.TrimSpace(phone))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Patient, error) {
	return r.one(ctx, `SELECT `+patientColumns+` FROM patients WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresRepository) one(ctx context.Context, query string, arg any) (*Patient, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patients: lookup: %w", err)
	}
	return p, nil
}
