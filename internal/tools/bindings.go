package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/careline-ai/careline/internal/patients"
	"github.com/careline-ai/careline/internal/providers"
	"github.com/careline-ai/careline/internal/scheduling"
)

// Deps are the domain services the booking tools call into.
type Deps struct {
	Engine    *scheduling.Engine
	Providers providers.Repository
	Patients  patients.Repository
}

// NewBookingRegistry wires the appointment tool set against the domain
// services.
func NewBookingRegistry(d Deps) *Registry {
	if d.Engine == nil || d.Providers == nil || d.Patients == nil {
		panic("tools: engine, providers and patients are required")
	}
	b := bindings{d}
	return NewRegistry(
		b.searchProviders(),
		b.getProviderDetails(),
		b.listAvailableSlots(),
		b.bookAppointment(),
		b.getAppointment(),
		b.getPatientAppointments(),
		b.cancelAppointment(),
		b.rescheduleAppointment(),
		b.registerPatient(),
	)
}

type bindings struct {
	Deps
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func uuidArg(args map[string]any, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(stringArg(args, key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid id", key)
	}
	return id, nil
}

func (b bindings) patientByPhone(ctx context.Context, args map[string]any) (*patients.Patient, error) {
	p, err := b.Patients.GetByPhone(ctx, stringArg(args, "patient_phone"))
	if err != nil {
		return nil, fmt.Errorf("no patient registered with that phone number")
	}
	return p, nil
}

func (b bindings) searchProviders() Tool {
	return Tool{
		Definition: Definition{
			Name:        "search_providers",
			Description: "Search doctors by specialty. Returns name, specialty, fee and rating for each match.",
			Fields: []Field{
				{Name: "specialty", Type: "string", Description: "Medical specialty to filter by, e.g. cardiology. Omit to list all."},
				{Name: "available_only", Type: "boolean", Description: "Only return doctors currently accepting appointments."},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			list, err := b.Providers.Search(ctx, providers.SearchFilter{
				Specialty:     stringArg(args, "specialty"),
				AvailableOnly: boolArg(args, "available_only"),
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"providers": list, "count": len(list)}, nil
		},
	}
}

func (b bindings) getProviderDetails() Tool {
	return Tool{
		Definition: Definition{
			Name:        "get_provider_details",
			Description: "Get a doctor's full profile including their weekly consultation schedule.",
			Fields: []Field{
				{Name: "provider_id", Type: "string", Description: "The doctor's id from search_providers.", Required: true},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			id, err := uuidArg(args, "provider_id")
			if err != nil {
				return nil, err
			}
			return b.Providers.GetDetails(ctx, id)
		},
	}
}

func (b bindings) listAvailableSlots() Tool {
	return Tool{
		Definition: Definition{
			Name:        "list_available_slots",
			Description: "List open appointment slots for a doctor on a date, or across a date range.",
			Fields: []Field{
				{Name: "provider_id", Type: "string", Description: "The doctor's id.", Required: true},
				{Name: "date", Type: "string", Description: "Date to check, YYYY-MM-DD.", Required: true},
				{Name: "to_date", Type: "string", Description: "Optional range end, YYYY-MM-DD. Defaults to the same day."},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			id, err := uuidArg(args, "provider_id")
			if err != nil {
				return nil, err
			}
			from, err := scheduling.ParseDate(stringArg(args, "date"))
			if err != nil {
				return nil, fmt.Errorf("date must be YYYY-MM-DD")
			}
			to := from
			if s := stringArg(args, "to_date"); s != "" {
				if to, err = scheduling.ParseDate(s); err != nil {
					return nil, fmt.Errorf("to_date must be YYYY-MM-DD")
				}
			}
			slots, err := b.Engine.ListSlots(ctx, id, from, to)
			if err != nil {
				return nil, err
			}
			return map[string]any{"slots": slots, "count": len(slots)}, nil
		},
	}
}

func (b bindings) bookAppointment() Tool {
	return Tool{
		Definition: Definition{
			Name:        "book_appointment",
			Description: "Book an appointment slot for a registered patient. The slot must come from list_available_slots.",
			Fields: []Field{
				{Name: "patient_phone", Type: "string", Description: "Phone number the patient registered with.", Required: true},
				{Name: "provider_id", Type: "string", Description: "The doctor's id.", Required: true},
				{Name: "date", Type: "string", Description: "Appointment date, YYYY-MM-DD.", Required: true},
				{Name: "start", Type: "string", Description: "Slot start time, HH:MM 24-hour.", Required: true},
				{Name: "reason", Type: "string", Description: "Reason for the visit.", Required: true},
				{Name: "notes", Type: "string", Description: "Optional notes for the doctor."},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			patient, err := b.patientByPhone(ctx, args)
			if err != nil {
				return nil, err
			}
			providerID, err := uuidArg(args, "provider_id")
			if err != nil {
				return nil, err
			}
			date, err := scheduling.ParseDate(stringArg(args, "date"))
			if err != nil {
				return nil, fmt.Errorf("date must be YYYY-MM-DD")
			}
			start, err := scheduling.ParseTimeOfDay(stringArg(args, "start"))
			if err != nil {
				return nil, fmt.Errorf("start must be HH:MM")
			}
			return b.Engine.Book(ctx, scheduling.BookRequest{
				PatientID:  patient.ID,
				ProviderID: providerID,
				Date:       date,
				Start:      start,
				Reason:     stringArg(args, "reason"),
				Notes:      stringArg(args, "notes"),
			})
		},
	}
}

func (b bindings) getAppointment() Tool {
	return Tool{
		Definition: Definition{
			Name:        "get_appointment",
			Description: "Look up one appointment by its id.",
			Fields: []Field{
				{Name: "appointment_id", Type: "string", Description: "The appointment id.", Required: true},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			id, err := uuidArg(args, "appointment_id")
			if err != nil {
				return nil, err
			}
			return b.Engine.Get(ctx, id)
		},
	}
}

func (b bindings) getPatientAppointments() Tool {
	return Tool{
		Definition: Definition{
			Name:        "get_patient_appointments",
			Description: "List a patient's appointments. By default only upcoming ones.",
			Fields: []Field{
				{Name: "patient_phone", Type: "string", Description: "Phone number the patient registered with.", Required: true},
				{Name: "include_past", Type: "boolean", Description: "Also include past and cancelled appointments."},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			patient, err := b.patientByPhone(ctx, args)
			if err != nil {
				return nil, err
			}
			appts, err := b.Engine.ListForPatient(ctx, patient.ID, boolArg(args, "include_past"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"appointments": appts, "count": len(appts)}, nil
		},
	}
}

// ownedAppointment resolves the appointment and verifies it belongs to the
// patient registered under patient_phone.
func (b bindings) ownedAppointment(ctx context.Context, args map[string]any) (uuid.UUID, error) {
	id, err := uuidArg(args, "appointment_id")
	if err != nil {
		return uuid.Nil, err
	}
	patient, err := b.patientByPhone(ctx, args)
	if err != nil {
		return uuid.Nil, err
	}
	appt, err := b.Engine.Get(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if appt.PatientID != patient.ID {
		return uuid.Nil, fmt.Errorf("you can only change your own appointments")
	}
	return id, nil
}

func (b bindings) cancelAppointment() Tool {
	return Tool{
		Definition: Definition{
			Name:        "cancel_appointment",
			Description: "Cancel an appointment on the patient's behalf.",
			Fields: []Field{
				{Name: "appointment_id", Type: "string", Description: "The appointment id.", Required: true},
				{Name: "patient_phone", Type: "string", Description: "Phone number the patient registered with.", Required: true},
				{Name: "reason", Type: "string", Description: "Why the patient is cancelling."},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			id, err := b.ownedAppointment(ctx, args)
			if err != nil {
				return nil, err
			}
			return b.Engine.Cancel(ctx, id, "patient", stringArg(args, "reason"))
		},
	}
}

func (b bindings) rescheduleAppointment() Tool {
	return Tool{
		Definition: Definition{
			Name:        "reschedule_appointment",
			Description: "Move an appointment to a new open slot. Returns the replacement appointment with a new id.",
			Fields: []Field{
				{Name: "appointment_id", Type: "string", Description: "The appointment id to move.", Required: true},
				{Name: "patient_phone", Type: "string", Description: "Phone number the patient registered with.", Required: true},
				{Name: "new_date", Type: "string", Description: "New date, YYYY-MM-DD.", Required: true},
				{Name: "new_start", Type: "string", Description: "New slot start, HH:MM 24-hour.", Required: true},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			id, err := b.ownedAppointment(ctx, args)
			if err != nil {
				return nil, err
			}
			date, err := scheduling.ParseDate(stringArg(args, "new_date"))
			if err != nil {
				return nil, fmt.Errorf("new_date must be YYYY-MM-DD")
			}
			start, err := scheduling.ParseTimeOfDay(stringArg(args, "new_start"))
			if err != nil {
				return nil, fmt.Errorf("new_start must be HH:MM")
			}
			return b.Engine.Reschedule(ctx, id, date, start)
		},
	}
}

func (b bindings) registerPatient() Tool {
	return Tool{
		Definition: Definition{
			Name:        "register_patient",
			Description: "Register a new patient. Required before booking a first appointment.",
			Fields: []Field{
				{Name: "first_name", Type: "string", Description: "Patient's first name.", Required: true},
				{Name: "last_name", Type: "string", Description: "Patient's last name.", Required: true},
				{Name: "email", Type: "string", Description: "Patient's email address.", Required: true},
				{Name: "phone", Type: "string", Description: "Patient's phone number.", Required: true},
				{Name: "gender", Type: "string", Description: "Optional gender."},
				{Name: "address", Type: "string", Description: "Optional postal address."},
			},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			return b.Patients.Register(ctx, &patients.RegisterRequest{
				FirstName: stringArg(args, "first_name"),
				LastName:  stringArg(args, "last_name"),
				Email:     stringArg(args, "email"),
				Phone:     stringArg(args, "phone"),
				Gender:    stringArg(args, "gender"),
				Address:   stringArg(args, "address"),
			})
		},
	}
}
