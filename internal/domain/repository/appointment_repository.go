package repository

import (
	"context"
	"errors"
	"time"

	"appointment-scheduler/internal/domain/entity"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateAppointment is returned when the (doctor, patient, date) uniqueness constraint fires
	ErrDuplicateAppointment = errors.New("appointment already exists for doctor, patient and date")
	// ErrUnknownParty is returned when the doctor or patient row referenced by an appointment does not exist
	ErrUnknownParty = errors.New("appointment references an unknown doctor or patient")
	// ErrLedgerContention is returned when a unit of work kept losing serialization races
	ErrLedgerContention = errors.New("ledger contention: retries exhausted")
)

// AuditWriter appends audit entries inside the current unit of work
type AuditWriter interface {
	AppendAudit(ctx context.Context, log *entity.AuditLog) error
}

// AppointmentLedger is the view of the ledger available inside one atomic unit of work.
// Finders return (nil, nil) when nothing matches.
type AppointmentLedger interface {
	AuditWriter
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	FindByDoctorPatientDate(ctx context.Context, doctorID, patientID uuid.UUID, date time.Time) (*entity.Appointment, error)
	CountByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error)
	Insert(ctx context.Context, appointment *entity.Appointment) error
	UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AppointmentRepository is the durable appointment ledger.
type AppointmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	ListByPatientFrom(ctx context.Context, patientID uuid.UUID, from time.Time, limit, offset int) ([]entity.Appointment, error)
	ListByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]entity.Appointment, error)
	CountByPatientFrom(ctx context.Context, patientID uuid.UUID, from time.Time) (int64, error)
	CountByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) (int64, error)

	// RunInLedger runs fn as one atomic unit serialized against every other
	// unit holding any of keys. When fn fails none of its writes survive.
	RunInLedger(ctx context.Context, keys []entity.SlotKey, fn func(ledger AppointmentLedger) error) error
}
