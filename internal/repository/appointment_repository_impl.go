package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appointment-scheduler/internal/domain/entity"
	domainRepo "appointment-scheduler/internal/domain/repository"
	"appointment-scheduler/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	ledgerDriverPostgres = "postgres"
	retryBackoff         = 25 * time.Millisecond
)

type appointmentRepository struct {
	db         *gorm.DB
	log        *logrus.Logger
	metrics    *metrics.SchedulerMetrics
	maxRetries int
}

// NewAppointmentRepository returns the PostgreSQL ledger. Units of work hold
// transaction-scoped advisory locks on their slot keys, and serialization
// failures are retried up to maxRetries times.
func NewAppointmentRepository(db *gorm.DB, log *logrus.Logger, m *metrics.SchedulerMetrics, maxRetries int) domainRepo.AppointmentRepository {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &appointmentRepository{
		db:         db,
		log:        log,
		metrics:    m,
		maxRetries: maxRetries,
	}
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	return findAppointmentByID(r.db.WithContext(ctx), id)
}

func (r *appointmentRepository) ListByPatientFrom(ctx context.Context, patientID uuid.UUID, from time.Time, limit, offset int) ([]entity.Appointment, error) {
	return r.list(ctx, "patient_id = ?", patientID, from, limit, offset)
}

func (r *appointmentRepository) ListByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]entity.Appointment, error) {
	return r.list(ctx, "doctor_id = ?", doctorID, from, limit, offset)
}

func (r *appointmentRepository) CountByPatientFrom(ctx context.Context, patientID uuid.UUID, from time.Time) (int64, error) {
	return r.count(ctx, "patient_id = ?", patientID, from)
}

func (r *appointmentRepository) CountByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) (int64, error) {
	return r.count(ctx, "doctor_id = ?", doctorID, from)
}

// RunInLedger runs fn inside a transaction holding one advisory lock per slot key.
//
// Flow:
// 1. Begin transaction
// 2. pg_advisory_xact_lock for every key, in canonical order
// 3. Run fn against the transaction
// 4. Commit, or roll back on any error
// 5. On serialization failure or deadlock, start over (bounded)
func (r *appointmentRepository) RunInLedger(ctx context.Context, keys []entity.SlotKey, fn func(ledger domainRepo.AppointmentLedger) error) error {
	sorted := entity.SortedSlotKeys(keys)

	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			r.metrics.ObserveLedgerRetry(ledgerDriverPostgres)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, key := range sorted {
				if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Error; err != nil {
					return fmt.Errorf("lock slot %s: %w", key, err)
				}
			}
			return fn(&appointmentLedger{tx: tx})
		})
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		r.log.Warnf("Ledger transaction conflict on attempt %d for slots %v: %+v", attempt+1, sorted, err)
	}

	return fmt.Errorf("%w: %v", domainRepo.ErrLedgerContention, err)
}

func (r *appointmentRepository) list(ctx context.Context, party string, partyID uuid.UUID, from time.Time, limit, offset int) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := r.db.WithContext(ctx).
		Where(party, partyID).
		Where("date >= ?", entity.FormatDate(from)).
		Order("date ASC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) count(ctx context.Context, party string, partyID uuid.UUID, from time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&entity.Appointment{}).
		Where(party, partyID).
		Where("date >= ?", entity.FormatDate(from)).
		Count(&total).Error
	return total, err
}

// appointmentLedger is the transaction-bound view handed to RunInLedger callbacks
type appointmentLedger struct {
	tx *gorm.DB
}

func (l *appointmentLedger) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	return findAppointmentByID(l.tx.WithContext(ctx), id)
}

func (l *appointmentLedger) FindByDoctorPatientDate(ctx context.Context, doctorID, patientID uuid.UUID, date time.Time) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := l.tx.WithContext(ctx).
		Where("doctor_id = ? AND patient_id = ? AND date = ?", doctorID, patientID, entity.FormatDate(date)).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (l *appointmentLedger) CountByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error) {
	var total int64
	err := l.tx.WithContext(ctx).
		Model(&entity.Appointment{}).
		Where("doctor_id = ? AND date = ?", doctorID, entity.FormatDate(date)).
		Count(&total).Error
	return total, err
}

func (l *appointmentLedger) Insert(ctx context.Context, appointment *entity.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	err := l.tx.WithContext(ctx).Create(appointment).Error
	return translateWriteError(err)
}

func (l *appointmentLedger) UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) error {
	result := l.tx.WithContext(ctx).
		Model(&entity.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"date":       entity.FormatDate(date),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update appointment %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (l *appointmentLedger) Delete(ctx context.Context, id uuid.UUID) error {
	result := l.tx.WithContext(ctx).Where("id = ?", id).Delete(&entity.Appointment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete appointment %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (l *appointmentLedger) AppendAudit(ctx context.Context, log *entity.AuditLog) error {
	return l.tx.WithContext(ctx).Create(log).Error
}

func findAppointmentByID(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := db.Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

// translateWriteError maps constraint violations to ledger errors
func translateWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case isDuplicateKeyError(err):
		return domainRepo.ErrDuplicateAppointment
	case isForeignKeyError(err):
		return domainRepo.ErrUnknownParty
	default:
		return err
	}
}
