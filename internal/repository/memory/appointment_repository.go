package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"appointment-scheduler/internal/domain/entity"
	domainRepo "appointment-scheduler/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppointmentRepository is an in-process appointment ledger.
// Units of work are serialized per slot key by a SlotLocker and
// publish their writes only when they succeed.
type AppointmentRepository struct {
	log    *logrus.Logger
	locker *SlotLocker

	mu           sync.RWMutex
	appointments map[uuid.UUID]entity.Appointment
	audit        []entity.AuditLog
	nextAuditID  int64
}

var _ domainRepo.AppointmentRepository = (*AppointmentRepository)(nil)

func NewAppointmentRepository(log *logrus.Logger, locker *SlotLocker) *AppointmentRepository {
	return &AppointmentRepository{
		log:          log,
		locker:       locker,
		appointments: make(map[uuid.UUID]entity.Appointment),
	}
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AppointmentRepository) ListByPatientFrom(ctx context.Context, patientID uuid.UUID, from time.Time, limit, offset int) ([]entity.Appointment, error) {
	return r.list(func(a *entity.Appointment) bool {
		return a.PatientID == patientID && !a.Date.Before(from)
	}, limit, offset), nil
}

func (r *AppointmentRepository) ListByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time, limit, offset int) ([]entity.Appointment, error) {
	return r.list(func(a *entity.Appointment) bool {
		return a.DoctorID == doctorID && !a.Date.Before(from)
	}, limit, offset), nil
}

func (r *AppointmentRepository) CountByPatientFrom(ctx context.Context, patientID uuid.UUID, from time.Time) (int64, error) {
	return r.count(func(a *entity.Appointment) bool {
		return a.PatientID == patientID && !a.Date.Before(from)
	}), nil
}

func (r *AppointmentRepository) CountByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) (int64, error) {
	return r.count(func(a *entity.Appointment) bool {
		return a.DoctorID == doctorID && !a.Date.Before(from)
	}), nil
}

// RunInLedger holds the slot mutexes for keys while fn runs and applies
// fn's staged writes atomically if it returns nil.
func (r *AppointmentRepository) RunInLedger(ctx context.Context, keys []entity.SlotKey, fn func(ledger domainRepo.AppointmentLedger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := r.locker.Lock(keys)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &ledgerTx{
		repo:    r,
		pending: make(map[uuid.UUID]*entity.Appointment),
	}
	if err := fn(tx); err != nil {
		return err
	}

	r.commit(tx)
	return nil
}

// AuditTrail returns a copy of every committed audit entry
func (r *AppointmentRepository) AuditTrail() []entity.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.AuditLog, len(r.audit))
	copy(out, r.audit)
	return out
}

// Len returns the number of appointments in the ledger
func (r *AppointmentRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.appointments)
}

func (r *AppointmentRepository) commit(tx *ledgerTx) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range tx.pending {
		if a == nil {
			delete(r.appointments, id)
			continue
		}
		r.appointments[id] = *a
	}
	for _, entry := range tx.audit {
		r.nextAuditID++
		entry.ID = r.nextAuditID
		r.audit = append(r.audit, entry)
	}
}

func (r *AppointmentRepository) list(match func(a *entity.Appointment) bool, limit, offset int) []entity.Appointment {
	r.mu.RLock()
	matched := make([]entity.Appointment, 0)
	for _, a := range r.appointments {
		if match(&a) {
			matched = append(matched, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})

	if offset < 0 || offset >= len(matched) {
		return []entity.Appointment{}
	}
	end := len(matched)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	return matched[offset:end]
}

func (r *AppointmentRepository) count(match func(a *entity.Appointment) bool) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, a := range r.appointments {
		if match(&a) {
			n++
		}
	}
	return n
}

// ledgerTx overlays staged writes on the committed ledger.
// A nil pending entry marks a deletion.
type ledgerTx struct {
	repo    *AppointmentRepository
	pending map[uuid.UUID]*entity.Appointment
	audit   []entity.AuditLog
}

func (t *ledgerTx) lookup(id uuid.UUID) (entity.Appointment, bool) {
	if a, ok := t.pending[id]; ok {
		if a == nil {
			return entity.Appointment{}, false
		}
		return *a, true
	}

	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	a, ok := t.repo.appointments[id]
	return a, ok
}

// each visits the merged view of committed and staged rows
func (t *ledgerTx) each(visit func(a *entity.Appointment) bool) {
	t.repo.mu.RLock()
	for id, a := range t.repo.appointments {
		if _, staged := t.pending[id]; staged {
			continue
		}
		if !visit(&a) {
			t.repo.mu.RUnlock()
			return
		}
	}
	t.repo.mu.RUnlock()

	for _, a := range t.pending {
		if a == nil {
			continue
		}
		if !visit(a) {
			return
		}
	}
}

func (t *ledgerTx) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	a, ok := t.lookup(id)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t *ledgerTx) FindByDoctorPatientDate(ctx context.Context, doctorID, patientID uuid.UUID, date time.Time) (*entity.Appointment, error) {
	var found *entity.Appointment
	t.each(func(a *entity.Appointment) bool {
		if a.DoctorID == doctorID && a.PatientID == patientID && a.Date.Equal(date) {
			cp := *a
			found = &cp
			return false
		}
		return true
	})
	return found, nil
}

func (t *ledgerTx) CountByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int64, error) {
	var n int64
	t.each(func(a *entity.Appointment) bool {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			n++
		}
		return true
	})
	return n, nil
}

func (t *ledgerTx) Insert(ctx context.Context, appointment *entity.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if _, exists := t.lookup(appointment.ID); exists {
		return fmt.Errorf("insert appointment %s: id already taken", appointment.ID)
	}
	if t.conflicts(appointment.ID, appointment.DoctorID, appointment.PatientID, appointment.Date) {
		return domainRepo.ErrDuplicateAppointment
	}

	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	staged := *appointment
	t.pending[staged.ID] = &staged
	return nil
}

func (t *ledgerTx) UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) error {
	a, ok := t.lookup(id)
	if !ok {
		return fmt.Errorf("update appointment %s: not found", id)
	}
	if t.conflicts(id, a.DoctorID, a.PatientID, date) {
		return domainRepo.ErrDuplicateAppointment
	}

	a.Date = date
	a.UpdatedAt = time.Now().UTC()
	t.pending[id] = &a
	return nil
}

func (t *ledgerTx) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.lookup(id); !ok {
		return fmt.Errorf("delete appointment %s: not found", id)
	}
	t.pending[id] = nil
	return nil
}

func (t *ledgerTx) AppendAudit(ctx context.Context, log *entity.AuditLog) error {
	entry := *log
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	t.audit = append(t.audit, entry)
	return nil
}

// conflicts reports whether another row already holds (doctor, patient, date)
func (t *ledgerTx) conflicts(id, doctorID, patientID uuid.UUID, date time.Time) bool {
	conflict := false
	t.each(func(a *entity.Appointment) bool {
		if a.ID != id && a.DoctorID == doctorID && a.PatientID == patientID && a.Date.Equal(date) {
			conflict = true
			return false
		}
		return true
	})
	return conflict
}
