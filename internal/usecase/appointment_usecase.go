package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"appointment-scheduler/internal/converter"
	"appointment-scheduler/internal/delivery/dto"
	"appointment-scheduler/internal/domain/entity"
	"appointment-scheduler/internal/domain/repository"
	"appointment-scheduler/internal/infrastructure/metrics"
	"appointment-scheduler/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var appointmentTracer = otel.Tracer("appointment-scheduler/usecase")

const (
	operationList   = "list"
	operationBook   = "book"
	operationModify = "modify"
	operationCancel = "cancel"

	// attempts allowed when an appointment changes date between the
	// unlocked pre-read and the locked re-read
	maxRelocationAttempts = 3

	defaultPageSize = 10
	maxPageSize     = 100
)

// errAppointmentMoved restarts modify or cancel against a fresh pre-read
var errAppointmentMoved = errors.New("appointment moved to another date")

type AppointmentUsecase interface {
	ListAppointments(ctx context.Context, requester entity.Requester, page, size int) (*dto.AppointmentListResponse, error)
	BookAppointment(ctx context.Context, patientID uuid.UUID, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
	ModifyAppointment(ctx context.Context, requester entity.Requester, appointmentID uuid.UUID, req *dto.ModifyAppointmentRequest) (*dto.AppointmentResponse, error)
	CancelAppointment(ctx context.Context, requester entity.Requester, appointmentID uuid.UUID) (*dto.CancelAppointmentResponse, error)
}

// AppointmentUsecaseConfig tunes paging and the notion of "today"
type AppointmentUsecaseConfig struct {
	// Location decides which calendar date "now" falls on. Defaults to UTC.
	Location        *time.Location
	DefaultPageSize int
	MaxPageSize     int
	// Now defaults to time.Now
	Now func() time.Time
}

type appointmentUsecase struct {
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	doctorRepo      repository.DoctorProfileRepository
	patientRepo     repository.PatientProfileRepository
	auditService    service.AuditService
	metrics         *metrics.SchedulerMetrics
	cfg             AppointmentUsecaseConfig
}

func NewAppointmentUsecase(
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	doctorRepo repository.DoctorProfileRepository,
	patientRepo repository.PatientProfileRepository,
	auditService service.AuditService,
	m *metrics.SchedulerMetrics,
	cfg AppointmentUsecaseConfig,
) AppointmentUsecase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = maxPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &appointmentUsecase{
		log:             log,
		appointmentRepo: appointmentRepo,
		doctorRepo:      doctorRepo,
		patientRepo:     patientRepo,
		auditService:    auditService,
		metrics:         m,
		cfg:             cfg,
	}
}

// ListAppointments returns the requester's appointments dated today or later, earliest first.
func (u *appointmentUsecase) ListAppointments(ctx context.Context, requester entity.Requester, page, size int) (resp *dto.AppointmentListResponse, err error) {
	start := time.Now()
	ctx, span := appointmentTracer.Start(ctx, "appointments.list")
	span.SetAttributes(
		attribute.String("requester.id", requester.ID.String()),
		attribute.String("requester.role", string(requester.Role)),
	)
	defer func() { u.finish(span, operationList, start, err) }()

	page, size = u.normalizePage(page, size)
	today := u.today()
	// a page whose offset overflows int lies past any stored row
	beyond := page > math.MaxInt/size
	offset := 0
	if !beyond {
		offset = page * size
	}

	appointments := []entity.Appointment{}
	var total int64
	switch requester.Role {
	case entity.RequesterPatient:
		if !beyond {
			appointments, err = u.appointmentRepo.ListByPatientFrom(ctx, requester.ID, today, size, offset)
		}
		if err == nil {
			total, err = u.appointmentRepo.CountByPatientFrom(ctx, requester.ID, today)
		}
	case entity.RequesterDoctor:
		if !beyond {
			appointments, err = u.appointmentRepo.ListByDoctorFrom(ctx, requester.ID, today, size, offset)
		}
		if err == nil {
			total, err = u.appointmentRepo.CountByDoctorFrom(ctx, requester.ID, today)
		}
	default:
		return nil, ErrUnsupportedRole
	}
	if err != nil {
		u.log.Warnf("Failed to list appointments for %s %s: %+v", requester.Role, requester.ID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: u.assemble(ctx, appointments),
		Page:         page,
		Size:         size,
		Total:        total,
	}, nil
}

// BookAppointment creates an appointment for the patient.
//
// Flow:
// 1. Doctor exists
// 2. Date is not in the past
// 3. Inside the (doctor, date) unit of work:
//    a. patient has no appointment with this doctor on this date
//    b. doctor works on the date's weekday
//    c. one more appointment fits the doctor's daily capacity
//    d. insert and audit
func (u *appointmentUsecase) BookAppointment(ctx context.Context, patientID uuid.UUID, req *dto.BookAppointmentRequest) (resp *dto.AppointmentResponse, err error) {
	start := time.Now()
	ctx, span := appointmentTracer.Start(ctx, "appointments.book")
	span.SetAttributes(
		attribute.String("doctor.id", req.DoctorID.String()),
		attribute.String("patient.id", patientID.String()),
		attribute.String("appointment.date", req.Date),
	)
	defer func() { u.finish(span, operationBook, start, err) }()

	// Step 1: Doctor exists
	doctor, err := u.doctorRepo.FindByUserID(ctx, req.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", req.DoctorID, err)
		return nil, err
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	// Step 2: Date is not in the past
	if date.Before(u.today()) {
		return nil, ErrPastDate
	}

	appointment := &entity.Appointment{
		DoctorID:  doctor.UserID,
		PatientID: patientID,
		Date:      date,
	}

	// Step 3: Checks and insert, serialized per (doctor, date)
	err = u.appointmentRepo.RunInLedger(ctx, []entity.SlotKey{appointment.SlotKey()}, func(ledger repository.AppointmentLedger) error {
		existing, err := ledger.FindByDoctorPatientDate(ctx, doctor.UserID, patientID, date)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyBooked
		}

		if !doctor.IsAvailableOn(date) {
			return ErrDoctorUnavailable
		}

		booked, err := ledger.CountByDoctorDate(ctx, doctor.UserID, date)
		if err != nil {
			return err
		}
		if !doctor.HasCapacityFor(booked) {
			return ErrCapacityFull
		}

		if err := ledger.Insert(ctx, appointment); err != nil {
			return err
		}
		return u.auditService.LogBook(ctx, ledger, patientID, appointment)
	})
	if err != nil {
		return nil, u.ledgerError(operationBook, err)
	}

	u.log.Infof("Appointment booked: id=%s, doctor=%s, patient=%s, date=%s", appointment.ID, doctor.UserID, patientID, entity.FormatDate(date))
	return converter.AppointmentToResponse(appointment, doctor, u.findPatient(ctx, patientID)), nil
}

// ModifyAppointment moves an appointment to another date.
//
// Flow:
// 1. Appointment exists and is owned by the requester
// 2. Current date is not in the past
// 3. New date is not in the past
// 4. Inside the unit of work over both dates:
//    a. re-read the appointment; restart if its date moved meanwhile
//    b. same date: nothing else to check
//    c. otherwise duplicate, weekday and capacity checks for the new date, then update and audit
func (u *appointmentUsecase) ModifyAppointment(ctx context.Context, requester entity.Requester, appointmentID uuid.UUID, req *dto.ModifyAppointmentRequest) (resp *dto.AppointmentResponse, err error) {
	start := time.Now()
	ctx, span := appointmentTracer.Start(ctx, "appointments.modify")
	span.SetAttributes(
		attribute.String("appointment.id", appointmentID.String()),
		attribute.String("requester.role", string(requester.Role)),
		attribute.String("appointment.new_date", req.Date),
	)
	defer func() { u.finish(span, operationModify, start, err) }()

	err = u.retryOnRelocation(operationModify, appointmentID, func() error {
		resp, err = u.modifyOnce(ctx, requester, appointmentID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (u *appointmentUsecase) modifyOnce(ctx context.Context, requester entity.Requester, appointmentID uuid.UUID, req *dto.ModifyAppointmentRequest) (*dto.AppointmentResponse, error) {
	// Step 1: Exists and owned
	current, err := u.findOwned(ctx, requester, appointmentID)
	if err != nil {
		return nil, err
	}

	// Step 2: Current date not in the past
	today := u.today()
	if current.IsPast(today) {
		return nil, ErrPastDate
	}

	// Step 3: New date not in the past
	newDate, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if newDate.Before(today) {
		return nil, ErrPastDate
	}

	doctor, err := u.doctorRepo.FindByUserID(ctx, current.DoctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor %s: %+v", current.DoctorID, err)
		return nil, err
	}

	sameDate := newDate.Equal(current.Date)
	if !sameDate && doctor == nil {
		return nil, ErrDoctorNotFound
	}

	updated := *current
	updated.Date = newDate

	// Step 4: Re-read and checks under both slot keys
	err = u.appointmentRepo.RunInLedger(ctx, []entity.SlotKey{current.SlotKey(), updated.SlotKey()}, func(ledger repository.AppointmentLedger) error {
		locked, err := ledger.FindByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrAppointmentNotFound
		}
		if !locked.Date.Equal(current.Date) {
			return errAppointmentMoved
		}

		if sameDate {
			updated = *locked
			return nil
		}

		existing, err := ledger.FindByDoctorPatientDate(ctx, locked.DoctorID, locked.PatientID, newDate)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != locked.ID {
			return ErrAlreadyBooked
		}

		if !doctor.IsAvailableOn(newDate) {
			return ErrDoctorUnavailable
		}

		// the moved appointment still sits on its old date, so it is not part of this count
		booked, err := ledger.CountByDoctorDate(ctx, locked.DoctorID, newDate)
		if err != nil {
			return err
		}
		if !doctor.HasCapacityFor(booked) {
			return ErrCapacityFull
		}

		if err := ledger.UpdateDate(ctx, appointmentID, newDate); err != nil {
			return err
		}
		updated = *locked
		updated.Date = newDate
		return u.auditService.LogModify(ctx, ledger, requester.ID, locked, &updated)
	})
	if err != nil {
		return nil, u.ledgerError(operationModify, err)
	}

	if !sameDate {
		u.log.Infof("Appointment modified: id=%s, from=%s, to=%s", appointmentID, entity.FormatDate(current.Date), entity.FormatDate(newDate))
	}
	return converter.AppointmentToResponse(&updated, doctor, u.findPatient(ctx, updated.PatientID)), nil
}

// CancelAppointment deletes an appointment.
//
// Flow:
// 1. Appointment exists and is owned by the requester
// 2. Date is not in the past
// 3. Inside the (doctor, date) unit of work: re-read, delete and audit
func (u *appointmentUsecase) CancelAppointment(ctx context.Context, requester entity.Requester, appointmentID uuid.UUID) (resp *dto.CancelAppointmentResponse, err error) {
	start := time.Now()
	ctx, span := appointmentTracer.Start(ctx, "appointments.cancel")
	span.SetAttributes(
		attribute.String("appointment.id", appointmentID.String()),
		attribute.String("requester.role", string(requester.Role)),
	)
	defer func() { u.finish(span, operationCancel, start, err) }()

	err = u.retryOnRelocation(operationCancel, appointmentID, func() error {
		return u.cancelOnce(ctx, requester, appointmentID)
	})
	if err != nil {
		return nil, err
	}

	return &dto.CancelAppointmentResponse{
		ID:      appointmentID,
		Message: fmt.Sprintf("Appointment with ID %s has been cancelled successfully.", appointmentID),
	}, nil
}

func (u *appointmentUsecase) cancelOnce(ctx context.Context, requester entity.Requester, appointmentID uuid.UUID) error {
	// Step 1: Exists and owned
	current, err := u.findOwned(ctx, requester, appointmentID)
	if err != nil {
		return err
	}

	// Step 2: Not in the past
	if current.IsPast(u.today()) {
		return ErrPastDate
	}

	// Step 3: Delete under the slot key
	err = u.appointmentRepo.RunInLedger(ctx, []entity.SlotKey{current.SlotKey()}, func(ledger repository.AppointmentLedger) error {
		locked, err := ledger.FindByID(ctx, appointmentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrAppointmentNotFound
		}
		if !locked.Date.Equal(current.Date) {
			return errAppointmentMoved
		}

		if err := ledger.Delete(ctx, appointmentID); err != nil {
			return err
		}
		return u.auditService.LogCancel(ctx, ledger, requester.ID, locked)
	})
	if err != nil {
		return u.ledgerError(operationCancel, err)
	}

	u.log.Infof("Appointment cancelled: id=%s, doctor=%s, date=%s", appointmentID, current.DoctorID, entity.FormatDate(current.Date))
	return nil
}

// findOwned collapses "absent" and "not yours" into ErrAppointmentNotFound
func (u *appointmentUsecase) findOwned(ctx context.Context, requester entity.Requester, appointmentID uuid.UUID) (*entity.Appointment, error) {
	appointment, err := u.appointmentRepo.FindByID(ctx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appointment == nil || !requester.Owns(appointment) {
		return nil, ErrAppointmentNotFound
	}
	return appointment, nil
}

func (u *appointmentUsecase) retryOnRelocation(operation string, appointmentID uuid.UUID, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, errAppointmentMoved) {
			return err
		}
		if attempt >= maxRelocationAttempts {
			u.log.Warnf("Giving up %s of appointment %s after %d relocations", operation, appointmentID, attempt)
			return fmt.Errorf("%s appointment %s: %w", operation, appointmentID, repository.ErrLedgerContention)
		}
		u.log.Debugf("Appointment %s moved during %s, retrying", appointmentID, operation)
	}
}

// ledgerError maps store errors raised inside a unit of work
func (u *appointmentUsecase) ledgerError(operation string, err error) error {
	var se *SchedulingError
	switch {
	case errors.As(err, &se), errors.Is(err, errAppointmentMoved):
		return err
	case errors.Is(err, repository.ErrDuplicateAppointment):
		return ErrAlreadyBooked
	case errors.Is(err, repository.ErrUnknownParty):
		return ErrPatientNotFound
	default:
		u.log.Warnf("Failed to %s appointment: %+v", operation, err)
		return fmt.Errorf("%s appointment: %w", operation, err)
	}
}

// assemble joins rows with directory snapshots, looking each party up once
func (u *appointmentUsecase) assemble(ctx context.Context, appointments []entity.Appointment) []dto.AppointmentResponse {
	doctors := make(map[uuid.UUID]*entity.DoctorProfile)
	patients := make(map[uuid.UUID]*entity.PatientProfile)

	views := make([]dto.AppointmentResponse, 0, len(appointments))
	for i := range appointments {
		a := &appointments[i]

		doctor, ok := doctors[a.DoctorID]
		if !ok {
			doctor = u.findDoctor(ctx, a.DoctorID)
			doctors[a.DoctorID] = doctor
		}
		patient, ok := patients[a.PatientID]
		if !ok {
			patient = u.findPatient(ctx, a.PatientID)
			patients[a.PatientID] = patient
		}

		views = append(views, *converter.AppointmentToResponse(a, doctor, patient))
	}
	return views
}

// findDoctor and findPatient feed response assembly only; failures degrade the view
func (u *appointmentUsecase) findDoctor(ctx context.Context, id uuid.UUID) *entity.DoctorProfile {
	doctor, err := u.doctorRepo.FindByUserID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to load doctor %s for response: %+v", id, err)
		return nil
	}
	return doctor
}

func (u *appointmentUsecase) findPatient(ctx context.Context, id uuid.UUID) *entity.PatientProfile {
	patient, err := u.patientRepo.FindByUserID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to load patient %s for response: %+v", id, err)
		return nil
	}
	return patient
}

func (u *appointmentUsecase) normalizePage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = u.cfg.DefaultPageSize
	}
	if size > u.cfg.MaxPageSize {
		size = u.cfg.MaxPageSize
	}
	return page, size
}

func (u *appointmentUsecase) today() time.Time {
	return entity.DateOf(u.cfg.Now(), u.cfg.Location)
}

func (u *appointmentUsecase) finish(span trace.Span, operation string, start time.Time, err error) {
	u.metrics.ObserveOperation(operation, outcomeOf(err), time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func parseDate(s string) (time.Time, error) {
	date, err := entity.ParseDate(s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}
