package service

import (
	"context"

	"appointment-scheduler/internal/domain/entity"
	"appointment-scheduler/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditService writes appointment audit entries through the writer of the
// running unit of work, so an entry commits exactly when its mutation does.
type AuditService interface {
	LogBook(ctx context.Context, w repository.AuditWriter, actorID uuid.UUID, appointment *entity.Appointment) error
	LogModify(ctx context.Context, w repository.AuditWriter, actorID uuid.UUID, before, after *entity.Appointment) error
	LogCancel(ctx context.Context, w repository.AuditWriter, actorID uuid.UUID, appointment *entity.Appointment) error
}

type auditService struct {
	log *logrus.Logger
}

func NewAuditService(log *logrus.Logger) AuditService {
	return &auditService{log: log}
}

// LogBook logs a create action
func (s *auditService) LogBook(ctx context.Context, w repository.AuditWriter, actorID uuid.UUID, appointment *entity.Appointment) error {
	return s.write(ctx, w, actorID, entity.AuditActionAppointmentBook, appointment.ID, nil, appointmentSnapshot(appointment))
}

// LogModify logs an update action with old and new values
func (s *auditService) LogModify(ctx context.Context, w repository.AuditWriter, actorID uuid.UUID, before, after *entity.Appointment) error {
	return s.write(ctx, w, actorID, entity.AuditActionAppointmentModify, after.ID, appointmentSnapshot(before), appointmentSnapshot(after))
}

// LogCancel logs a delete action with old value
func (s *auditService) LogCancel(ctx context.Context, w repository.AuditWriter, actorID uuid.UUID, appointment *entity.Appointment) error {
	return s.write(ctx, w, actorID, entity.AuditActionAppointmentCancel, appointment.ID, appointmentSnapshot(appointment), nil)
}

func (s *auditService) write(ctx context.Context, w repository.AuditWriter, actorID uuid.UUID, action string, appointmentID uuid.UUID, oldValue, newValue interface{}) error {
	metadata := entity.JSON{
		"entity":    entity.AuditEntityAppointment,
		"entity_id": appointmentID.String(),
		"old_value": oldValue,
		"new_value": newValue,
	}

	actor := actorID
	auditLog := &entity.AuditLog{
		UserID:   &actor,
		Action:   action,
		Metadata: metadata,
	}

	if err := w.AppendAudit(ctx, auditLog); err != nil {
		s.log.Warnf("Failed to create audit log: %+v", err)
		return err
	}

	return nil
}

func appointmentSnapshot(a *entity.Appointment) map[string]interface{} {
	if a == nil {
		return nil
	}
	return map[string]interface{}{
		"doctor_id":  a.DoctorID.String(),
		"patient_id": a.PatientID.String(),
		"date":       entity.FormatDate(a.Date),
	}
}
