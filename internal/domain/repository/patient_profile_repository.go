package repository

import (
	"context"

	"appointment-scheduler/internal/domain/entity"

	"github.com/google/uuid"
)

type PatientProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.PatientProfile, error)
}
