package repository

import (
	"context"

	"appointment-scheduler/internal/domain/entity"

	"github.com/google/uuid"
)

// DoctorProfileRepository is the read-only doctor directory.
// FindByUserID returns (nil, nil) for an unknown doctor.
type DoctorProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.DoctorProfile, error)
}
