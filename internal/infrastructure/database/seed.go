package database

import (
	"context"
	"fmt"

	"appointment-scheduler/internal/domain/entity"
	"appointment-scheduler/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedDirectory writes roles, users, and profiles in one transaction.
// Existing roles are kept; users are inserted fresh on every run.
func SeedDirectory(ctx context.Context, db *gorm.DB, log *logrus.Logger, dir service.Directory) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, role := range entity.DefaultRoles() {
			role := role
			if err := tx.Where(entity.Role{ID: role.ID}).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("failed to seed role %s: %w", role.RoleName, err)
			}
		}

		for i := range dir.Patients {
			patient := &dir.Patients[i]
			if err := tx.Omit(clause.Associations).Create(&patient.User).Error; err != nil {
				return fmt.Errorf("failed to seed patient user: %w", err)
			}
			if err := tx.Omit(clause.Associations).Create(patient).Error; err != nil {
				return fmt.Errorf("failed to seed patient profile: %w", err)
			}
		}

		for i := range dir.Doctors {
			doctor := &dir.Doctors[i]
			if err := tx.Omit(clause.Associations).Create(&doctor.User).Error; err != nil {
				return fmt.Errorf("failed to seed doctor user: %w", err)
			}
			if err := tx.Omit(clause.Associations).Create(doctor).Error; err != nil {
				return fmt.Errorf("failed to seed doctor profile: %w", err)
			}
			for j := range doctor.AvailableDays {
				doctor.AvailableDays[j].DoctorID = doctor.UserID
			}
			if len(doctor.AvailableDays) > 0 {
				if err := tx.Create(&doctor.AvailableDays).Error; err != nil {
					return fmt.Errorf("failed to seed doctor availability: %w", err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Infof("Seeded %d doctors and %d patients", len(dir.Doctors), len(dir.Patients))
	return nil
}
