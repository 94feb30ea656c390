package memory

import (
	"context"
	"sync"

	"appointment-scheduler/internal/domain/entity"
	domainRepo "appointment-scheduler/internal/domain/repository"

	"github.com/google/uuid"
)

// DoctorDirectory serves doctor profiles from memory
type DoctorDirectory struct {
	mu      sync.RWMutex
	doctors map[uuid.UUID]entity.DoctorProfile
}

var _ domainRepo.DoctorProfileRepository = (*DoctorDirectory)(nil)

func NewDoctorDirectory(doctors ...entity.DoctorProfile) *DoctorDirectory {
	d := &DoctorDirectory{doctors: make(map[uuid.UUID]entity.DoctorProfile, len(doctors))}
	for _, doctor := range doctors {
		d.Put(doctor)
	}
	return d
}

// Put adds or replaces a doctor
func (d *DoctorDirectory) Put(doctor entity.DoctorProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()

	days := make([]entity.DoctorAvailableDay, len(doctor.AvailableDays))
	copy(days, doctor.AvailableDays)
	doctor.AvailableDays = days
	d.doctors[doctor.UserID] = doctor
}

func (d *DoctorDirectory) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.DoctorProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doctor, ok := d.doctors[userID]
	if !ok {
		return nil, nil
	}
	days := make([]entity.DoctorAvailableDay, len(doctor.AvailableDays))
	copy(days, doctor.AvailableDays)
	doctor.AvailableDays = days
	return &doctor, nil
}

// PatientDirectory serves patient profiles from memory
type PatientDirectory struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]entity.PatientProfile
}

var _ domainRepo.PatientProfileRepository = (*PatientDirectory)(nil)

func NewPatientDirectory(patients ...entity.PatientProfile) *PatientDirectory {
	d := &PatientDirectory{patients: make(map[uuid.UUID]entity.PatientProfile, len(patients))}
	for _, patient := range patients {
		d.Put(patient)
	}
	return d
}

func (d *PatientDirectory) Put(patient entity.PatientProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patients[patient.UserID] = patient
}

func (d *PatientDirectory) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.PatientProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	patient, ok := d.patients[userID]
	if !ok {
		return nil, nil
	}
	return &patient, nil
}
