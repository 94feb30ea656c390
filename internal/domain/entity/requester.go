package entity

import "github.com/google/uuid"

// RequesterRole tags which party a caller acts as
type RequesterRole string

const (
	RequesterPatient RequesterRole = "patient"
	RequesterDoctor  RequesterRole = "doctor"
)

// Requester is the authenticated caller as supplied by the auth layer
type Requester struct {
	ID   uuid.UUID
	Role RequesterRole
}

func NewPatientRequester(id uuid.UUID) Requester {
	return Requester{ID: id, Role: RequesterPatient}
}

func NewDoctorRequester(id uuid.UUID) Requester {
	return Requester{ID: id, Role: RequesterDoctor}
}

// RequesterFromRoleID maps a token role id to a requester
func RequesterFromRoleID(id uuid.UUID, roleID int) (Requester, bool) {
	switch roleID {
	case RoleIDPatient:
		return NewPatientRequester(id), true
	case RoleIDDoctor:
		return NewDoctorRequester(id), true
	default:
		return Requester{}, false
	}
}

// Owns reports whether the requester is the appointment's patient or doctor
func (r Requester) Owns(a *Appointment) bool {
	if a == nil {
		return false
	}
	switch r.Role {
	case RequesterPatient:
		return a.PatientID == r.ID
	case RequesterDoctor:
		return a.DoctorID == r.ID
	default:
		return false
	}
}
