package entity

import "github.com/google/uuid"

// PatientProfile represents patient-specific profile data
type PatientProfile struct {
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	PhoneNumber string    `gorm:"type:varchar(30)" json:"phone_number,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user"`
}

func (PatientProfile) TableName() string {
	return "patient_profiles"
}
