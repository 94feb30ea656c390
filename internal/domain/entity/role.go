package entity

// Role represents a user role in the system
type Role struct {
	ID          int    `gorm:"primaryKey" json:"id"`
	RoleName    string `gorm:"type:varchar(50);uniqueIndex;not null" json:"role_name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Relationships
	Users []User `gorm:"foreignKey:RoleID" json:"users,omitempty"`
}

func (Role) TableName() string {
	return "roles"
}

// Role ID constants. ID 1 is reserved for administrators, which this service does not serve.
const (
	RoleIDDoctor  = 2
	RoleIDPatient = 3
)

// RoleNames constants
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// DefaultRoles returns the role rows every deployment needs
func DefaultRoles() []Role {
	return []Role{
		{ID: RoleIDDoctor, RoleName: RoleDoctor, Description: "Doctor accepting appointments"},
		{ID: RoleIDPatient, RoleName: RolePatient, Description: "Patient booking appointments"},
	}
}
