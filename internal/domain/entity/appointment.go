package entity

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Appointment is one ledger row: a patient holding a doctor's daily slot bucket.
// There is no status column; a cancelled appointment is deleted.
type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DoctorID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_appointments_doctor_patient_date,priority:1;index:idx_appointments_doctor_date,priority:1" json:"doctor_id"`
	PatientID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_appointments_doctor_patient_date,priority:2;index" json:"patient_id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:uq_appointments_doctor_patient_date,priority:3;index:idx_appointments_doctor_date,priority:2" json:"date"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// SlotKey returns the (doctor, date) bucket the appointment occupies
func (a *Appointment) SlotKey() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.Date}
}

// IsPast reports whether the appointment date is strictly before today
func (a *Appointment) IsPast(today time.Time) bool {
	return a.Date.Before(today)
}

// SlotKey identifies a doctor's daily slot bucket.
// All ledger mutations touching the same key are serialized.
type SlotKey struct {
	DoctorID uuid.UUID
	Date     time.Time
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s", k.DoctorID, FormatDate(k.Date))
}

// SortedSlotKeys deduplicates keys and orders them canonically
func SortedSlotKeys(keys []SlotKey) []SlotKey {
	seen := make(map[string]struct{}, len(keys))
	out := make([]SlotKey, 0, len(keys))
	for _, k := range keys {
		s := k.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
