package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Speciality is a doctor's medical field
type Speciality string

const (
	SpecialityCardiology     Speciality = "CARDIOLOGY"
	SpecialityDermatology    Speciality = "DERMATOLOGY"
	SpecialityNeurology      Speciality = "NEUROLOGY"
	SpecialityOrthopedics    Speciality = "ORTHOPEDICS"
	SpecialityOphthalmology  Speciality = "OPHTHALMOLOGY"
	SpecialityOtolaryngology Speciality = "OTOLARYNGOLOGY"
)

var AllSpecialities = []Speciality{
	SpecialityCardiology,
	SpecialityDermatology,
	SpecialityNeurology,
	SpecialityOrthopedics,
	SpecialityOphthalmology,
	SpecialityOtolaryngology,
}

// ClockLayout formats working hours
const ClockLayout = "15:04"

// DoctorProfile holds the scheduling policy of a doctor.
// The engine treats it as an immutable snapshot for the length of one request.
type DoctorProfile struct {
	UserID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"user_id"`
	Specialization  Speciality      `gorm:"type:varchar(30);not null;index" json:"specialization"`
	City            string          `gorm:"type:varchar(100)" json:"city,omitempty"`
	Street          string          `gorm:"type:varchar(255)" json:"street,omitempty"`
	Info            string          `gorm:"type:text" json:"info,omitempty"`
	DailyCapacity   int             `gorm:"not null" json:"daily_capacity"`
	StartTime       string          `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime         string          `gorm:"type:varchar(5);not null" json:"end_time"`
	ConsultationFee decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"consultation_fee"`

	// Relationships
	User          User                 `gorm:"foreignKey:UserID" json:"user"`
	AvailableDays []DoctorAvailableDay `gorm:"foreignKey:DoctorID" json:"available_days"`
}

func (DoctorProfile) TableName() string {
	return "doctor_profiles"
}

// DoctorAvailableDay is one member of a doctor's weekday set
type DoctorAvailableDay struct {
	DoctorID uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Day      Day       `gorm:"type:varchar(9);primaryKey" json:"day"`
}

func (DoctorAvailableDay) TableName() string {
	return "doctor_available_days"
}

// IsAvailableOn checks the weekday of date against the availability set
func (d *DoctorProfile) IsAvailableOn(date time.Time) bool {
	day := DayOf(date)
	for _, available := range d.AvailableDays {
		if available.Day == day {
			return true
		}
	}
	return false
}

// HasCapacityFor reports whether one more appointment fits next to booked ones
func (d *DoctorProfile) HasCapacityFor(booked int64) bool {
	return booked+1 <= int64(d.DailyCapacity)
}

// Weekdays returns the availability set in week order
func (d *DoctorProfile) Weekdays() []Day {
	days := make([]Day, 0, len(d.AvailableDays))
	for _, day := range AllDays {
		for _, available := range d.AvailableDays {
			if available.Day == day {
				days = append(days, day)
				break
			}
		}
	}
	return days
}

// SetWeekdays replaces the availability set, dropping duplicates
func (d *DoctorProfile) SetWeekdays(days ...Day) {
	seen := make(map[Day]struct{}, len(days))
	d.AvailableDays = make([]DoctorAvailableDay, 0, len(days))
	for _, day := range days {
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		d.AvailableDays = append(d.AvailableDays, DoctorAvailableDay{DoctorID: d.UserID, Day: day})
	}
}
