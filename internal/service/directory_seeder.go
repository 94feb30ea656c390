package service

import (
	"fmt"
	"strings"

	"appointment-scheduler/internal/domain/entity"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seed profile for development directories
const (
	seedStartTime   = "09:00"
	seedEndTime     = "17:00"
	seedMinCapacity = 5
	seedMaxCapacity = 50
	seedMinFee      = 100
	seedMaxFee      = 500
)

// Directory is a generated set of doctors and patients
type Directory struct {
	Doctors  []entity.DoctorProfile
	Patients []entity.PatientProfile
}

// DirectorySeeder generates fake doctors and patients
type DirectorySeeder struct {
	faker *gofakeit.Faker
}

// NewDirectorySeeder uses a random source when seed is 0
func NewDirectorySeeder(seed uint64) *DirectorySeeder {
	return &DirectorySeeder{faker: gofakeit.New(seed)}
}

// Generate builds doctors available every day from 09:00 to 17:00
func (s *DirectorySeeder) Generate(doctors, patients int) Directory {
	dir := Directory{
		Doctors:  make([]entity.DoctorProfile, 0, doctors),
		Patients: make([]entity.PatientProfile, 0, patients),
	}

	for i := 0; i < patients; i++ {
		id := uuid.New()
		dir.Patients = append(dir.Patients, entity.PatientProfile{
			UserID:      id,
			PhoneNumber: s.faker.Phone(),
			User: entity.User{
				ID:       id,
				RoleID:   entity.RoleIDPatient,
				Email:    s.email("patient", i),
				FullName: s.faker.Name(),
			},
		})
	}

	for i := 0; i < doctors; i++ {
		id := uuid.New()
		speciality := entity.AllSpecialities[s.faker.Number(0, len(entity.AllSpecialities)-1)]
		doctor := entity.DoctorProfile{
			UserID:          id,
			Specialization:  speciality,
			City:            s.faker.City(),
			Street:          s.faker.Street(),
			Info:            fmt.Sprintf("%s practice at %s", strings.ToLower(string(speciality)), s.faker.Company()),
			DailyCapacity:   s.faker.Number(seedMinCapacity, seedMaxCapacity),
			StartTime:       seedStartTime,
			EndTime:         seedEndTime,
			ConsultationFee: decimal.NewFromInt(int64(s.faker.Number(seedMinFee, seedMaxFee))),
			User: entity.User{
				ID:       id,
				RoleID:   entity.RoleIDDoctor,
				Email:    s.email("doctor", i),
				FullName: "Dr. " + s.faker.Name(),
			},
		}
		doctor.SetWeekdays(entity.AllDays...)
		dir.Doctors = append(dir.Doctors, doctor)
	}

	return dir
}

// email keeps faker addresses unique across one run
func (s *DirectorySeeder) email(kind string, i int) string {
	local := strings.SplitN(s.faker.Email(), "@", 2)[0]
	return fmt.Sprintf("%s.%s.%d@example.com", local, kind, i)
}
