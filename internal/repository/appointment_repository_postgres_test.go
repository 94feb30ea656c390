package repository

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"appointment-scheduler/internal/domain/entity"
	domainRepo "appointment-scheduler/internal/domain/repository"
	"appointment-scheduler/internal/infrastructure/database"
	"appointment-scheduler/internal/infrastructure/metrics"
	"appointment-scheduler/internal/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testDatabaseURLEnv = "SCHEDULER_TEST_DATABASE_URL"

var errCapacityReached = errors.New("capacity reached")

type postgresFixture struct {
	db       *gorm.DB
	ledger   domainRepo.AppointmentRepository
	doctors  domainRepo.DoctorProfileRepository
	patients domainRepo.PatientProfileRepository
	dir      service.Directory
}

func newPostgresFixture(t *testing.T, capacity, patients int) *postgresFixture {
	t.Helper()

	dsn := os.Getenv(testDatabaseURLEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDatabaseURLEnv)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	migrator, err := database.NewMigrator(dsn, log)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	db, err := database.OpenPostgres(dsn, 20, 5, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	dir := service.Directory{}
	doctorID := uuid.New()
	doctor := entity.DoctorProfile{
		UserID:          doctorID,
		Specialization:  entity.SpecialityDermatology,
		DailyCapacity:   capacity,
		StartTime:       "09:00",
		EndTime:         "17:00",
		ConsultationFee: decimal.NewFromInt(120),
		User:            entity.User{ID: doctorID, RoleID: entity.RoleIDDoctor, Email: doctorID.String() + "@clinic.test", FullName: "Dr. Test"},
	}
	doctor.SetWeekdays(entity.AllDays...)
	dir.Doctors = append(dir.Doctors, doctor)

	for i := 0; i < patients; i++ {
		id := uuid.New()
		dir.Patients = append(dir.Patients, entity.PatientProfile{
			UserID: id,
			User:   entity.User{ID: id, RoleID: entity.RoleIDPatient, Email: id.String() + "@mail.test", FullName: "Patient"},
		})
	}
	require.NoError(t, database.SeedDirectory(context.Background(), db, log, dir))

	t.Cleanup(func() {
		ctx := context.Background()
		db.WithContext(ctx).Where("doctor_id = ?", doctorID).Delete(&entity.Appointment{})
		db.WithContext(ctx).Where("doctor_id = ?", doctorID).Delete(&entity.DoctorAvailableDay{})
		db.WithContext(ctx).Where("user_id = ?", doctorID).Delete(&entity.DoctorProfile{})
		for _, p := range dir.Patients {
			db.WithContext(ctx).Where("user_id = ?", p.UserID).Delete(&entity.PatientProfile{})
			db.WithContext(ctx).Where("id = ?", p.UserID).Delete(&entity.User{})
		}
		db.WithContext(ctx).Where("id = ?", doctorID).Delete(&entity.User{})
	})

	return &postgresFixture{
		db:       db,
		ledger:   NewAppointmentRepository(db, log, metrics.NewSchedulerMetrics(prometheus.NewRegistry()), 3),
		doctors:  NewDoctorProfileRepository(db),
		patients: NewPatientProfileRepository(db),
		dir:      dir,
	}
}

// bookWithinCapacity reproduces the check-then-insert the engine performs under the slot lock
func (f *postgresFixture) bookWithinCapacity(ctx context.Context, doctor entity.DoctorProfile, patientID uuid.UUID, date time.Time) error {
	appointment := &entity.Appointment{DoctorID: doctor.UserID, PatientID: patientID, Date: date}
	return f.ledger.RunInLedger(ctx, []entity.SlotKey{appointment.SlotKey()}, func(ledger domainRepo.AppointmentLedger) error {
		booked, err := ledger.CountByDoctorDate(ctx, doctor.UserID, date)
		if err != nil {
			return err
		}
		if !doctor.HasCapacityFor(booked) {
			return errCapacityReached
		}
		return ledger.Insert(ctx, appointment)
	})
}

func TestPostgresLedger_ConcurrentBookingsRespectCapacity(t *testing.T) {
	const capacity, patients = 3, 12
	f := newPostgresFixture(t, capacity, patients)
	ctx := context.Background()

	doctor, err := f.doctors.FindByUserID(ctx, f.dir.Doctors[0].UserID)
	require.NoError(t, err)
	require.NotNil(t, doctor)
	assert.Len(t, doctor.AvailableDays, len(entity.AllDays))

	date := time.Date(2099, time.March, 2, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make(chan error, patients)
	for _, p := range f.dir.Patients {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()
			results <- f.bookWithinCapacity(ctx, *doctor, patientID, date)
		}(p.UserID)
	}
	wg.Wait()
	close(results)

	var ok, full int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errCapacityReached):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, capacity, ok)
	assert.Equal(t, patients-capacity, full)

	total, err := f.ledger.CountByDoctorFrom(ctx, doctor.UserID, date)
	require.NoError(t, err)
	assert.Equal(t, int64(capacity), total)
}

func TestPostgresLedger_ConstraintsAndMutations(t *testing.T) {
	f := newPostgresFixture(t, 10, 1)
	ctx := context.Background()
	doctorID := f.dir.Doctors[0].UserID
	patientID := f.dir.Patients[0].UserID
	date := time.Date(2099, time.March, 3, 0, 0, 0, 0, time.UTC)
	next := date.AddDate(0, 0, 1)

	appointment := &entity.Appointment{DoctorID: doctorID, PatientID: patientID, Date: date}
	require.NoError(t, f.ledger.RunInLedger(ctx, []entity.SlotKey{appointment.SlotKey()}, func(ledger domainRepo.AppointmentLedger) error {
		return ledger.Insert(ctx, appointment)
	}))

	stored, err := f.ledger.FindByID(ctx, appointment.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, entity.FormatDate(date), entity.FormatDate(stored.Date))

	err = f.ledger.RunInLedger(ctx, []entity.SlotKey{appointment.SlotKey()}, func(ledger domainRepo.AppointmentLedger) error {
		return ledger.Insert(ctx, &entity.Appointment{DoctorID: doctorID, PatientID: patientID, Date: date})
	})
	assert.ErrorIs(t, err, domainRepo.ErrDuplicateAppointment)

	err = f.ledger.RunInLedger(ctx, []entity.SlotKey{appointment.SlotKey()}, func(ledger domainRepo.AppointmentLedger) error {
		return ledger.Insert(ctx, &entity.Appointment{DoctorID: doctorID, PatientID: uuid.New(), Date: date})
	})
	assert.ErrorIs(t, err, domainRepo.ErrUnknownParty)

	keys := []entity.SlotKey{{DoctorID: doctorID, Date: date}, {DoctorID: doctorID, Date: next}}
	require.NoError(t, f.ledger.RunInLedger(ctx, keys, func(ledger domainRepo.AppointmentLedger) error {
		return ledger.UpdateDate(ctx, appointment.ID, next)
	}))

	listed, err := f.ledger.ListByPatientFrom(ctx, patientID, date, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, entity.FormatDate(next), entity.FormatDate(listed[0].Date))

	rolledBack := errors.New("rollback")
	err = f.ledger.RunInLedger(ctx, keys[1:], func(ledger domainRepo.AppointmentLedger) error {
		if err := ledger.Delete(ctx, appointment.ID); err != nil {
			return err
		}
		return rolledBack
	})
	assert.ErrorIs(t, err, rolledBack)

	stored, err = f.ledger.FindByID(ctx, appointment.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored, "delete must roll back with the unit of work")

	require.NoError(t, f.ledger.RunInLedger(ctx, keys[1:], func(ledger domainRepo.AppointmentLedger) error {
		return ledger.Delete(ctx, appointment.ID)
	}))
	stored, err = f.ledger.FindByID(ctx, appointment.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	patient, err := f.patients.FindByUserID(ctx, patientID)
	require.NoError(t, err)
	require.NotNil(t, patient)
	assert.Equal(t, patientID, patient.User.ID)
}
