package converter

import (
	"appointment-scheduler/internal/delivery/dto"
	"appointment-scheduler/internal/domain/entity"
)

// AppointmentToResponse joins a ledger row with its doctor and patient snapshots.
// Missing snapshots leave only the party id in the view.
func AppointmentToResponse(appointment *entity.Appointment, doctor *entity.DoctorProfile, patient *entity.PatientProfile) *dto.AppointmentResponse {
	if appointment == nil {
		return nil
	}

	return &dto.AppointmentResponse{
		ID:      appointment.ID,
		Date:    entity.FormatDate(appointment.Date),
		Patient: PatientToAppointmentParty(appointment, patient),
		Doctor:  DoctorToAppointmentParty(appointment, doctor),
	}
}

func PatientToAppointmentParty(appointment *entity.Appointment, patient *entity.PatientProfile) dto.AppointmentPatientResponse {
	party := dto.AppointmentPatientResponse{ID: appointment.PatientID}
	if patient != nil {
		party.FullName = patient.User.FullName
		party.Email = patient.User.Email
	}
	return party
}

func DoctorToAppointmentParty(appointment *entity.Appointment, doctor *entity.DoctorProfile) dto.AppointmentDoctorResponse {
	party := dto.AppointmentDoctorResponse{ID: appointment.DoctorID}
	if doctor != nil {
		fee := doctor.ConsultationFee
		party.FullName = doctor.User.FullName
		party.Email = doctor.User.Email
		party.Specialization = string(doctor.Specialization)
		party.City = doctor.City
		party.Street = doctor.Street
		party.StartTime = doctor.StartTime
		party.EndTime = doctor.EndTime
		party.ConsultationFee = &fee
	}
	return party
}
