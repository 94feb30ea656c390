package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request DTOs

type BookAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" validate:"required"`
	Date     string    `json:"date" validate:"required"`
}

type ModifyAppointmentRequest struct {
	Date string `json:"date" validate:"required"`
}

// Response DTOs

type AppointmentResponse struct {
	ID      uuid.UUID                  `json:"id"`
	Date    string                     `json:"date"`
	Patient AppointmentPatientResponse `json:"patient"`
	Doctor  AppointmentDoctorResponse  `json:"doctor"`
}

type AppointmentPatientResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name,omitempty"`
	Email    string    `json:"email,omitempty"`
}

type AppointmentDoctorResponse struct {
	ID              uuid.UUID        `json:"id"`
	FullName        string           `json:"full_name,omitempty"`
	Email           string           `json:"email,omitempty"`
	Specialization  string           `json:"specialization,omitempty"`
	City            string           `json:"city,omitempty"`
	Street          string           `json:"street,omitempty"`
	StartTime       string           `json:"start_time,omitempty"`
	EndTime         string           `json:"end_time,omitempty"`
	ConsultationFee *decimal.Decimal `json:"consultation_fee,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Page         int                   `json:"page"`
	Size         int                   `json:"size"`
	Total        int64                 `json:"total"`
}

type CancelAppointmentResponse struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
}
