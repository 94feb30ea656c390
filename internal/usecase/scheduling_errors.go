package usecase

import "errors"

// ErrorKind classifies scheduling failures for callers
type ErrorKind string

const (
	KindNotFound ErrorKind = "not_found"
	KindInvalid  ErrorKind = "invalid"
	KindConflict ErrorKind = "conflict"
)

// SchedulingError is a typed rejection of a scheduling request.
// Compare with errors.Is against the sentinels below, or use errors.As and Kind.
type SchedulingError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *SchedulingError) Error() string {
	return e.Message
}

var (
	ErrDoctorNotFound      = &SchedulingError{Kind: KindNotFound, Code: "doctor_not_found", Message: "Doctor not found."}
	ErrPatientNotFound     = &SchedulingError{Kind: KindNotFound, Code: "patient_not_found", Message: "User not found."}
	ErrAppointmentNotFound = &SchedulingError{Kind: KindNotFound, Code: "appointment_not_found", Message: "Appointment not found."}
	ErrPastDate            = &SchedulingError{Kind: KindInvalid, Code: "past_date", Message: "Cannot modify or cancel past appointments."}
	ErrDoctorUnavailable   = &SchedulingError{Kind: KindInvalid, Code: "doctor_unavailable", Message: "Doctor is not available on this day."}
	ErrInvalidDate         = &SchedulingError{Kind: KindInvalid, Code: "invalid_date", Message: "Date must be formatted as YYYY-MM-DD."}
	ErrUnsupportedRole     = &SchedulingError{Kind: KindInvalid, Code: "unsupported_role", Message: "Requester role is not supported."}
	ErrAlreadyBooked       = &SchedulingError{Kind: KindConflict, Code: "already_booked", Message: "Appointment already exists for this doctor on this date."}
	ErrCapacityFull        = &SchedulingError{Kind: KindConflict, Code: "capacity_full", Message: "Doctor has reached maximum patient capacity for this date."}
)

// KindOf returns the kind of a scheduling error, or "" for anything else
func KindOf(err error) ErrorKind {
	var se *SchedulingError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// outcomeOf labels an operation result for metrics
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var se *SchedulingError
	if errors.As(err, &se) {
		return se.Code
	}
	return "error"
}
