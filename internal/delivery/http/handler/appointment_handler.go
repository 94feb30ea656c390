package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"appointment-scheduler/internal/delivery/dto"
	"appointment-scheduler/internal/delivery/http/middleware"
	"appointment-scheduler/internal/domain/repository"
	"appointment-scheduler/internal/usecase"
	"appointment-scheduler/pkg/response"
	"appointment-scheduler/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

var errInvalidRequest = response.ErrorDetail{Kind: string(usecase.KindInvalid), Code: "invalid_request"}

type AppointmentHandler struct {
	appointmentUsecase usecase.AppointmentUsecase
	validator          *validator.CustomValidator
	log                *logrus.Logger
}

func NewAppointmentHandler(appointmentUsecase usecase.AppointmentUsecase, validator *validator.CustomValidator, log *logrus.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		appointmentUsecase: appointmentUsecase,
		validator:          validator,
		log:                log,
	}
}

func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		h.writeError(w, usecase.ErrUnsupportedRole)
		return
	}

	page, err := queryInt(r, "page", 0)
	if err != nil {
		response.BadRequest(w, "page must be an integer", errInvalidRequest)
		return
	}
	size, err := queryInt(r, "size", 0)
	if err != nil {
		response.BadRequest(w, "size must be an integer", errInvalidRequest)
		return
	}

	list, err := h.appointmentUsecase.ListAppointments(r.Context(), requester, page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Appointments retrieved successfully", list.Appointments, response.NewMeta(list.Page, list.Size, list.Total))
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		h.writeError(w, usecase.ErrUnsupportedRole)
		return
	}

	var req dto.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", errInvalidRequest)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.appointmentUsecase.BookAppointment(r.Context(), requester.ID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, http.StatusCreated, "Appointment booked successfully", appointment)
}

func (h *AppointmentHandler) ModifyAppointment(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		h.writeError(w, usecase.ErrUnsupportedRole)
		return
	}

	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.NotFound(w, usecase.ErrAppointmentNotFound.Message)
		return
	}

	var req dto.ModifyAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", errInvalidRequest)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.appointmentUsecase.ModifyAppointment(r.Context(), requester, appointmentID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Appointment updated successfully", appointment)
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.RequesterFromContext(r.Context())
	if !ok {
		h.writeError(w, usecase.ErrUnsupportedRole)
		return
	}

	appointmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.NotFound(w, usecase.ErrAppointmentNotFound.Message)
		return
	}

	result, err := h.appointmentUsecase.CancelAppointment(r.Context(), requester, appointmentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, http.StatusOK, result.Message, result)
}

// writeError maps engine failures onto HTTP statuses
func (h *AppointmentHandler) writeError(w http.ResponseWriter, err error) {
	var se *usecase.SchedulingError
	if errors.As(err, &se) {
		detail := response.ErrorDetail{Kind: string(se.Kind), Code: se.Code}
		switch se.Kind {
		case usecase.KindNotFound:
			response.Error(w, http.StatusNotFound, se.Message, detail)
		case usecase.KindConflict:
			response.Conflict(w, se.Message, detail)
		default:
			response.BadRequest(w, se.Message, detail)
		}
		return
	}

	if errors.Is(err, repository.ErrLedgerContention) {
		response.ServiceUnavailable(w, "Appointment ledger is busy, please retry")
		return
	}

	h.log.Errorf("Appointment request failed: %+v", err)
	response.InternalServerError(w, "Failed to process appointment request")
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
