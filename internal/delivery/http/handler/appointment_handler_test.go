package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"appointment-scheduler/internal/delivery/dto"
	"appointment-scheduler/internal/delivery/http/middleware"
	"appointment-scheduler/internal/domain/entity"
	"appointment-scheduler/internal/domain/repository"
	"appointment-scheduler/internal/usecase"
	"appointment-scheduler/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsecase struct {
	listFn   func(requester entity.Requester, page, size int) (*dto.AppointmentListResponse, error)
	bookFn   func(patientID uuid.UUID, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
	modifyFn func(requester entity.Requester, id uuid.UUID, req *dto.ModifyAppointmentRequest) (*dto.AppointmentResponse, error)
	cancelFn func(requester entity.Requester, id uuid.UUID) (*dto.CancelAppointmentResponse, error)
}

func (s *stubUsecase) ListAppointments(ctx context.Context, requester entity.Requester, page, size int) (*dto.AppointmentListResponse, error) {
	return s.listFn(requester, page, size)
}

func (s *stubUsecase) BookAppointment(ctx context.Context, patientID uuid.UUID, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
	return s.bookFn(patientID, req)
}

func (s *stubUsecase) ModifyAppointment(ctx context.Context, requester entity.Requester, id uuid.UUID, req *dto.ModifyAppointmentRequest) (*dto.AppointmentResponse, error) {
	return s.modifyFn(requester, id, req)
}

func (s *stubUsecase) CancelAppointment(ctx context.Context, requester entity.Requester, id uuid.UUID) (*dto.CancelAppointmentResponse, error) {
	return s.cancelFn(requester, id)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Meta    *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func newHandler(uc usecase.AppointmentUsecase) *AppointmentHandler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewAppointmentHandler(uc, validator.NewValidator(), log)
}

func serve(t *testing.T, h http.HandlerFunc, method, target, body string, requester *entity.Requester, vars map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if requester != nil {
		roleID := entity.RoleIDPatient
		if requester.Role == entity.RequesterDoctor {
			roleID = entity.RoleIDDoctor
		}
		req = req.WithContext(middleware.WithIdentity(req.Context(), requester.ID, roleID))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}

	rec := httptest.NewRecorder()
	h(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestBookAppointmentSuccess(t *testing.T) {
	patient := entity.NewPatientRequester(uuid.New())
	doctorID := uuid.New()

	uc := &stubUsecase{bookFn: func(patientID uuid.UUID, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
		assert.Equal(t, patient.ID, patientID)
		assert.Equal(t, doctorID, req.DoctorID)
		assert.Equal(t, "2025-01-06", req.Date)
		return &dto.AppointmentResponse{ID: uuid.New(), Date: req.Date}, nil
	}}

	body := fmt.Sprintf(`{"doctor_id":%q,"date":"2025-01-06"}`, doctorID)
	rec, env := serve(t, newHandler(uc).BookAppointment, http.MethodPost, "/api/v1/appointments", body, &patient, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
}

func TestBookAppointmentRejectsMalformedBodies(t *testing.T) {
	patient := entity.NewPatientRequester(uuid.New())
	uc := &stubUsecase{bookFn: func(uuid.UUID, *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
		t.Fatal("usecase must not run")
		return nil, nil
	}}
	h := newHandler(uc)

	for name, body := range map[string]string{
		"not json":       `{`,
		"bad doctor id":  `{"doctor_id":"nope","date":"2025-01-06"}`,
		"missing fields": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, env := serve(t, h.BookAppointment, http.MethodPost, "/api/v1/appointments", body, &patient, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"doctor not found", usecase.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{"appointment not found", usecase.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
		{"past date", usecase.ErrPastDate, http.StatusBadRequest, "past_date"},
		{"invalid date", usecase.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
		{"unavailable", usecase.ErrDoctorUnavailable, http.StatusBadRequest, "doctor_unavailable"},
		{"already booked", usecase.ErrAlreadyBooked, http.StatusConflict, "already_booked"},
		{"capacity full", usecase.ErrCapacityFull, http.StatusConflict, "capacity_full"},
		{"wrapped conflict", fmt.Errorf("book: %w", usecase.ErrCapacityFull), http.StatusConflict, "capacity_full"},
		{"contention", fmt.Errorf("modify: %w", repository.ErrLedgerContention), http.StatusServiceUnavailable, ""},
		{"unexpected", errors.New("db down"), http.StatusInternalServerError, ""},
	}

	patient := entity.NewPatientRequester(uuid.New())
	id := uuid.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &stubUsecase{cancelFn: func(entity.Requester, uuid.UUID) (*dto.CancelAppointmentResponse, error) {
				return nil, tt.err
			}}

			rec, env := serve(t, newHandler(uc).CancelAppointment, http.MethodDelete, "/api/v1/appointments/"+id.String(), "", &patient, map[string]string{"id": id.String()})
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)

			if tt.code != "" {
				var detail struct {
					Code string `json:"code"`
				}
				require.NoError(t, json.Unmarshal(env.Error, &detail))
				assert.Equal(t, tt.code, detail.Code)
			}
		})
	}
}

func TestModifyAppointmentWithMalformedIDIsNotFound(t *testing.T) {
	doctor := entity.NewDoctorRequester(uuid.New())
	uc := &stubUsecase{modifyFn: func(entity.Requester, uuid.UUID, *dto.ModifyAppointmentRequest) (*dto.AppointmentResponse, error) {
		t.Fatal("usecase must not run")
		return nil, nil
	}}

	rec, _ := serve(t, newHandler(uc).ModifyAppointment, http.MethodPatch, "/api/v1/appointments/xyz", `{"date":"2025-01-06"}`, &doctor, map[string]string{"id": "xyz"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModifyAppointmentPassesRequester(t *testing.T) {
	doctor := entity.NewDoctorRequester(uuid.New())
	id := uuid.New()
	uc := &stubUsecase{modifyFn: func(requester entity.Requester, appointmentID uuid.UUID, req *dto.ModifyAppointmentRequest) (*dto.AppointmentResponse, error) {
		assert.Equal(t, doctor, requester)
		assert.Equal(t, id, appointmentID)
		return &dto.AppointmentResponse{ID: appointmentID, Date: req.Date}, nil
	}}

	rec, env := serve(t, newHandler(uc).ModifyAppointment, http.MethodPatch, "/", `{"date":"2025-01-07"}`, &doctor, map[string]string{"id": id.String()})
	assert.Equal(t, http.StatusOK, rec.Code)

	var got dto.AppointmentResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "2025-01-07", got.Date)
}

func TestListAppointmentsParsesPaging(t *testing.T) {
	patient := entity.NewPatientRequester(uuid.New())
	uc := &stubUsecase{listFn: func(requester entity.Requester, page, size int) (*dto.AppointmentListResponse, error) {
		assert.Equal(t, 2, page)
		assert.Equal(t, 5, size)
		return &dto.AppointmentListResponse{Appointments: []dto.AppointmentResponse{}, Page: page, Size: size, Total: 11}, nil
	}}

	rec, env := serve(t, newHandler(uc).ListAppointments, http.MethodGet, "/api/v1/appointments?page=2&size=5", "", &patient, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.TotalPages)
	assert.Equal(t, int64(11), env.Meta.Total)
}

func TestListAppointmentsRejectsNonNumericPaging(t *testing.T) {
	patient := entity.NewPatientRequester(uuid.New())
	rec, _ := serve(t, newHandler(&stubUsecase{}).ListAppointments, http.MethodGet, "/api/v1/appointments?page=first", "", &patient, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonymousRequesterIsRejected(t *testing.T) {
	rec, env := serve(t, newHandler(&stubUsecase{}).ListAppointments, http.MethodGet, "/api/v1/appointments", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, usecase.ErrUnsupportedRole.Message, env.Message)
}
