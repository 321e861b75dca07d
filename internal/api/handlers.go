package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-reservation-engine/internal/booking"
)

// ReservationService is the slice of the booking engine the HTTP layer
// talks to.
type ReservationService interface {
	Book(ctx context.Context, req booking.BookingRequest) (*booking.Appointment, error)
	Cancel(ctx context.Context, appointmentID int64, reason string) error
	GetAppointment(ctx context.Context, id int64) (*booking.AppointmentDetail, error)
	Search(ctx context.Context, specialty string) ([]booking.Availability, error)
}

var validate = validator.New()

func searchAvailabilityHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialty := r.URL.Query().Get("specialty")

		result, err := svc.Search(r.Context(), specialty)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Results: make([]AvailabilityItem, 0, len(result)),
			Count:   len(result),
		}
		for _, av := range result {
			resp.Results = append(resp.Results, toAvailabilityItem(av))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bookAppointmentHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}

		appt, err := svc.Book(r.Context(), booking.BookingRequest{
			PatientName:     req.PatientName,
			NationalID:      req.NationalID,
			DateOfBirth:     req.DateOfBirth,
			Email:           req.Email,
			Phone:           req.Phone,
			DoctorID:        req.DoctorID,
			SlotID:          req.SlotID,
			ClinicID:        clinicID,
			Insurance:       req.InsuranceType,
			InsurancePlanID: req.InsurancePlanID,
		})
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseAppointmentID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a positive integer")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
	}
}

func cancelAppointmentHandler(svc ReservationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseAppointmentID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a positive integer")
			return
		}

		// the body is optional, cancelling without a reason is allowed
		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.Cancel(r.Context(), id, req.Reason); err != nil {
			handleEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancelAppointmentResponse{
			AppointmentID: id,
			Status:        string(booking.StatusCancelled),
		})
	}
}

func parseAppointmentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}

func handleEngineError(w http.ResponseWriter, err error) {
	var ve *booking.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_failed", ve.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is not available, please pick another one")
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected failure, please retry")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
