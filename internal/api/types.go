package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-reservation-engine/internal/booking"
)

type BookAppointmentRequest struct {
	PatientName     string `json:"patient_name" validate:"required,min=3"`
	NationalID      string `json:"national_id" validate:"required"`
	DateOfBirth     string `json:"date_of_birth" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone"`
	DoctorID        int64  `json:"doctor_id" validate:"required,gt=0"`
	SlotID          int64  `json:"slot_id" validate:"required,gt=0"`
	ClinicID        string `json:"clinic_id" validate:"required,uuid"`
	InsuranceType   string `json:"insurance_type"`
	InsurancePlanID *int64 `json:"insurance_plan_id"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type CancelAppointmentResponse struct {
	AppointmentID int64  `json:"appointment_id"`
	Status        string `json:"status"`
}

type AppointmentResponse struct {
	ID              int64     `json:"id"`
	PatientID       int64     `json:"patient_id"`
	DoctorID        int64     `json:"doctor_id"`
	ClinicID        uuid.UUID `json:"clinic_id"`
	SlotID          int64     `json:"slot_id"`
	AppointmentTime time.Time `json:"appointment_time"`
	InsuranceType   string    `json:"insurance_type"`
	InsurancePlanID *int64    `json:"insurance_plan_id,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse

	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`

	PatientName       string `json:"patient_name"`
	PatientNationalID string `json:"patient_national_id"`
	PatientEmail      string `json:"patient_email"`
	PatientPhone      string `json:"patient_phone,omitempty"`

	DoctorName        string  `json:"doctor_name"`
	DoctorSpecialty   string  `json:"doctor_specialty"`
	ConsultationPrice float64 `json:"consultation_price"`

	ClinicName    string `json:"clinic_name"`
	ClinicPhone   string `json:"clinic_phone"`
	ClinicAddress string `json:"clinic_address"`
	ClinicCity    string `json:"clinic_city"`
}

type AvailabilityItem struct {
	ClinicID      uuid.UUID `json:"clinic_id"`
	ClinicName    string    `json:"clinic_name"`
	ClinicAddress string    `json:"clinic_address"`
	ClinicCity    string    `json:"clinic_city"`
	ClinicState   string    `json:"clinic_state"`
	ClinicPhone   string    `json:"clinic_phone"`

	DoctorID          int64   `json:"doctor_id"`
	DoctorName        string  `json:"doctor_name"`
	Specialty         string  `json:"specialty"`
	ConsultationPrice float64 `json:"consultation_price"`

	SlotID   int64     `json:"slot_id"`
	StartsAt time.Time `json:"starts_at"`
}

type AvailabilityResponse struct {
	Results []AvailabilityItem `json:"results"`
	Count   int                `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		ClinicID:        a.ClinicID,
		SlotID:          a.SlotID,
		AppointmentTime: a.AppointmentTime,
		InsuranceType:   string(a.Insurance),
		InsurancePlanID: a.InsurancePlanID,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
	}
}

func toAppointmentDetailResponse(d *booking.AppointmentDetail) AppointmentDetailResponse {
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		ConfirmedAt:         d.ConfirmedAt,
		CancelledAt:         d.CancelledAt,
		CancellationReason:  d.CancellationReason,
		PatientName:         d.PatientName,
		PatientNationalID:   d.PatientNationalID,
		PatientEmail:        d.PatientEmail,
		PatientPhone:        d.PatientPhone,
		DoctorName:          d.DoctorName,
		DoctorSpecialty:     d.DoctorSpecialty,
		ConsultationPrice:   d.ConsultationPrice,
		ClinicName:          d.ClinicName,
		ClinicPhone:         d.ClinicPhone,
		ClinicAddress:       d.ClinicAddress,
		ClinicCity:          d.ClinicCity,
	}
}

func toAvailabilityItem(av booking.Availability) AvailabilityItem {
	return AvailabilityItem{
		ClinicID:          av.ClinicID,
		ClinicName:        av.ClinicName,
		ClinicAddress:     av.ClinicAddress,
		ClinicCity:        av.ClinicCity,
		ClinicState:       av.ClinicState,
		ClinicPhone:       av.ClinicPhone,
		DoctorID:          av.DoctorID,
		DoctorName:        av.DoctorName,
		Specialty:         av.Specialty,
		ConsultationPrice: av.ConsultationPrice,
		SlotID:            av.SlotID,
		StartsAt:          av.StartsAt,
	}
}
