package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

type InsuranceType string

const (
	InsurancePrivatePay InsuranceType = "PRIVATE_PAY"
	InsuranceHealthPlan InsuranceType = "HEALTH_PLAN"
)

// ParseInsuranceType normalizes free text into one of the two insurance
// categories. Anything unrecognized, including empty input, falls back to
// private pay rather than failing the booking.
func ParseInsuranceType(s string) InsuranceType {
	switch InsuranceType(strings.ToUpper(strings.TrimSpace(s))) {
	case InsuranceHealthPlan:
		return InsuranceHealthPlan
	default:
		return InsurancePrivatePay
	}
}

type Patient struct {
	ID          int64
	NationalID  string
	FullName    string
	DateOfBirth time.Time
	Email       string
	Phone       string
	Insurance   InsuranceType
	CreatedAt   time.Time
}

// NewPatient carries the profile fields for a patient that may not exist
// yet. The resolver ignores every field except NationalID when a row with
// that id already exists.
type NewPatient struct {
	NationalID  string
	FullName    string
	DateOfBirth time.Time
	Email       string
	Phone       string
	Insurance   InsuranceType
}

type Doctor struct {
	ID                int64
	ClinicID          uuid.UUID
	Name              string
	Specialty         string
	ConsultationPrice float64
}

type Clinic struct {
	ID        uuid.UUID
	LegalName string
	Address   string
	City      string
	State     string
	Phone     string
}

type Slot struct {
	ID        int64
	DoctorID  int64
	ClinicID  uuid.UUID
	StartsAt  time.Time
	Available bool
}

type Appointment struct {
	ID                 int64
	PatientID          int64
	DoctorID           int64
	ClinicID           uuid.UUID
	SlotID             int64
	AppointmentTime    time.Time
	Insurance          InsuranceType
	InsurancePlanID    *int64
	Status             AppointmentStatus
	CreatedAt          time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason *string
}

// AppointmentDetail is the read projection joining the appointment with the
// patient, doctor, and clinic it references.
type AppointmentDetail struct {
	Appointment

	PatientName       string
	PatientNationalID string
	PatientEmail      string
	PatientPhone      string

	DoctorName        string
	DoctorSpecialty   string
	ConsultationPrice float64

	ClinicName    string
	ClinicPhone   string
	ClinicAddress string
	ClinicCity    string
}

// Availability is one row of the specialty search: an open slot together
// with the doctor and clinic offering it.
type Availability struct {
	ClinicID      uuid.UUID
	ClinicName    string
	ClinicAddress string
	ClinicCity    string
	ClinicState   string
	ClinicPhone   string

	DoctorID          int64
	DoctorName        string
	Specialty         string
	ConsultationPrice float64

	SlotID   int64
	StartsAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}
