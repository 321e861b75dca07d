package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const nationalIDLength = 11

const minNameLength = 3

// punctuation commonly typed into national ids
var nationalIDReplacer = strings.NewReplacer(".", "", "-", "", " ", "")

// NormalizeNationalID strips formatting punctuation and checks the result is
// exactly eleven digits. The returned value is the canonical form stored and
// used for lookups.
func NormalizeNationalID(raw string) (string, error) {
	id := nationalIDReplacer.Replace(strings.TrimSpace(raw))
	if len(id) != nationalIDLength {
		return "", invalidField("national_id", fmt.Sprintf("must be %d digits", nationalIDLength))
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", invalidField("national_id", "must contain only digits")
		}
	}
	return id, nil
}

var dobLayouts = []string{"02/01/2006", "2006-01-02"}

// ParseDateOfBirth accepts DD/MM/YYYY and YYYY-MM-DD.
func ParseDateOfBirth(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalidField("date_of_birth", "must be DD/MM/YYYY or YYYY-MM-DD")
}

func placeholderEmail(nationalID string) string {
	return fmt.Sprintf("patient_%s@clinic.local", nationalID)
}

// BookingRequest is the input to Book. Identifier presence and patient
// profile shape are validated here even though the caller layer is expected
// to have checked them already.
type BookingRequest struct {
	PatientName     string
	NationalID      string
	DateOfBirth     string
	Email           string
	Phone           string
	DoctorID        int64
	SlotID          int64
	ClinicID        uuid.UUID
	Insurance       string
	InsurancePlanID *int64
}

func (r BookingRequest) validate() (NewPatient, error) {
	if r.DoctorID <= 0 {
		return NewPatient{}, invalidField("doctor_id", "is required")
	}
	if r.SlotID <= 0 {
		return NewPatient{}, invalidField("slot_id", "is required")
	}
	if r.ClinicID == uuid.Nil {
		return NewPatient{}, invalidField("clinic_id", "is required")
	}

	name := strings.TrimSpace(r.PatientName)
	if len(name) < minNameLength {
		return NewPatient{}, invalidField("patient_name", fmt.Sprintf("must be at least %d characters", minNameLength))
	}

	nationalID, err := NormalizeNationalID(r.NationalID)
	if err != nil {
		return NewPatient{}, err
	}

	dob, err := ParseDateOfBirth(r.DateOfBirth)
	if err != nil {
		return NewPatient{}, err
	}

	email := strings.TrimSpace(r.Email)
	if email == "" {
		email = placeholderEmail(nationalID)
	}

	return NewPatient{
		NationalID:  nationalID,
		FullName:    name,
		DateOfBirth: dob,
		Email:       email,
		Phone:       strings.TrimSpace(r.Phone),
		Insurance:   ParseInsuranceType(r.Insurance),
	}, nil
}
