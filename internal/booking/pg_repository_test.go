package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return newPgRepositoryWithDB(mock), mock
}

func TestClaimSlotWins(t *testing.T) {
	repo, mock := newMockRepo(t)
	startsAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE available_slots").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"starts_at"}).AddRow(startsAt))

	got, claimed, err := repo.ClaimSlot(context.Background(), 42)
	if err != nil {
		t.Fatalf("claim slot: %v", err)
	}
	if !claimed {
		t.Fatal("expected claim to win")
	}
	if !got.Equal(startsAt) {
		t.Fatalf("expected start %v, got %v", startsAt, got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClaimSlotAlreadyHeld(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE available_slots").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, claimed, err := repo.ClaimSlot(context.Background(), 42)
	if err != nil {
		t.Fatalf("expected no error on a held slot, got %v", err)
	}
	if claimed {
		t.Fatal("expected claim to lose")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReleaseSlot(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE available_slots SET is_available = true").
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ReleaseSlot(context.Background(), 42); err != nil {
		t.Fatalf("release slot: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func testProfile() NewPatient {
	return NewPatient{
		NationalID:  "52998224725",
		FullName:    "Maria Souza",
		DateOfBirth: time.Date(1984, 3, 15, 0, 0, 0, 0, time.UTC),
		Email:       "maria@example.com",
		Phone:       "+55 11 91234-5678",
		Insurance:   InsurancePrivatePay,
	}
}

func TestResolvePatientExisting(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs("52998224725").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))

	id, err := repo.ResolvePatient(context.Background(), testProfile())
	if err != nil {
		t.Fatalf("resolve patient: %v", err)
	}
	if id != 5 {
		t.Fatalf("expected patient 5, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolvePatientInsertsOnFirstContact(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := testProfile()

	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs(p.NationalID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs(p.NationalID, p.FullName, p.DateOfBirth, p.Email, p.Phone, "PRIVATE_PAY").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))

	id, err := repo.ResolvePatient(context.Background(), p)
	if err != nil {
		t.Fatalf("resolve patient: %v", err)
	}
	if id != 9 {
		t.Fatalf("expected patient 9, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolvePatientLosesInsertRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := testProfile()

	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs(p.NationalID).
		WillReturnError(pgx.ErrNoRows)
	// ON CONFLICT DO NOTHING returns no row when a concurrent insert won.
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs(p.NationalID, p.FullName, p.DateOfBirth, p.Email, p.Phone, "PRIVATE_PAY").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs(p.NationalID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.ResolvePatient(context.Background(), p)
	if err != nil {
		t.Fatalf("resolve patient: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected the winner's id 7, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateAppointment(t *testing.T) {
	repo, mock := newMockRepo(t)
	clinicID := uuid.New()
	startsAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	createdAt := time.Now()

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(5), int64(7), clinicID, int64(42), startsAt, "HEALTH_PLAN", (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), createdAt))

	appt, err := repo.CreateAppointment(context.Background(), Appointment{
		PatientID:       5,
		DoctorID:        7,
		ClinicID:        clinicID,
		SlotID:          42,
		AppointmentTime: startsAt,
		Insurance:       InsuranceHealthPlan,
	})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	if appt.ID != 11 {
		t.Fatalf("expected appointment 11, got %d", appt.ID)
	}
	if appt.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", appt.Status)
	}
	if appt.ConfirmedAt == nil || !appt.ConfirmedAt.Equal(createdAt) {
		t.Fatalf("expected confirmed_at to mirror created_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBookingTransactionCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	clinicID := uuid.New()
	startsAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs("52998224725").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("UPDATE available_slots").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"starts_at"}).AddRow(startsAt))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(5), int64(7), clinicID, int64(42), startsAt, "PRIVATE_PAY", (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), time.Now()))
	mock.ExpectCommit()

	err := repo.WithTx(context.Background(), func(r Repository) error {
		patientID, err := r.ResolvePatient(context.Background(), testProfile())
		if err != nil {
			return err
		}
		when, claimed, err := r.ClaimSlot(context.Background(), 42)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrSlotUnavailable
		}
		_, err = r.CreateAppointment(context.Background(), Appointment{
			PatientID:       patientID,
			DoctorID:        7,
			ClinicID:        clinicID,
			SlotID:          42,
			AppointmentTime: when,
			Insurance:       InsurancePrivatePay,
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBookingTransactionRollsBackOnLostClaim(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM patients").
		WithArgs("52998224725").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("UPDATE available_slots").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(r Repository) error {
		if _, err := r.ResolvePatient(context.Background(), testProfile()); err != nil {
			return err
		}
		_, claimed, err := r.ClaimSlot(context.Background(), 42)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrSlotUnavailable
		}
		return nil
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if recover() == nil {
			t.Fatal("expected the panic to propagate")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("expectations: %v", err)
		}
	}()

	_ = repo.WithTx(context.Background(), func(Repository) error {
		panic("boom")
	})
}

func TestMarkCancelled(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE appointments").
		WithArgs(int64(11), "patient is sick").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.MarkCancelled(context.Background(), 11, "patient is sick")
	if err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}
	if !ok {
		t.Fatal("expected the transition to happen")
	}

	// Already cancelled: the conditional update touches nothing.
	mock.ExpectExec("UPDATE appointments").
		WithArgs(int64(11), "again").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err = repo.MarkCancelled(context.Background(), 11, "again")
	if err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}
	if ok {
		t.Fatal("expected no transition on an already cancelled appointment")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetAppointmentByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT id, patient_id").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetAppointmentByID(context.Background(), 404)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetAppointmentDetail(t *testing.T) {
	repo, mock := newMockRepo(t)
	clinicID := uuid.New()
	startsAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	createdAt := time.Now()
	confirmedAt := createdAt

	cols := []string{
		"id", "patient_id", "doctor_id", "clinic_id", "slot_id",
		"appointment_time", "insurance_type", "insurance_plan_id",
		"status", "created_at", "confirmed_at", "cancelled_at",
		"cancellation_reason",
		"full_name", "national_id", "email", "phone",
		"name", "specialty", "consultation_price",
		"legal_name", "clinic_phone", "address", "city",
	}
	mock.ExpectQuery("SELECT a.id, a.patient_id").
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			int64(11), int64(5), int64(7), clinicID, int64(42),
			startsAt, InsuranceHealthPlan, (*int64)(nil),
			StatusConfirmed, createdAt, &confirmedAt, (*time.Time)(nil),
			(*string)(nil),
			"Maria Souza", "52998224725", "maria@example.com", "+55 11 91234-5678",
			"Dr. Ana Lima", "Cardiology", 250.0,
			"Boa Vista Clinic", "+55 11 4000-1000", "Av. Paulista 1000", "Sao Paulo",
		))

	d, err := repo.GetAppointmentDetail(context.Background(), 11)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if d.ID != 11 || d.PatientID != 5 || d.SlotID != 42 {
		t.Fatalf("unexpected ids: %+v", d.Appointment)
	}
	if d.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", d.Status)
	}
	if d.PatientName != "Maria Souza" || d.DoctorSpecialty != "Cardiology" {
		t.Fatalf("unexpected join fields: %+v", d)
	}
	if d.ClinicName != "Boa Vista Clinic" || d.ConsultationPrice != 250.0 {
		t.Fatalf("unexpected clinic fields: %+v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchAvailability(t *testing.T) {
	repo, mock := newMockRepo(t)
	clinicID := uuid.New()
	first := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	second := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	cols := []string{
		"id", "legal_name", "address", "city", "state", "phone",
		"doctor_id", "name", "specialty", "consultation_price",
		"slot_id", "starts_at",
	}
	mock.ExpectQuery("SELECT c.id, c.legal_name").
		WithArgs("cardio", searchPageSize).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(clinicID, "Boa Vista Clinic", "Av. Paulista 1000", "Sao Paulo", "SP", "+55 11 4000-1000",
				int64(7), "Dr. Ana Lima", "Cardiology", 250.0, int64(42), first).
			AddRow(clinicID, "Boa Vista Clinic", "Av. Paulista 1000", "Sao Paulo", "SP", "+55 11 4000-1000",
				int64(7), "Dr. Ana Lima", "Cardiology", 250.0, int64(43), second))

	result, err := repo.SearchAvailability(context.Background(), "cardio")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result))
	}
	if result[0].SlotID != 42 || !result[0].StartsAt.Equal(first) {
		t.Fatalf("unexpected first row: %+v", result[0])
	}
	if result[1].Specialty != "Cardiology" || result[1].ClinicState != "SP" {
		t.Fatalf("unexpected second row: %+v", result[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchAvailabilityEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)

	cols := []string{
		"id", "legal_name", "address", "city", "state", "phone",
		"doctor_id", "name", "specialty", "consultation_price",
		"slot_id", "starts_at",
	}
	mock.ExpectQuery("SELECT c.id, c.legal_name").
		WithArgs("astrology", searchPageSize).
		WillReturnRows(pgxmock.NewRows(cols))

	result, err := repo.SearchAvailability(context.Background(), "astrology")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected no rows, got %d", len(result))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteStaleSlots(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM available_slots").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repo.DeleteStaleSlots(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("delete stale slots: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	apptID := int64(11)

	mock.ExpectExec("INSERT INTO appointment_events").
		WithArgs("BOOKING_CONFIRMED", &apptID, []byte(`{"slot_id":42}`), (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{
		EventType:     "BOOKING_CONFIRMED",
		AppointmentID: &apptID,
		Payload:       []byte(`{"slot_id":42}`),
	})
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
