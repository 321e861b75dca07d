package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const searchPageSize = 20

// querier is the subset of pgx that repository methods run against. It is
// satisfied by *pgxpool.Pool, pgx.Tx, and the pgxmock pool used in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type database interface {
	querier
	beginner
}

type PgRepository struct {
	q querier
	// db is nil when the repository is scoped to an open transaction.
	db beginner
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{q: pool, db: pool}
}

func newPgRepositoryWithDB(db database) *PgRepository {
	return &PgRepository{q: db, db: db}
}

// WithTx opens a transaction and hands fn a repository bound to it. Nested
// calls reuse the already-open transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&PgRepository{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ClinicID,
		&a.SlotID,
		&a.AppointmentTime,
		&a.Insurance,
		&a.InsurancePlanID,
		&a.Status,
		&a.CreatedAt,
		&a.ConfirmedAt,
		&a.CancelledAt,
		&a.CancellationReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail

	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.DoctorID,
		&d.ClinicID,
		&d.SlotID,
		&d.AppointmentTime,
		&d.Insurance,
		&d.InsurancePlanID,
		&d.Status,
		&d.CreatedAt,
		&d.ConfirmedAt,
		&d.CancelledAt,
		&d.CancellationReason,
		&d.PatientName,
		&d.PatientNationalID,
		&d.PatientEmail,
		&d.PatientPhone,
		&d.DoctorName,
		&d.DoctorSpecialty,
		&d.ConsultationPrice,
		&d.ClinicName,
		&d.ClinicPhone,
		&d.ClinicAddress,
		&d.ClinicCity,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &d, nil
}

// Interface methods

func (r *PgRepository) ResolvePatient(ctx context.Context, p NewPatient) (int64, error) {
	var id int64

	err := r.q.QueryRow(ctx, `
		SELECT id FROM patients WHERE national_id = $1
	`, p.NationalID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("lookup patient: %w", err)
	}

	err = r.q.QueryRow(ctx, `
		INSERT INTO patients (national_id, full_name, date_of_birth, email, phone, insurance_type)
		VALUES ($1, $2, $3, $4, $5, $6::insurance_type)
		ON CONFLICT (national_id) DO NOTHING
		RETURNING id
	`, p.NationalID, p.FullName, p.DateOfBirth, p.Email, p.Phone, string(p.Insurance)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("insert patient: %w", err)
	}

	// Lost a concurrent insert on the same national id; the winner's row is
	// committed and visible by now.
	err = r.q.QueryRow(ctx, `
		SELECT id FROM patients WHERE national_id = $1
	`, p.NationalID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("re-lookup patient: %w", err)
	}
	return id, nil
}

func (r *PgRepository) ClaimSlot(ctx context.Context, slotID int64) (time.Time, bool, error) {
	var startsAt time.Time

	err := r.q.QueryRow(ctx, `
		UPDATE available_slots
		SET is_available = false
		WHERE id = $1 AND is_available = true
		RETURNING slot_date + slot_time
	`, slotID).Scan(&startsAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// already held, or no such slot
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("claim slot: %w", err)
	}

	return startsAt, true, nil
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, slotID int64) error {
	_, err := r.q.Exec(ctx, `
		UPDATE available_slots SET is_available = true WHERE id = $1
	`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	var createdAt time.Time

	err := r.q.QueryRow(ctx, `
		INSERT INTO appointments
			(patient_id, doctor_id, clinic_id, slot_id, appointment_time,
			 insurance_type, insurance_plan_id, status, created_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6::insurance_type, $7, 'CONFIRMED', now(), now())
		RETURNING id, created_at
	`, a.PatientID, a.DoctorID, a.ClinicID, a.SlotID, a.AppointmentTime,
		string(a.Insurance), a.InsurancePlanID).Scan(&a.ID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	a.Status = StatusConfirmed
	a.CreatedAt = createdAt
	a.ConfirmedAt = &createdAt
	return &a, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, clinic_id, slot_id, appointment_time,
		       insurance_type, insurance_plan_id, status, created_at,
		       confirmed_at, cancelled_at, cancellation_reason
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) MarkCancelled(ctx context.Context, id int64, reason string) (bool, error) {
	ct, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED', cancelled_at = now(), cancellation_reason = $2
		WHERE id = $1 AND status = 'CONFIRMED'
	`, id, reason)
	if err != nil {
		return false, fmt.Errorf("mark cancelled: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	row := r.q.QueryRow(ctx, `
		SELECT a.id, a.patient_id, a.doctor_id, a.clinic_id, a.slot_id,
		       a.appointment_time, a.insurance_type, a.insurance_plan_id,
		       a.status, a.created_at, a.confirmed_at, a.cancelled_at,
		       a.cancellation_reason,
		       p.full_name, p.national_id, p.email, p.phone,
		       d.name, d.specialty, d.consultation_price,
		       c.legal_name, c.phone, c.address, c.city
		FROM appointments a
		JOIN patients p ON a.patient_id = p.id
		JOIN doctors d ON a.doctor_id = d.id
		JOIN clinics c ON a.clinic_id = c.id
		WHERE a.id = $1
	`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) SearchAvailability(ctx context.Context, specialty string) ([]Availability, error) {
	rows, err := r.q.Query(ctx, `
		SELECT c.id, c.legal_name, c.address, c.city, c.state, c.phone,
		       d.id, d.name, d.specialty, d.consultation_price,
		       s.id, s.slot_date + s.slot_time
		FROM clinics c
		JOIN doctors d ON c.id = d.clinic_id
		JOIN available_slots s ON d.id = s.doctor_id AND c.id = s.clinic_id
		WHERE lower(trim(d.specialty)) LIKE '%' || lower(trim($1)) || '%'
		  AND s.is_available = true
		  AND s.slot_date >= CURRENT_DATE
		ORDER BY s.slot_date ASC, s.slot_time ASC
		LIMIT $2
	`, specialty, searchPageSize)
	if err != nil {
		return nil, fmt.Errorf("search availability: %w", err)
	}
	defer rows.Close()

	var result []Availability
	for rows.Next() {
		var av Availability
		err := rows.Scan(
			&av.ClinicID,
			&av.ClinicName,
			&av.ClinicAddress,
			&av.ClinicCity,
			&av.ClinicState,
			&av.ClinicPhone,
			&av.DoctorID,
			&av.DoctorName,
			&av.Specialty,
			&av.ConsultationPrice,
			&av.SlotID,
			&av.StartsAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, av)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DeleteStaleSlots(ctx context.Context, before time.Time) (int64, error) {
	ct, err := r.q.Exec(ctx, `
		DELETE FROM available_slots s
		WHERE s.is_available = true
		  AND s.slot_date < $1
		  AND NOT EXISTS (SELECT 1 FROM appointments a WHERE a.slot_id = s.id)
	`, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale slots: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
