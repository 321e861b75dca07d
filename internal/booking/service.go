package booking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-reservation-engine/internal/metrics"
	redisclient "github.com/hackgods/clinic-reservation-engine/internal/redis"
)

const (
	EventBookingConfirmed = "BOOKING_CONFIRMED"
	EventBookingCancelled = "BOOKING_CANCELLED"
)

type Service struct {
	repo    Repository
	gate    redisclient.Locker // nil disables the advisory gate
	metrics *metrics.Metrics   // nil disables counters
	log     zerolog.Logger
	timeout time.Duration // per-operation storage budget, 0 means none
}

func NewService(repo Repository, gate redisclient.Locker, m *metrics.Metrics, log zerolog.Logger, storageTimeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		gate:    gate,
		metrics: m,
		log:     log,
		timeout: storageTimeout,
	}
}

// Book reserves a slot for a patient, creating the patient record on first
// contact. Resolve, claim, and appointment insert run in one transaction, so
// a failure at any step leaves the slot available and no appointment behind.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	profile, err := req.validate()
	if err != nil {
		s.countBooking("validation_rejected")
		return nil, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	start := time.Now()

	var appt *Appointment
	book := func(txCtx context.Context) error {
		return s.repo.WithTx(txCtx, func(r Repository) error {
			patientID, err := r.ResolvePatient(txCtx, profile)
			if err != nil {
				return storageFailure("resolve patient", err)
			}

			startsAt, claimed, err := r.ClaimSlot(txCtx, req.SlotID)
			if err != nil {
				return storageFailure("claim slot", err)
			}
			if !claimed {
				return ErrSlotUnavailable
			}

			created, err := r.CreateAppointment(txCtx, Appointment{
				PatientID:       patientID,
				DoctorID:        req.DoctorID,
				ClinicID:        req.ClinicID,
				SlotID:          req.SlotID,
				AppointmentTime: startsAt,
				Insurance:       profile.Insurance,
				InsurancePlanID: req.InsurancePlanID,
			})
			if err != nil {
				return storageFailure("create appointment", err)
			}

			appt = created
			return nil
		})
	}

	if s.gate != nil {
		err = s.gate.WithSlotLock(ctx, req.SlotID, book)
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			// Someone else is booking this slot right now; they will win
			// the claim anyway.
			err = ErrSlotUnavailable
		case errors.Is(err, redisclient.ErrGateUnavailable):
			s.log.Warn().Err(err).Int64("slot_id", req.SlotID).
				Msg("slot gate unavailable, booking without it")
			err = book(ctx)
		}
	} else {
		err = book(ctx)
	}

	s.observe("book", time.Since(start))

	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			s.countBooking("slot_unavailable")
			if s.metrics != nil {
				s.metrics.ClaimConflicts.Inc()
			}
			return nil, ErrSlotUnavailable
		}

		var se *StorageError
		if !errors.As(err, &se) {
			err = storageFailure("book", err)
		}
		s.countBooking("storage_error")
		s.log.Error().Err(err).Int64("slot_id", req.SlotID).Msg("booking failed")
		return nil, err
	}

	s.countBooking("confirmed")
	s.log.Info().
		Int64("appointment_id", appt.ID).
		Int64("slot_id", appt.SlotID).
		Int64("patient_id", appt.PatientID).
		Msg("appointment confirmed")

	s.logEvent(ctx, appt.ID, EventBookingConfirmed, map[string]any{
		"slot_id":    appt.SlotID,
		"patient_id": appt.PatientID,
		"doctor_id":  appt.DoctorID,
	})

	return appt, nil
}

// Cancel moves a confirmed appointment to cancelled and frees its slot in
// one transaction. Cancelling twice reports ErrAlreadyCancelled and leaves
// the appointment untouched.
func (s *Service) Cancel(ctx context.Context, appointmentID int64, reason string) error {
	if appointmentID <= 0 {
		s.countCancellation("validation_rejected")
		return invalidField("appointment_id", "is required")
	}
	reason = strings.TrimSpace(reason)

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	start := time.Now()

	var slotID int64
	err := s.repo.WithTx(ctx, func(r Repository) error {
		appt, err := r.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return storageFailure("load appointment", err)
		}
		if appt.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}

		ok, err := r.MarkCancelled(ctx, appointmentID, reason)
		if err != nil {
			return storageFailure("mark cancelled", err)
		}
		if !ok {
			// A concurrent cancel got there first.
			return ErrAlreadyCancelled
		}

		if err := r.ReleaseSlot(ctx, appt.SlotID); err != nil {
			return storageFailure("release slot", err)
		}

		slotID = appt.SlotID
		return nil
	})

	s.observe("cancel", time.Since(start))

	if err != nil {
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			s.countCancellation("not_found")
		case errors.Is(err, ErrAlreadyCancelled):
			s.countCancellation("already_cancelled")
		default:
			var se *StorageError
			if !errors.As(err, &se) {
				err = storageFailure("cancel", err)
			}
			s.countCancellation("storage_error")
			s.log.Error().Err(err).Int64("appointment_id", appointmentID).Msg("cancellation failed")
		}
		return err
	}

	s.countCancellation("cancelled")
	s.log.Info().
		Int64("appointment_id", appointmentID).
		Int64("slot_id", slotID).
		Msg("appointment cancelled")

	s.logEvent(ctx, appointmentID, EventBookingCancelled, map[string]any{
		"slot_id": slotID,
		"reason":  reason,
	})

	return nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id int64) (*AppointmentDetail, error) {
	if id <= 0 {
		return nil, invalidField("appointment_id", "is required")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storageFailure("get appointment", err)
	}
	return detail, nil
}

// Search lists open future slots for doctors whose specialty contains the
// given text, soonest first.
func (s *Service) Search(ctx context.Context, specialty string) ([]Availability, error) {
	specialty = strings.TrimSpace(specialty)
	if specialty == "" {
		return nil, invalidField("specialty", "is required")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.repo.SearchAvailability(ctx, specialty)
	if err != nil {
		return nil, storageFailure("search availability", err)
	}
	return result, nil
}

// SweepStaleSlots is intended to be called by the retention worker
// periodically. It deletes slots that are long past, still available, and
// referenced by no appointment.
func (s *Service) SweepStaleSlots(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := s.repo.DeleteStaleSlots(ctx, before)
	if err != nil {
		return 0, storageFailure("sweep stale slots", err)
	}

	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Time("before", before).Msg("stale slots removed")
	}
	if s.metrics != nil {
		s.metrics.SlotsReaped.Add(float64(deleted))
	}
	return deleted, nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) countBooking(outcome string) {
	if s.metrics != nil {
		s.metrics.Bookings.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countCancellation(outcome string) {
	if s.metrics != nil {
		s.metrics.Cancellations.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) observe(op string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.EngineDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Int64("appointment_id", appointmentID).
			Msg("failed to insert event log")
	}
}
