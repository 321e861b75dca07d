package booking

import (
	"context"
	"time"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// WithTx runs fn against a transaction-scoped copy of the repository.
	// The transaction commits when fn returns nil and rolls back on error
	// or panic.
	WithTx(ctx context.Context, fn func(Repository) error) error

	// ResolvePatient returns the id of the patient with the given national
	// id, inserting the profile first if no such patient exists. An
	// existing row always wins; the supplied profile is then ignored.
	ResolvePatient(ctx context.Context, p NewPatient) (int64, error)

	// ClaimSlot flips an available slot to held and reports the slot's
	// start time. claimed is false when the slot is already held or does
	// not exist; nothing is mutated in that case.
	ClaimSlot(ctx context.Context, slotID int64) (startsAt time.Time, claimed bool, err error)

	// ReleaseSlot flips a slot back to available. Releasing a slot that is
	// already available is a no-op.
	ReleaseSlot(ctx context.Context, slotID int64) error

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)

	// MarkCancelled moves a confirmed appointment to cancelled and reports
	// whether the transition happened. false means the appointment was not
	// in the confirmed state anymore.
	MarkCancelled(ctx context.Context, id int64, reason string) (bool, error)

	// Read projections
	GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error)
	SearchAvailability(ctx context.Context, specialty string) ([]Availability, error)

	// Retention worker
	DeleteStaleSlots(ctx context.Context, before time.Time) (int64, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
