package agenda

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the engine's persistence conduit. It carries no business
// logic: the one piece of policy it participates in is the store-level
// slot uniqueness rule, surfaced as ErrSlotConflict from Create/Update so
// that a conditional write loses cleanly instead of overwriting.
type Repository interface {
	List(ctx context.Context) ([]Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ActiveBySlot returns the non-cancelled appointment occupying the
	// slot, or ErrNotFound when the slot is free.
	ActiveBySlot(ctx context.Context, key SlotKey) (*Appointment, error)

	// Create persists a new appointment; the store assigns the id.
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	Update(ctx context.Context, a Appointment) error
	Remove(ctx context.Context, id uuid.UUID) error

	// Watch invokes onChange with a fresh full snapshot after every
	// change to the appointment collection, until ctx is cancelled.
	Watch(ctx context.Context, onChange func([]Appointment))

	// RecordEvent appends to the operation trail.
	RecordEvent(ctx context.Context, ev Event) error
}
