package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dermaluz/agenda/internal/directory"
	redisclient "github.com/dermaluz/agenda/internal/redis"
)

const (
	ActionBook     = "book"
	ActionEdit     = "edit"
	ActionCancel   = "cancel"
	ActionComplete = "complete"
	ActionReassign = "reassign"
	ActionDelete   = "delete"
)

// Directories are the external read-only lists booking references are
// validated against.
type Directories struct {
	Patients   directory.Lookup
	Treatments directory.Lookup
	Offices    directory.Lookup
}

// Engine owns every appointment mutation. Each operation validates its
// preconditions against the live appointment set, performs one write, and
// surfaces a typed failure otherwise; nothing is retried here.
type Engine struct {
	repo         Repository
	locker       redisclient.Locker
	dirs         Directories
	writeTimeout time.Duration
}

func NewEngine(repo Repository, locker redisclient.Locker, dirs Directories, writeTimeout time.Duration) *Engine {
	return &Engine{
		repo:         repo,
		locker:       locker,
		dirs:         dirs,
		writeTimeout: writeTimeout,
	}
}

// BookingRequest carries the caller-selected fields for book, edit and
// reassign. Date and Time must land on the fixed grid.
type BookingRequest struct {
	Date      string
	Time      string
	Office    string
	Patient   string
	Treatment string
}

func (e *Engine) validateRequest(ctx context.Context, req BookingRequest) error {
	if req.Patient == "" {
		return missingField("patient")
	}
	if req.Office == "" {
		return missingField("office")
	}
	if req.Treatment == "" {
		return missingField("treatment")
	}
	if req.Date == "" {
		return missingField("date")
	}
	if req.Time == "" {
		return missingField("time")
	}
	if _, err := ParseDate(req.Date); err != nil {
		return &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if !ValidSlotToken(req.Time) {
		return &ValidationError{Field: "time", Reason: "must be a half-hour slot between 09:00 and 19:30"}
	}

	checks := []struct {
		field  string
		lookup directory.Lookup
		name   string
	}{
		{"patient", e.dirs.Patients, req.Patient},
		{"treatment", e.dirs.Treatments, req.Treatment},
		{"office", e.dirs.Offices, req.Office},
	}
	for _, c := range checks {
		ok, err := c.lookup.Exists(ctx, c.name)
		if err != nil {
			return &PersistenceError{Op: "lookup " + c.field, Err: err}
		}
		if !ok {
			return &ValidationError{Field: c.field, Reason: fmt.Sprintf("%q is not in the %s directory", c.name, c.field)}
		}
	}
	return nil
}

// Book creates a confirmed appointment on a free slot. The conflict check
// and the insert run inside the slot lock; the store's uniqueness rule
// backstops the check, so of two concurrent calls for the same slot
// exactly one succeeds and the other gets ErrSlotConflict.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := e.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	candidate := Appointment{
		Date:      req.Date,
		Time:      req.Time,
		Office:    req.Office,
		Patient:   req.Patient,
		Treatment: req.Treatment,
		Status:    StatusConfirmed,
	}

	var created *Appointment
	err := e.withSlot(ctx, candidate.Slot(), func(lockCtx context.Context) error {
		if err := e.ensureSlotFree(lockCtx, candidate.Slot(), uuid.Nil); err != nil {
			return err
		}

		appt, err := e.repo.Create(lockCtx, candidate)
		if err != nil {
			return e.mapWrite(ActionBook, err)
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.audit(ctx, ActionBook, created.ID, created.Slot().String())
	return created, nil
}

// Edit overwrites the mutable fields of a confirmed appointment. Moving
// it to another slot is allowed and conflict-checked like a fresh booking.
func (e *Engine) Edit(ctx context.Context, id uuid.UUID, req BookingRequest) (*Appointment, error) {
	current, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusConfirmed {
		return nil, &InvalidTransitionError{Status: current.Status, Action: ActionEdit}
	}
	if err := e.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	updated := *current
	updated.Date = req.Date
	updated.Time = req.Time
	updated.Office = req.Office
	updated.Patient = req.Patient
	updated.Treatment = req.Treatment

	err = e.withSlot(ctx, updated.Slot(), func(lockCtx context.Context) error {
		if err := e.ensureSlotFree(lockCtx, updated.Slot(), id); err != nil {
			return err
		}
		return e.mapWrite(ActionEdit, e.repo.Update(lockCtx, updated))
	})
	if err != nil {
		return nil, err
	}

	e.audit(ctx, ActionEdit, id, updated.Slot().String())
	return &updated, nil
}

// Cancel releases the slot but keeps the appointment document for
// historical display. Prior notes and photos are left untouched.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "cancelReason", Reason: "must not be empty"}
	}

	current, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusConfirmed {
		return nil, &InvalidTransitionError{Status: current.Status, Action: ActionCancel}
	}

	updated := *current
	updated.Status = StatusCancelled
	updated.CancelReason = reason

	if err := e.write(ctx, ActionCancel, updated); err != nil {
		return nil, err
	}

	e.audit(ctx, ActionCancel, id, reason)
	return &updated, nil
}

// Complete marks a treatment as carried out. Calling it again on an
// already completed appointment updates the notes and appends further
// photos; photos are never replaced (only whole-appointment deletion
// removes them).
func (e *Engine) Complete(ctx context.Context, id uuid.UUID, notes string, photos []string) (*Appointment, error) {
	current, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCancelled {
		return nil, &InvalidTransitionError{Status: current.Status, Action: ActionComplete}
	}

	updated := *current
	updated.Status = StatusCompleted
	updated.Notes = notes
	updated.Photos = append(updated.Photos, photos...)

	if err := e.write(ctx, ActionComplete, updated); err != nil {
		return nil, err
	}

	e.audit(ctx, ActionComplete, id, "")
	return &updated, nil
}

// Reassign turns a cancelled appointment's slot into a new confirmed
// booking in place: id, date and time survive, the booking fields are
// overwritten and cancelReason, notes and photos are cleared. Because a
// cancelled appointment does not hold its slot, the target slot is
// conflict-checked like a fresh booking.
func (e *Engine) Reassign(ctx context.Context, id uuid.UUID, req BookingRequest) (*Appointment, error) {
	current, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusCancelled {
		return nil, &InvalidTransitionError{Status: current.Status, Action: ActionReassign}
	}

	req.Date = current.Date
	req.Time = current.Time
	if err := e.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	updated := *current
	updated.Office = req.Office
	updated.Patient = req.Patient
	updated.Treatment = req.Treatment
	updated.Status = StatusConfirmed
	updated.CancelReason = ""
	updated.Notes = ""
	updated.Photos = nil

	err = e.withSlot(ctx, updated.Slot(), func(lockCtx context.Context) error {
		if err := e.ensureSlotFree(lockCtx, updated.Slot(), id); err != nil {
			return err
		}
		return e.mapWrite(ActionReassign, e.repo.Update(lockCtx, updated))
	})
	if err != nil {
		return nil, err
	}

	e.audit(ctx, ActionReassign, id, updated.Slot().String())
	return &updated, nil
}

// Delete destroys the appointment document. Confirmation happens at the
// boundary; here the only guard is that completed treatments are part of
// the patient history and cannot be deleted.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == StatusCompleted {
		return &InvalidTransitionError{Status: current.Status, Action: ActionDelete}
	}

	writeCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()

	if err := e.mapWrite(ActionDelete, e.repo.Remove(writeCtx, id)); err != nil {
		return err
	}

	e.audit(ctx, ActionDelete, id, "")
	return nil
}

func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return e.load(ctx, id)
}

func (e *Engine) List(ctx context.Context) ([]Appointment, error) {
	appts, err := e.repo.List(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return appts, nil
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := e.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	return appt, nil
}

// ensureSlotFree re-checks the uniqueness invariant against the live set
// inside the critical section. exclude skips the appointment being moved
// or reassigned so it does not conflict with itself.
func (e *Engine) ensureSlotFree(ctx context.Context, key SlotKey, exclude uuid.UUID) error {
	occupant, err := e.repo.ActiveBySlot(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return &PersistenceError{Op: "check slot", Err: err}
	}
	if occupant.ID == exclude {
		return nil
	}
	return ErrSlotConflict
}

func (e *Engine) withSlot(ctx context.Context, key SlotKey, fn func(ctx context.Context) error) error {
	err := e.locker.WithSlotLock(ctx, key.Date, key.Time, key.Office, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		// Another operator is mid-booking on this slot; to the caller
		// that is the same recoverable outcome as losing the race.
		return ErrSlotConflict
	}
	return err
}

// write performs a plain status/field update that cannot change the
// occupied slot, so no lock is needed.
func (e *Engine) write(ctx context.Context, op string, a Appointment) error {
	writeCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
	defer cancel()
	return e.mapWrite(op, e.repo.Update(writeCtx, a))
}

func (e *Engine) mapWrite(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrNotFound):
		return err
	default:
		return &PersistenceError{Op: op, Err: err}
	}
}

func (e *Engine) audit(ctx context.Context, action string, id uuid.UUID, detail string) {
	ev := Event{
		Action:        action,
		AppointmentID: id,
		Operator:      OperatorFromContext(ctx),
		Detail:        detail,
		At:            time.Now(),
	}
	if err := e.repo.RecordEvent(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).Str("action", action).Stringer("appointment_id", id).
			Msg("failed to record audit event")
	}
}
