package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dermaluz/agenda/internal/docstore"
)

const appointmentsCollection = "appointments"

// DocRepository persists appointments as documents, one per appointment,
// with the field set of the original records preserved verbatim.
type DocRepository struct {
	store *docstore.Store
}

func NewDocRepository(store *docstore.Store) *DocRepository {
	return &DocRepository{store: store}
}

// appointmentDoc is the persisted shape. The document id lives on the
// store envelope, not in the payload.
type appointmentDoc struct {
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Office       string   `json:"office"`
	Patient      string   `json:"patient"`
	Treatment    string   `json:"treatment"`
	Status       Status   `json:"status"`
	CancelReason string   `json:"cancelReason,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Photos       []string `json:"photos,omitempty"`
}

func toDoc(a Appointment) appointmentDoc {
	return appointmentDoc{
		Date:         a.Date,
		Time:         a.Time,
		Office:       a.Office,
		Patient:      a.Patient,
		Treatment:    a.Treatment,
		Status:       a.Status,
		CancelReason: a.CancelReason,
		Notes:        a.Notes,
		Photos:       a.Photos,
	}
}

func fromDoc(d docstore.Doc) (*Appointment, error) {
	var payload appointmentDoc
	if err := json.Unmarshal(d.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode appointment %s: %w", d.ID, err)
	}

	return &Appointment{
		ID:           d.ID,
		Date:         payload.Date,
		Time:         payload.Time,
		Office:       payload.Office,
		Patient:      payload.Patient,
		Treatment:    payload.Treatment,
		Status:       payload.Status,
		CancelReason: payload.CancelReason,
		Notes:        payload.Notes,
		Photos:       payload.Photos,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (r *DocRepository) List(ctx context.Context) ([]Appointment, error) {
	docs, err := r.store.List(ctx, appointmentsCollection)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	appts := make([]Appointment, 0, len(docs))
	for _, d := range docs {
		a, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		appts = append(appts, *a)
	}
	return appts, nil
}

func (r *DocRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	doc, err := r.store.Get(ctx, appointmentsCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return fromDoc(*doc)
}

func (r *DocRepository) ActiveBySlot(ctx context.Context, key SlotKey) (*Appointment, error) {
	appts, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range appts {
		if appts[i].Active() && appts[i].Slot() == key {
			return &appts[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *DocRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	data, err := json.Marshal(toDoc(a))
	if err != nil {
		return nil, fmt.Errorf("encode appointment: %w", err)
	}

	doc, err := r.store.Put(ctx, appointmentsCollection, data)
	if err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return fromDoc(*doc)
}

func (r *DocRepository) Update(ctx context.Context, a Appointment) error {
	data, err := json.Marshal(toDoc(a))
	if err != nil {
		return fmt.Errorf("encode appointment: %w", err)
	}

	if err := r.store.Update(ctx, appointmentsCollection, a.ID, data); err != nil {
		switch {
		case errors.Is(err, docstore.ErrConflict):
			return ErrSlotConflict
		case errors.Is(err, docstore.ErrNotFound):
			return ErrNotFound
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *DocRepository) Remove(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, appointmentsCollection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove appointment: %w", err)
	}
	return nil
}

func (r *DocRepository) RecordEvent(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := r.store.Put(ctx, "events", data); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (r *DocRepository) Watch(ctx context.Context, onChange func([]Appointment)) {
	r.store.Watch(ctx, appointmentsCollection, func() {
		appts, err := r.List(ctx)
		if err != nil {
			log.Error().Err(err).Msg("reload appointments after change notification")
			return
		}
		onChange(appts)
	})
}
