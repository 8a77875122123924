package agenda

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// UnmarshalJSON rejects status strings outside the closed set, so loosely
// typed documents cannot smuggle a fourth state into the engine.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	st := Status(raw)
	if !st.Valid() {
		return fmt.Errorf("unknown appointment status %q", raw)
	}
	*s = st
	return nil
}

// SlotKey is the grid coordinate an active appointment occupies.
type SlotKey struct {
	Date   string // YYYY-MM-DD
	Time   string // HH:MM half-hour token
	Office string
}

func (k SlotKey) String() string {
	return k.Date + " " + k.Time + " @ " + k.Office
}

// Appointment is the sole entity the engine owns. Date, Time and Office
// place it on the weekly grid; Patient and Treatment are names resolved
// against the external directories at booking time.
type Appointment struct {
	ID           uuid.UUID `json:"id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Office       string    `json:"office"`
	Patient      string    `json:"patient"`
	Treatment    string    `json:"treatment"`
	Status       Status    `json:"status"`
	CancelReason string    `json:"cancelReason,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Photos       []string  `json:"photos,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (a Appointment) Slot() SlotKey {
	return SlotKey{Date: a.Date, Time: a.Time, Office: a.Office}
}

// Active reports whether the appointment blocks its slot: cancelled
// appointments keep their document but release the grid cell.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}
