package agenda

import (
	"context"
	"sort"
	"sync/atomic"
	"time"
)

// View projects the latest appointment snapshot onto the weekly grid and
// the daily summary. It is fed copy-on-write snapshots by the repository
// subscription: Apply swaps a pointer, reads walk whatever snapshot is
// current and never block.
type View struct {
	snapshot atomic.Pointer[[]Appointment]
}

func NewView() *View {
	v := &View{}
	empty := []Appointment{}
	v.snapshot.Store(&empty)
	return v
}

// Run feeds the view from the repository's change feed until ctx is
// cancelled.
func (v *View) Run(ctx context.Context, repo Repository) {
	repo.Watch(ctx, v.Apply)
}

// Apply replaces the current snapshot. The slice must not be mutated by
// the caller afterwards.
func (v *View) Apply(appts []Appointment) {
	sorted := make([]Appointment, len(appts))
	copy(sorted, appts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Time < sorted[j].Time
	})
	v.snapshot.Store(&sorted)
}

func (v *View) all() []Appointment {
	return *v.snapshot.Load()
}

// Occupancy returns the non-cancelled appointment booked at the exact
// (date, time) pair across all offices, or nil when the cell is free.
// When parallel offices are both booked at that coordinate the earliest
// created wins; render per-office grids through OccupancyAt instead.
func (v *View) Occupancy(date, tok string) *Appointment {
	appts := v.all()
	for i := range appts {
		if appts[i].Active() && appts[i].Date == date && appts[i].Time == tok {
			return &appts[i]
		}
	}
	return nil
}

// OccupancyAt is Occupancy scoped to a single office.
func (v *View) OccupancyAt(date, tok, office string) *Appointment {
	key := SlotKey{Date: date, Time: tok, Office: office}
	appts := v.all()
	for i := range appts {
		if appts[i].Active() && appts[i].Slot() == key {
			return &appts[i]
		}
	}
	return nil
}

// DayAppointments returns every appointment on the given date regardless
// of status, ordered by time ascending.
func (v *View) DayAppointments(date string) []Appointment {
	var out []Appointment
	for _, a := range v.all() {
		if a.Date == date {
			out = append(out, a)
		}
	}
	return out
}

// WeekCell is one grid cell of a rendered week.
type WeekCell struct {
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	Appointment *Appointment `json:"appointment,omitempty"`
}

// Week projects the six-day grid for the week containing anchor. With a
// non-empty office only that office's bookings appear; otherwise cells
// show the all-offices occupancy.
func (v *View) Week(anchor time.Time, office string) []WeekCell {
	days := WeekDays(anchor)
	slots := TimeSlots()

	cells := make([]WeekCell, 0, len(days)*len(slots))
	for _, tok := range slots {
		for _, day := range days {
			date := day.Format(DateLayout)
			var appt *Appointment
			if office == "" {
				appt = v.Occupancy(date, tok)
			} else {
				appt = v.OccupancyAt(date, tok, office)
			}
			cells = append(cells, WeekCell{Date: date, Time: tok, Appointment: appt})
		}
	}
	return cells
}
