package agenda

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAppointments() []Appointment {
	return []Appointment{
		{ID: uuid.New(), Date: "2026-09-01", Time: "10:00", Office: "A", Patient: "X", Treatment: "Facial", Status: StatusConfirmed},
		{ID: uuid.New(), Date: "2026-09-01", Time: "10:00", Office: "B", Patient: "Y", Treatment: "Peeling", Status: StatusConfirmed},
		{ID: uuid.New(), Date: "2026-09-01", Time: "09:00", Office: "A", Patient: "Zoe", Treatment: "Facial", Status: StatusCancelled, CancelReason: "no-show"},
		{ID: uuid.New(), Date: "2026-09-02", Time: "15:30", Office: "A", Patient: "X", Treatment: "Peeling", Status: StatusCompleted, Notes: "done"},
	}
}

func TestView_OccupancySkipsCancelled(t *testing.T) {
	v := NewView()
	v.Apply(sampleAppointments())

	assert.Nil(t, v.Occupancy("2026-09-01", "09:00"))

	appt := v.Occupancy("2026-09-01", "10:00")
	require.NotNil(t, appt)
	assert.True(t, appt.Active())
}

func TestView_OccupancyAtScopesToOffice(t *testing.T) {
	v := NewView()
	v.Apply(sampleAppointments())

	a := v.OccupancyAt("2026-09-01", "10:00", "A")
	require.NotNil(t, a)
	assert.Equal(t, "X", a.Patient)

	b := v.OccupancyAt("2026-09-01", "10:00", "B")
	require.NotNil(t, b)
	assert.Equal(t, "Y", b.Patient)

	assert.Nil(t, v.OccupancyAt("2026-09-01", "10:00", "C"))
}

func TestView_CompletedStillOccupies(t *testing.T) {
	v := NewView()
	v.Apply(sampleAppointments())

	appt := v.OccupancyAt("2026-09-02", "15:30", "A")
	require.NotNil(t, appt)
	assert.Equal(t, StatusCompleted, appt.Status)
}

func TestView_DayAppointmentsAllStatusesTimeOrdered(t *testing.T) {
	v := NewView()
	v.Apply(sampleAppointments())

	day := v.DayAppointments("2026-09-01")
	require.Len(t, day, 3)

	// Cancelled rows appear in the daily summary.
	assert.Equal(t, StatusCancelled, day[0].Status)
	assert.Equal(t, "09:00", day[0].Time)
	assert.Equal(t, "10:00", day[1].Time)
	assert.Equal(t, "10:00", day[2].Time)

	assert.Empty(t, v.DayAppointments("2026-09-05"))
}

func TestView_WeekGridShape(t *testing.T) {
	v := NewView()
	v.Apply(sampleAppointments())

	// 2026-09-01 is a Tuesday; its week starts Monday 2026-08-31.
	anchor := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	cells := v.Week(anchor, "")
	assert.Len(t, cells, 6*22)

	var occupied int
	for _, c := range cells {
		if c.Appointment != nil {
			occupied++
		}
	}
	// Office A and B at the same coordinate collapse into one cell in the
	// all-offices projection.
	assert.Equal(t, 2, occupied)

	cellsA := v.Week(anchor, "A")
	var patientsA []string
	for _, c := range cellsA {
		if c.Appointment != nil {
			patientsA = append(patientsA, c.Appointment.Patient)
		}
	}
	assert.ElementsMatch(t, []string{"X", "X"}, patientsA)
}

func TestView_ApplyReplacesSnapshot(t *testing.T) {
	v := NewView()
	v.Apply(sampleAppointments())
	require.NotNil(t, v.Occupancy("2026-09-01", "10:00"))

	v.Apply(nil)
	assert.Nil(t, v.Occupancy("2026-09-01", "10:00"))
	assert.Empty(t, v.DayAppointments("2026-09-01"))
}
