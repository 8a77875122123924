package agenda

import (
	"fmt"
	"time"
)

// The bookable grid is fixed: Monday through Saturday, half-hour slots
// from 09:00 up to but excluding 20:00.
const (
	gridOpenHour  = 9
	gridCloseHour = 20
	gridDays      = 6

	// DateLayout is the calendar-date form used across documents and the API.
	DateLayout = "2006-01-02"
)

// WeekStart normalizes an anchor to the Monday of its containing week at
// midnight. A Sunday anchor maps to the Monday six days earlier, matching
// locale weeks that start on Monday.
func WeekStart(anchor time.Time) time.Time {
	y, m, d := anchor.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())

	offset := int(day.Weekday()) - int(time.Monday)
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}

// WeekDays returns the six day columns (Monday..Saturday) of the week
// containing anchor.
func WeekDays(anchor time.Time) []time.Time {
	start := WeekStart(anchor)
	days := make([]time.Time, gridDays)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// TimeSlots returns the 22 half-hour tokens "09:00".."19:30" in grid order.
func TimeSlots() []string {
	slots := make([]string, 0, (gridCloseHour-gridOpenHour)*2)
	for h := gridOpenHour; h < gridCloseHour; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
		slots = append(slots, fmt.Sprintf("%02d:30", h))
	}
	return slots
}

// ValidSlotToken reports whether tok is one of the fixed grid tokens.
func ValidSlotToken(tok string) bool {
	if len(tok) != 5 || tok[2] != ':' {
		return false
	}
	for _, s := range TimeSlots() {
		if s == tok {
			return true
		}
	}
	return false
}

// ParseDate validates a calendar date in DateLayout form.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
