package api

import (
	"github.com/dermaluz/agenda/internal/agenda"
)

type BookingRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Office    string `json:"office"`
	Patient   string `json:"patient"`
	Treatment string `json:"treatment"`
}

func (r BookingRequest) toEngine() agenda.BookingRequest {
	return agenda.BookingRequest{
		Date:      r.Date,
		Time:      r.Time,
		Office:    r.Office,
		Patient:   r.Patient,
		Treatment: r.Treatment,
	}
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type CompleteRequest struct {
	Notes  string   `json:"notes"`
	Photos []string `json:"photos"`
}

type WeekResponse struct {
	WeekStart string            `json:"weekStart"`
	Days      []string          `json:"days"`
	Times     []string          `json:"times"`
	Cells     []agenda.WeekCell `json:"cells"`
}

type DayResponse struct {
	Date         string               `json:"date"`
	Appointments []agenda.Appointment `json:"appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
