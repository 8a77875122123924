package agenda

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one line of the append-only operation trail: who did what to
// which appointment. Recording is best-effort and never fails the
// operation it describes.
type Event struct {
	Action        string    `json:"action"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	Operator      string    `json:"operator,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	At            time.Time `json:"at"`
}

type operatorKeyType struct{}

var operatorKey operatorKeyType

// WithOperator attaches the identity the authentication gate established
// for this request. The engine only records it; it never makes decisions
// on it.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

func OperatorFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operatorKey).(string); ok {
		return op
	}
	return ""
}
