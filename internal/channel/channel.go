package channel

import "context"

// DeliveryState is what a channel knows about a previously accepted message.
type DeliveryState string

const (
	StateDelivered   DeliveryState = "delivered"
	StateUndelivered DeliveryState = "undelivered"
	StateFailed      DeliveryState = "failed"
	StateUnknown     DeliveryState = "unknown"
)

func (s DeliveryState) String() string { return string(s) }

// ParseDeliveryState maps provider vocabulary onto DeliveryState; anything
// that is not terminal is unknown.
func ParseDeliveryState(s string) DeliveryState {
	switch DeliveryState(s) {
	case StateDelivered, StateUndelivered, StateFailed:
		return DeliveryState(s)
	default:
		return StateUnknown
	}
}

type Email struct {
	From    string
	To      string
	Subject string
	Body    string
}

// EmailSender delivers an email and returns the provider-assigned id.
type EmailSender interface {
	SendEmail(ctx context.Context, msg Email) (string, error)
}

// SMSSender delivers a text message and returns the provider-assigned id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// StatusChecker looks up the delivery state of a previously returned id.
type StatusChecker interface {
	Status(ctx context.Context, id string) (DeliveryState, error)
}
