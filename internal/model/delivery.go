package model

import "time"

type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string {
	return string(s)
}

func (s DeliveryStatus) Valid() bool {
	return s == StatusSent || s == StatusFailed
}

// Outcome of a dispatch. Status is sent only when the channel accepted the message.
type Outcome struct {
	Status      DeliveryStatus
	ProviderRef string // provider-assigned delivery id
}

// FailedOutcome is the starting point of every dispatch.
func FailedOutcome() Outcome { return Outcome{Status: StatusFailed} }

// FinalizationRecord is reported to the owning system for job-linked requests.
type FinalizationRecord struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	JobID          string         `json:"job_id"`
	To             string         `json:"to"`
	Status         DeliveryStatus `json:"status"`
	NotificationID string         `json:"notification_id"`
}

// NewFinalizationRecord builds the record for req with an already computed status.
func NewFinalizationRecord(req Request, status DeliveryStatus) FinalizationRecord {
	h := req.Header()
	return FinalizationRecord{
		ServiceID:      h.ServiceID,
		TemplateID:     h.TemplateID,
		JobID:          h.JobID,
		To:             h.To,
		Status:         status,
		NotificationID: h.NotificationID,
	}
}

// Delivery is one processing attempt, persisted in the deliveries table
// and published as an event.
type Delivery struct {
	ID             string         `db:"id" json:"id"` // ULID
	Queue          string         `db:"queue" json:"queue"`
	MessageID      string         `db:"message_id" json:"message_id"`
	NotificationID string         `db:"notification_id" json:"notification_id"`
	ServiceID      string         `db:"service_id" json:"service_id"`
	TemplateID     string         `db:"template_id" json:"template_id"`
	JobID          string         `db:"job_id" json:"job_id,omitempty"`
	Type           string         `db:"type" json:"type"`
	Variant        string         `db:"variant" json:"variant"`
	Recipient      string         `db:"recipient" json:"recipient"`
	Status         DeliveryStatus `db:"status" json:"status"`
	ProviderRef    string         `db:"provider_ref" json:"provider_ref,omitempty"`
	FailureKind    string         `db:"failure_kind" json:"failure_kind,omitempty"`
	Error          string         `db:"error" json:"error,omitempty"`
	Deleted        bool           `db:"deleted" json:"deleted"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
