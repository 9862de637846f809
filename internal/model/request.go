package model

import "strings"

type NotificationType string

const (
	TypeEmail NotificationType = "email"
	TypeSMS   NotificationType = "sms"
)

func (t NotificationType) String() string { return string(t) }

// ParseNotificationType normalizes input.
// Returns (value, true) if recognized; otherwise the raw value and false.
func ParseNotificationType(s string) (NotificationType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return TypeEmail, true
	case "sms":
		return TypeSMS, true
	default:
		return NotificationType(s), false
	}
}

// LookupNotificationType matches s exactly, as carried on the wire.
func LookupNotificationType(s string) (NotificationType, bool) {
	switch t := NotificationType(s); t {
	case TypeEmail, TypeSMS:
		return t, true
	default:
		return t, false
	}
}

// TypeLabel maps a raw type to a bounded set of values for metrics and the
// journal: a known type, "unsupported", or empty when absent.
func TypeLabel(s string) string {
	if s == "" {
		return ""
	}
	if t, ok := LookupNotificationType(s); ok {
		return t.String()
	}
	return "unsupported"
}

// Common holds the fields every decoded request carries.
type Common struct {
	To             string
	ServiceID      string
	TemplateID     string
	NotificationID string
	JobID          string // empty for direct (non-batch) sends
}

// HasJob reports whether the request belongs to a job and must be finalized.
func (c Common) HasJob() bool { return c.JobID != "" }

// Request is a decoded delivery request. The set of variants is closed:
// Email, SMSInline, SMSTemplate and Unsupported.
type Request interface {
	Header() Common
	Type() NotificationType
	isRequest()
}

type Email struct {
	Common
	FromAddress string
	Subject     string
	Body        string
}

// SMSInline carries its content in the payload.
type SMSInline struct {
	Common
	Content string
}

// SMSTemplate has no content; it is rendered from ServiceID + TemplateID.
type SMSTemplate struct {
	Common
}

// Unsupported is a well-formed envelope whose type attribute names no known channel.
type Unsupported struct {
	Common
	RawType string
}

func (r Email) Header() Common       { return r.Common }
func (r SMSInline) Header() Common   { return r.Common }
func (r SMSTemplate) Header() Common { return r.Common }
func (r Unsupported) Header() Common { return r.Common }

func (Email) Type() NotificationType         { return TypeEmail }
func (SMSInline) Type() NotificationType     { return TypeSMS }
func (SMSTemplate) Type() NotificationType   { return TypeSMS }
func (r Unsupported) Type() NotificationType { return NotificationType(r.RawType) }

func (Email) isRequest()       {}
func (SMSInline) isRequest()   {}
func (SMSTemplate) isRequest() {}
func (Unsupported) isRequest() {}

// Variant names the request shape, used for logs and the delivery journal.
func Variant(r Request) string {
	switch r.(type) {
	case Email:
		return "email"
	case SMSInline:
		return "sms_inline"
	case SMSTemplate:
		return "sms_template"
	default:
		return "unsupported"
	}
}
