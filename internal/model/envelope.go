package model

// Message attribute names carried next to the encrypted body.
const (
	AttrType           = "type"
	AttrServiceID      = "service_id"
	AttrTemplateID     = "template_id"
	AttrNotificationID = "notification_id"
)

// RequiredAttributes must be present on every envelope.
var RequiredAttributes = []string{AttrType, AttrServiceID, AttrTemplateID, AttrNotificationID}

// Envelope is one raw message received from a queue.
type Envelope struct {
	ID            string            // transport message id, logging only
	ReceiptHandle string            // needed to delete the message
	Queue         string            // queue url it was received from
	Body          string            // signed payload
	Attributes    map[string]string // string message attributes
}

// Attr returns a non-empty attribute value.
func (e Envelope) Attr(name string) (string, bool) {
	v, ok := e.Attributes[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
