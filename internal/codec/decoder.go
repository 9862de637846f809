package codec

import (
	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

// Payload is the signed body of a queue message. Only the fields relevant
// to the message type are set.
type Payload struct {
	To          *string `json:"to,omitempty"`
	ToAddress   *string `json:"to_address,omitempty"`
	FromAddress *string `json:"from_address,omitempty"`
	Subject     *string `json:"subject,omitempty"`
	Body        *string `json:"body,omitempty"`
	Content     *string `json:"content,omitempty"`
	Job         *string `json:"job,omitempty"`
}

// Decoder turns envelopes into typed requests.
type Decoder struct {
	signer *Signer
}

func NewDecoder(signer *Signer) *Decoder {
	return &Decoder{signer: signer}
}

// Decode verifies and parses env. Every error it returns is a decode failure.
// An unrecognized type is not a decode error: it yields model.Unsupported
// so that dispatch can reject it and the job still gets finalized.
func (d *Decoder) Decode(env model.Envelope) (model.Request, error) {
	attrs := make(map[string]string, len(model.RequiredAttributes))
	for _, name := range model.RequiredAttributes {
		v, ok := env.Attr(name)
		if !ok {
			return nil, failure.Decodef("message %s: missing attribute %q", env.ID, name)
		}
		attrs[name] = v
	}

	var p Payload
	if err := d.signer.Loads(env.Body, &p); err != nil {
		return nil, failure.Decode("decrypt message "+env.ID, err)
	}

	to := deref(p.To)
	if to == "" {
		to = deref(p.ToAddress)
	}
	if to == "" {
		return nil, failure.Decodef("message %s: payload has neither to nor to_address", env.ID)
	}

	common := model.Common{
		To:             to,
		ServiceID:      attrs[model.AttrServiceID],
		TemplateID:     attrs[model.AttrTemplateID],
		NotificationID: attrs[model.AttrNotificationID],
		JobID:          deref(p.Job),
	}

	typ, ok := model.LookupNotificationType(attrs[model.AttrType])
	if !ok {
		return model.Unsupported{Common: common, RawType: attrs[model.AttrType]}, nil
	}

	switch typ {
	case model.TypeEmail:
		if deref(p.ToAddress) != "" {
			common.To = deref(p.ToAddress)
		}
		for field, v := range map[string]*string{"from_address": p.FromAddress, "subject": p.Subject, "body": p.Body} {
			if v == nil {
				return nil, failure.Decodef("message %s: email payload missing %s", env.ID, field)
			}
		}
		return model.Email{
			Common:      common,
			FromAddress: *p.FromAddress,
			Subject:     *p.Subject,
			Body:        *p.Body,
		}, nil
	default:
		if p.Content != nil {
			return model.SMSInline{Common: common, Content: *p.Content}, nil
		}
		return model.SMSTemplate{Common: common}, nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr is a helper for building payloads.
func StringPtr(s string) *string { return &s }
