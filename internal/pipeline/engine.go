package pipeline

import (
	"context"
	"errors"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

// TemplateResolver renders a template when a request carries no inline content.
type TemplateResolver interface {
	Resolve(ctx context.Context, serviceID, templateID string) (string, error)
}

// Engine picks the delivery path for a request and classifies every failure.
type Engine struct {
	email     channel.EmailSender
	sms       channel.SMSSender
	templates TemplateResolver
}

func NewEngine(email channel.EmailSender, sms channel.SMSSender, templates TemplateResolver) *Engine {
	return &Engine{email: email, sms: sms, templates: templates}
}

// Dispatch sends req. The returned outcome is always usable: its status is
// sent only if the channel accepted the message, failed otherwise.
func (e *Engine) Dispatch(ctx context.Context, req model.Request) (model.Outcome, error) {
	out := model.FailedOutcome()

	switch r := req.(type) {
	case model.Email:
		id, err := e.email.SendEmail(ctx, channel.Email{
			From:    r.FromAddress,
			To:      r.To,
			Subject: r.Subject,
			Body:    r.Body,
		})
		if err != nil {
			return out, channelFailure("send email", err)
		}
		return sent(id), nil

	case model.SMSInline:
		return e.sendSMS(ctx, r.To, r.Content)

	case model.SMSTemplate:
		content, err := e.templates.Resolve(ctx, r.ServiceID, r.TemplateID)
		if err != nil {
			return out, failure.Classify("resolve template "+r.TemplateID, err)
		}
		return e.sendSMS(ctx, r.To, content)

	default:
		return out, failure.Processingf("invalid type %s for notification id %s", req.Type(), req.Header().NotificationID)
	}
}

func (e *Engine) sendSMS(ctx context.Context, to, content string) (model.Outcome, error) {
	id, err := e.sms.SendSMS(ctx, to, content)
	if err != nil {
		return model.FailedOutcome(), channelFailure("send sms", err)
	}
	return sent(id), nil
}

func sent(id string) model.Outcome {
	return model.Outcome{Status: model.StatusSent, ProviderRef: id}
}

// channelFailure treats every channel rejection as permanent: bad addresses
// and malformed content do not get better on redelivery.
func channelFailure(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return failure.Processing(op, err)
}
