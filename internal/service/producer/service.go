package producer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jmehdipour/notifications-delivery/internal/codec"
	"github.com/jmehdipour/notifications-delivery/internal/model"
	"github.com/jmehdipour/notifications-delivery/internal/util"
)

var (
	ErrInvalidType      = errors.New("invalid type")
	ErrMissingRecipient = errors.New("missing recipient")
	ErrMissingField     = errors.New("missing field")
	ErrContentTooLong   = errors.New("content too long")
)

const maxSMSRunes = 918 // six concatenated segments

// Sender is the queue side of the producer.
type Sender interface {
	QueueURL(ctx context.Context, name string) (string, error)
	Send(ctx context.Context, queueURL, body string, attrs map[string]string) (string, error)
}

// Notification is one request to deliver, before signing.
type Notification struct {
	Type           string
	ServiceID      string
	TemplateID     string
	NotificationID string // generated when empty
	To             string
	JobID          string

	// sms inline content; empty means "render from template"
	Content string

	// email only
	FromAddress string
	Subject     string
	Body        string
}

// Receipt identifies an enqueued notification.
type Receipt struct {
	NotificationID string
	MessageID      string
	Queue          string
}

// Service signs notifications and puts them on the delivery queue for their type.
type Service struct {
	signer *codec.Signer
	sender Sender
	prefix string

	mu   sync.Mutex
	urls map[string]string
}

// New constructs the producer. Notifications of type t go to queue "<prefix>-<t>".
func New(signer *codec.Signer, sender Sender, queuePrefix string) *Service {
	return &Service{
		signer: signer,
		sender: sender,
		prefix: queuePrefix,
		urls:   make(map[string]string),
	}
}

// QueueName returns the queue notifications of type typ are sent to.
func (s *Service) QueueName(typ model.NotificationType) string {
	return s.prefix + "-" + typ.String()
}

// Enqueue validates n, builds the signed payload and sends it.
func (s *Service) Enqueue(ctx context.Context, n Notification) (Receipt, error) {
	typ, ok := model.ParseNotificationType(n.Type)
	if !ok {
		return Receipt{}, fmt.Errorf("%w %q", ErrInvalidType, n.Type)
	}
	if strings.TrimSpace(n.ServiceID) == "" || strings.TrimSpace(n.TemplateID) == "" {
		return Receipt{}, fmt.Errorf("%w: service_id and template_id", ErrMissingField)
	}

	p, err := buildPayload(typ, n)
	if err != nil {
		return Receipt{}, err
	}
	body, err := s.signer.Dumps(p)
	if err != nil {
		return Receipt{}, fmt.Errorf("sign payload: %w", err)
	}

	notificationID := n.NotificationID
	if notificationID == "" {
		notificationID = util.New()
	}

	url, err := s.queueURL(ctx, s.QueueName(typ))
	if err != nil {
		return Receipt{}, err
	}

	msgID, err := s.sender.Send(ctx, url, body, map[string]string{
		model.AttrType:           typ.String(),
		model.AttrServiceID:      n.ServiceID,
		model.AttrTemplateID:     n.TemplateID,
		model.AttrNotificationID: notificationID,
	})
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{NotificationID: notificationID, MessageID: msgID, Queue: url}, nil
}

func (s *Service) queueURL(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	url, ok := s.urls[name]
	s.mu.Unlock()
	if ok {
		return url, nil
	}

	url, err := s.sender.QueueURL(ctx, name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.urls[name] = url
	s.mu.Unlock()
	return url, nil
}

func buildPayload(typ model.NotificationType, n Notification) (codec.Payload, error) {
	to := strings.TrimSpace(n.To)
	if to == "" {
		return codec.Payload{}, ErrMissingRecipient
	}

	var p codec.Payload
	if n.JobID != "" {
		p.Job = codec.StringPtr(n.JobID)
	}

	switch typ {
	case model.TypeEmail:
		if n.FromAddress == "" || n.Subject == "" || n.Body == "" {
			return codec.Payload{}, fmt.Errorf("%w: email needs from_address, subject and body", ErrMissingField)
		}
		p.ToAddress = codec.StringPtr(to)
		p.FromAddress = codec.StringPtr(n.FromAddress)
		p.Subject = codec.StringPtr(n.Subject)
		p.Body = codec.StringPtr(n.Body)
	case model.TypeSMS:
		p.To = codec.StringPtr(to)
		if content := strings.TrimSpace(n.Content); content != "" {
			if utf8.RuneCountInString(content) > maxSMSRunes {
				return codec.Payload{}, ErrContentTooLong
			}
			p.Content = codec.StringPtr(content)
		}
	}
	return p, nil
}
