package sms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kavenegar/kavenegar-go"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
)

// Kavenegar delivery status codes (sms/select).
const (
	kavenegarFailed      = 6
	kavenegarDelivered   = 10
	kavenegarUndelivered = 11
	kavenegarBlocked     = 14
)

// KavenegarProvider sends through the Kavenegar REST API.
type KavenegarProvider struct {
	name   string
	api    *kavenegar.Kavenegar
	sender string
	br     *Breaker
}

func NewKavenegarProvider(name, apiKey, sender string, failThreshold, openForMs int) (*KavenegarProvider, error) {
	if apiKey == "" {
		return nil, errors.New("kavenegar: empty api key")
	}
	if openForMs <= 0 {
		openForMs = 15000
	}
	return &KavenegarProvider{
		name:   name,
		api:    kavenegar.New(apiKey),
		sender: sender,
		br:     NewBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}, nil
}

func (p *KavenegarProvider) Name() string  { return p.name }
func (p *KavenegarProvider) Ready() bool   { return p.br.Ready() }
func (p *KavenegarProvider) Acquire() bool { return p.br.TryAcquire() }

func (p *KavenegarProvider) Send(ctx context.Context, msg Message) (string, error) {
	sender := p.sender
	if msg.From != "" {
		sender = msg.From
	}

	res, err := p.api.Message.Send(sender, []string{msg.To}, msg.Body, nil)
	if err != nil {
		p.br.OnFailure()
		return "", kavenegarError("send", err)
	}
	if len(res) == 0 {
		p.br.OnFailure()
		return "", fmt.Errorf("kavenegar send: no response entries")
	}

	p.br.OnSuccess()

	return strconv.Itoa(res[0].MessageID), nil
}

func (p *KavenegarProvider) Status(ctx context.Context, id string) (channel.DeliveryState, error) {
	res, err := p.api.Message.Select([]string{id})
	if err != nil {
		return channel.StateUnknown, kavenegarError("select", err)
	}
	if len(res) == 0 {
		return channel.StateUnknown, nil
	}
	switch int(res[0].Status) {
	case kavenegarDelivered:
		return channel.StateDelivered, nil
	case kavenegarUndelivered:
		return channel.StateUndelivered, nil
	case kavenegarFailed, kavenegarBlocked:
		return channel.StateFailed, nil
	default:
		return channel.StateUnknown, nil
	}
}

func kavenegarError(op string, err error) error {
	switch err := err.(type) {
	case *kavenegar.APIError:
		return fmt.Errorf("kavenegar %s: api error: %w", op, err)
	case *kavenegar.HTTPError:
		return fmt.Errorf("kavenegar %s: http error: %w", op, err)
	default:
		return fmt.Errorf("kavenegar %s: %w", op, err)
	}
}
