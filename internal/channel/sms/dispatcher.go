package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
	"github.com/jmehdipour/notifications-delivery/internal/util"
)

var (
	ErrNoHealthy       = errors.New("no healthy providers")
	ErrNoAcquire       = errors.New("provider not acquired")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrBadRef          = errors.New("malformed delivery reference")
)

// refSep separates provider name and provider id in delivery references.
const refSep = ":"

// Dispatcher spreads SMS over healthy providers round-robin and retries on
// another provider up to maxAttempts times. Returned delivery ids are
// "provider:id" so Status can route back to the provider that sent it.
type Dispatcher struct {
	providers         []Provider
	byName            map[string]Provider
	roundRobinCounter atomic.Uint64
	maxAttempts       int
	from              string
	countryCode       string
}

func NewDispatcher(provs []Provider, maxAttempts int, from, defaultCountryCode string) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 2
	}

	byName := make(map[string]Provider, len(provs))
	for _, p := range provs {
		byName[p.Name()] = p
	}

	return &Dispatcher{
		providers:   provs,
		byName:      byName,
		maxAttempts: maxAttempts,
		from:        from,
		countryCode: defaultCountryCode,
	}
}

func (d *Dispatcher) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := d.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (d *Dispatcher) tryOnce(ctx context.Context, msg Message) (string, error) {
	p, err := d.selectProvider()
	if err != nil {
		return "", err
	}

	if !p.Acquire() {
		return "", ErrNoAcquire
	}

	id, err := p.Send(ctx, msg)
	if err != nil {
		return "", err
	}

	return p.Name() + refSep + id, nil
}

// SendSMS implements channel.SMSSender.
func (d *Dispatcher) SendSMS(ctx context.Context, to, body string) (string, error) {
	msg := Message{
		From: d.from,
		To:   util.NormalizePhone(to, d.countryCode),
		Body: body,
	}
	if msg.To == "" {
		return "", fmt.Errorf("invalid recipient %q", to)
	}

	var last error
	for i := 0; i < d.maxAttempts; i++ {
		ref, err := d.tryOnce(ctx, msg)
		if err == nil {
			return ref, nil
		}
		last = err
		if ctx.Err() != nil {
			break
		}
	}

	if last == nil {
		last = errors.New("send sms failed")
	}

	return "", last
}

// Status implements channel.StatusChecker for references returned by SendSMS.
func (d *Dispatcher) Status(ctx context.Context, ref string) (channel.DeliveryState, error) {
	name, id, ok := strings.Cut(ref, refSep)
	if !ok || name == "" || id == "" {
		return channel.StateUnknown, fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	p, ok := d.byName[name]
	if !ok {
		return channel.StateUnknown, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p.Status(ctx, id)
}
