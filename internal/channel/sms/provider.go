package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
)

type Message struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	Send(ctx context.Context, msg Message) (string, error)
	Status(ctx context.Context, id string) (channel.DeliveryState, error)
}

// HTTPProvider talks to a generic JSON SMS API:
//
//	POST {base}{send_path}          {"from","to","body"} -> {"id": "..."}
//	GET  {base}{status_path}/{id}   -> {"status": "delivered|undelivered|failed|..."}
type HTTPProvider struct {
	name       string
	baseURL    string
	sendPath   string
	statusPath string
	apiKey     string
	client     *http.Client
	br         *Breaker
}

func NewHTTPProvider(
	name, baseURL, sendPath, statusPath, apiKey string,
	timeoutMs, failThreshold, openForMs int,
) *HTTPProvider {
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &HTTPProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		sendPath:   sendPath,
		statusPath: statusPath,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:         NewBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *HTTPProvider) Name() string  { return p.name }
func (p *HTTPProvider) Ready() bool   { return p.br.Ready() }
func (p *HTTPProvider) Acquire() bool { return p.br.TryAcquire() }

func (p *HTTPProvider) Send(ctx context.Context, msg Message) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	if err := p.do(ctx, http.MethodPost, p.sendPath, msg, &res); err != nil {
		p.br.OnFailure()
		return "", err
	}
	if res.ID == "" {
		p.br.OnFailure()
		return "", fmt.Errorf("provider=%s: response without id", p.name)
	}

	p.br.OnSuccess()

	return res.ID, nil
}

func (p *HTTPProvider) Status(ctx context.Context, id string) (channel.DeliveryState, error) {
	var res struct {
		Status string `json:"status"`
	}
	path := strings.TrimRight(p.statusPath, "/") + "/" + url.PathEscape(id)
	if err := p.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return channel.StateUnknown, err
	}
	return channel.ParseDeliveryState(res.Status), nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("provider=%s path=%s status=%d", p.name, path, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("provider=%s path=%s: decode response: %w", p.name, path, err)
	}

	return nil
}
