package notifyapi

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

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

// HTTPError is a non-2xx answer from the API. Transport errors are reported
// as 503 so that a dead or unreachable API counts as unavailable.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("notify api %s %s: status=%d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	return target == failure.ErrServiceUnavailable && e.StatusCode == http.StatusServiceUnavailable
}

// InvalidResponseError is a 2xx answer that does not match the API contract.
type InvalidResponseError struct {
	Method string
	Path   string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("notify api %s %s: invalid response: %v", e.Method, e.Path, e.Err)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

func (e *InvalidResponseError) Is(target error) bool { return target == failure.ErrInvalidResponse }

// Client resolves templates and records job notification statuses against
// the notify API. Requests carry a short-lived HS256 bearer token issued
// for clientID.
type Client struct {
	baseURL  string
	clientID string
	secret   []byte
	http     *http.Client
	now      func() time.Time
}

func New(baseURL, clientID, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   []byte(secret),
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

func (c *Client) token() (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": c.clientID,
		"iat": c.now().Unix(),
	})
	return t.SignedString(c.secret)
}

// Resolve returns the rendered content of a service template.
func (c *Client) Resolve(ctx context.Context, serviceID, templateID string) (string, error) {
	path := fmt.Sprintf("/service/%s/template/%s", url.PathEscape(serviceID), url.PathEscape(templateID))

	var res struct {
		Content *string `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return "", err
	}
	if res.Content == nil {
		return "", &InvalidResponseError{Method: http.MethodGet, Path: path, Err: errors.New("missing content")}
	}
	return *res.Content, nil
}

type notificationReq struct {
	ID         string `json:"id"`
	TemplateID string `json:"template"`
	JobID      string `json:"job"`
	To         string `json:"to"`
	Status     string `json:"status"`
}

// Record reports the terminal status of a job notification.
func (c *Client) Record(ctx context.Context, rec model.FinalizationRecord) error {
	path := fmt.Sprintf("/service/%s/job/%s/notification", url.PathEscape(rec.ServiceID), url.PathEscape(rec.JobID))
	body := notificationReq{
		ID:         rec.NotificationID,
		TemplateID: rec.TemplateID,
		JobID:      rec.JobID,
		To:         rec.To,
		Status:     rec.Status.String(),
	}

	var res map[string]any
	return c.do(ctx, http.MethodPost, path, body, &res)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	tok, err := c.token()
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "notifications-delivery")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &HTTPError{Method: method, Path: path, StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &HTTPError{Method: method, Path: path, StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{Method: method, Path: path, StatusCode: res.StatusCode, Message: errorMessage(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &InvalidResponseError{Method: method, Path: path, Err: err}
	}
	return nil
}

// errorMessage extracts {"message": ...} from an error body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != nil {
		return fmt.Sprint(body.Message)
	}
	return strings.TrimSpace(string(raw))
}
