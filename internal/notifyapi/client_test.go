package notifyapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

const (
	testClientID = "notify-delivery"
	testSecret   = "api-secret"
)

func checkToken(t *testing.T, r *http.Request) {
	t.Helper()
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.True(t, tok.Valid)
	assert.Equal(t, testClientID, claims["iss"])
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, testClientID, testSecret, time.Second)
}

func TestResolve(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		checkToken(t, r)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/service/svc-1/template/tpl-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"tpl-1","content":"Your code is 1234"}`))
	})

	content, err := c.Resolve(context.Background(), "svc-1", "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "Your code is 1234", content)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   failure.Kind
	}{
		{"service unavailable", http.StatusServiceUnavailable, `{"message":"down"}`, failure.KindExternal},
		{"not found", http.StatusNotFound, `{"message":"no template"}`, failure.KindProcessing},
		{"server error", http.StatusInternalServerError, `oops`, failure.KindProcessing},
		{"not json", http.StatusOK, `<html>`, failure.KindInvalidResponse},
		{"missing content", http.StatusOK, `{"id":"tpl-1"}`, failure.KindInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Resolve(context.Background(), "svc-1", "tpl-1")
			require.Error(t, err)
			k, ok := failure.KindOf(failure.Classify("resolve template", err))
			require.True(t, ok)
			assert.Equal(t, tt.kind, k)
		})
	}
}

func TestUnreachableAPIIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, testClientID, testSecret, time.Second)
	_, err := c.Resolve(context.Background(), "svc-1", "tpl-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrServiceUnavailable)
}

func TestRecord(t *testing.T) {
	var got notificationReq
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		checkToken(t, r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/service/svc-1/job/J1/notification", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"n-1"}}`))
	})

	err := c.Record(context.Background(), model.FinalizationRecord{
		ServiceID:      "svc-1",
		TemplateID:     "tpl-1",
		JobID:          "J1",
		To:             "+447700900123",
		Status:         model.StatusFailed,
		NotificationID: "n-1",
	})
	require.NoError(t, err)
	assert.Equal(t, notificationReq{ID: "n-1", TemplateID: "tpl-1", JobID: "J1", To: "+447700900123", Status: "failed"}, got)
}

func TestRecordUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.Record(context.Background(), model.FinalizationRecord{ServiceID: "svc-1", JobID: "J1"})
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusServiceUnavailable, herr.StatusCode)
	assert.ErrorIs(t, err, failure.ErrServiceUnavailable)
}
