package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/notifications-delivery/internal/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisherRecord(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w}

	d := model.Delivery{ID: "d-1", MessageID: "m-1", NotificationID: "n-1", Type: "email", Status: model.StatusSent}
	require.NoError(t, p.Record(context.Background(), d))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "n-1", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "status", Value: []byte("sent")})

	var got model.Delivery
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, model.StatusSent, got.Status)
}

func TestPublisherKeyFallsBackToMessageID(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w}

	require.NoError(t, p.Record(context.Background(), model.Delivery{MessageID: "m-1", Status: model.StatusFailed}))
	assert.Equal(t, "m-1", string(w.msgs[0].Key))
}

func TestPublisherPropagatesWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Publisher{w: w}

	assert.Error(t, p.Record(context.Background(), model.Delivery{MessageID: "m-1"}))
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
