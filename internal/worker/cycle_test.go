package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/metrics"
	"github.com/jmehdipour/notifications-delivery/internal/model"
	"github.com/jmehdipour/notifications-delivery/internal/pipeline"
	"github.com/jmehdipour/notifications-delivery/internal/queue"
)

type fakeTransport struct {
	queues    []string
	listErr   error
	batches   map[string][]model.Envelope
	deleteErr map[string]error

	received []string
	deleted  []string
}

func (f *fakeTransport) Queues(_ context.Context, _ string) ([]string, error) {
	return f.queues, f.listErr
}

func (f *fakeTransport) Receive(_ context.Context, queueURL string, _ queue.ReceiveOptions) ([]model.Envelope, error) {
	f.received = append(f.received, queueURL)
	return f.batches[queueURL], nil
}

func (f *fakeTransport) Delete(_ context.Context, env model.Envelope) error {
	if err := f.deleteErr[env.ID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, env.ID)
	return nil
}

// stubProcessor returns a canned result per message id and panics for ids in panics.
type stubProcessor struct {
	errs      map[string]error
	panics    map[string]bool
	processed []string
}

func (p *stubProcessor) Process(_ context.Context, env model.Envelope) (pipeline.Result, error) {
	p.processed = append(p.processed, env.ID)
	if p.panics[env.ID] {
		panic("boom " + env.ID)
	}
	req := model.SMSInline{Common: model.Common{To: "+447700900123", NotificationID: env.ID}, Content: "Hi"}
	if err := p.errs[env.ID]; err != nil {
		return pipeline.Result{Request: req, Outcome: model.FailedOutcome()}, err
	}
	return pipeline.Result{Request: req, Outcome: model.Outcome{Status: model.StatusSent, ProviderRef: "p:" + env.ID}}, nil
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Record(ctx context.Context, d model.Delivery) error {
	return m.Called(ctx, d).Error(0)
}

func envs(q string, ids ...string) []model.Envelope {
	out := make([]model.Envelope, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Envelope{ID: id, Queue: q, ReceiptHandle: "rh-" + id})
	}
	return out
}

func newTestCycle(tr Transport, p Processor, journals ...Journal) *Cycle {
	return NewCycle(tr, p, zap.NewNop(), "notification", journals...)
}

func TestCycleIsolatesQueues(t *testing.T) {
	tr := &fakeTransport{
		queues: []string{"A", "B"},
		batches: map[string][]model.Envelope{
			"A": envs("A", "a1", "a2", "a3"),
			"B": envs("B", "b1"),
		},
	}
	p := &stubProcessor{panics: map[string]bool{"a2": true}}

	require.NoError(t, newTestCycle(tr, p).Run(context.Background()))

	assert.Equal(t, []string{"A", "B"}, tr.received)
	assert.Equal(t, []string{"a1", "a2", "b1"}, p.processed)
	assert.Equal(t, []string{"a1", "b1"}, tr.deleted)
}

func TestCycleDeletionFollowsFailureKind(t *testing.T) {
	tr := &fakeTransport{
		queues: []string{"A"},
		batches: map[string][]model.Envelope{
			"A": envs("A", "ok", "decode", "processing", "invalid", "external"),
		},
	}
	p := &stubProcessor{errs: map[string]error{
		"decode":     failure.Decodef("missing attribute %s", "type"),
		"processing": failure.Processing("dispatch", errors.New("rejected")),
		"invalid":    failure.InvalidResponse("resolve", failure.ErrInvalidResponse),
		"external":   failure.External("resolve", failure.ErrServiceUnavailable),
	}}

	require.NoError(t, newTestCycle(tr, p).Run(context.Background()))

	assert.Equal(t, []string{"ok", "decode", "processing", "invalid", "external"}, p.processed)
	assert.Equal(t, []string{"ok", "decode", "processing", "invalid"}, tr.deleted)
}

func TestCycleUnclassifiedFailureAbandonsBatch(t *testing.T) {
	tr := &fakeTransport{
		queues: []string{"A", "B"},
		batches: map[string][]model.Envelope{
			"A": envs("A", "a1", "a2", "a3"),
			"B": envs("B", "b1"),
		},
	}
	p := &stubProcessor{errs: map[string]error{"a2": context.DeadlineExceeded}}

	require.NoError(t, newTestCycle(tr, p).Run(context.Background()))

	assert.Equal(t, []string{"a1", "a2", "b1"}, p.processed)
	assert.Equal(t, []string{"a1", "b1"}, tr.deleted)
}

func TestCycleDeleteErrorAbandonsBatch(t *testing.T) {
	tr := &fakeTransport{
		queues:    []string{"A"},
		batches:   map[string][]model.Envelope{"A": envs("A", "a1", "a2")},
		deleteErr: map[string]error{"a1": errors.New("receipt handle expired")},
	}
	p := &stubProcessor{}

	require.NoError(t, newTestCycle(tr, p).Run(context.Background()))

	assert.Equal(t, []string{"a1"}, p.processed)
	assert.Empty(t, tr.deleted)
}

func TestCycleListErrorFailsCycle(t *testing.T) {
	tr := &fakeTransport{listErr: errors.New("access denied")}

	err := newTestCycle(tr, &stubProcessor{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Empty(t, tr.received)
}

func TestCycleJournalsEveryAttempt(t *testing.T) {
	tr := &fakeTransport{
		queues:  []string{"A"},
		batches: map[string][]model.Envelope{"A": envs("A", "sent", "external")},
	}
	p := &stubProcessor{errs: map[string]error{
		"external": failure.External("finalize", fmt.Errorf("POST: %w", failure.ErrServiceUnavailable)),
	}}

	j := new(mockJournal)
	j.On("Record", mock.Anything, mock.MatchedBy(func(d model.Delivery) bool {
		return d.MessageID == "sent" && d.Deleted && d.Status == model.StatusSent &&
			d.ProviderRef == "p:sent" && d.Variant == "sms_inline" && d.FailureKind == ""
	})).Return(nil).Once()
	j.On("Record", mock.Anything, mock.MatchedBy(func(d model.Delivery) bool {
		return d.MessageID == "external" && !d.Deleted && d.Status == model.StatusFailed &&
			d.FailureKind == "external" && d.Error != ""
	})).Return(errors.New("journal down")).Once()

	require.NoError(t, newTestCycle(tr, p, j).Run(context.Background()))

	j.AssertExpectations(t)
	assert.Equal(t, []string{"sent"}, tr.deleted)
}

// unsupportedProcessor decodes every message into model.Unsupported with the raw type attribute.
type unsupportedProcessor struct{}

func (unsupportedProcessor) Process(_ context.Context, env model.Envelope) (pipeline.Result, error) {
	req := model.Unsupported{
		Common:  model.Common{To: "+447700900123", NotificationID: env.ID},
		RawType: env.Attributes[model.AttrType],
	}
	return pipeline.Result{Request: req, Outcome: model.FailedOutcome()},
		failure.Processingf("invalid type %s for notification id %s", req.RawType, env.ID)
}

func TestCycleBoundsTypeLabels(t *testing.T) {
	const rawType = "a-very-long-producer-supplied-type-value"

	env := model.Envelope{ID: "u1", Queue: "A", ReceiptHandle: "rh-u1", Attributes: map[string]string{
		model.AttrType:           rawType,
		model.AttrServiceID:      "svc-1",
		model.AttrTemplateID:     "tpl-1",
		model.AttrNotificationID: "u1",
	}}
	tr := &fakeTransport{queues: []string{"A"}, batches: map[string][]model.Envelope{"A": {env}}}

	j := new(mockJournal)
	j.On("Record", mock.Anything, mock.MatchedBy(func(d model.Delivery) bool {
		return d.Type == "unsupported" && d.Variant == "unsupported" && d.Deleted
	})).Return(nil).Once()

	unsupported := metrics.MessagesTotal.WithLabelValues("unsupported", "failed")
	before := testutil.ToFloat64(unsupported)
	series := testutil.CollectAndCount(metrics.MessagesTotal)

	require.NoError(t, newTestCycle(tr, unsupportedProcessor{}, j).Run(context.Background()))

	assert.Equal(t, before+1, testutil.ToFloat64(unsupported))
	assert.Equal(t, series, testutil.CollectAndCount(metrics.MessagesTotal), "raw type must not create a series")
	assert.Equal(t, []string{"u1"}, tr.deleted)
	j.AssertExpectations(t)
}

type countingRunner struct {
	runs    int
	explode bool
	err     error
}

func (r *countingRunner) Run(context.Context) error {
	r.runs++
	if r.explode {
		panic("cycle exploded")
	}
	return r.err
}

func TestSchedulerRunOnceRecovers(t *testing.T) {
	r := &countingRunner{explode: true}
	s := NewScheduler(r, 0, zap.NewNop())

	assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
	assert.Equal(t, 1, r.runs)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	r := &countingRunner{err: errors.New("list queues: throttled")}
	s := NewScheduler(r, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, r.runs)
}

func TestCycleStopsBetweenMessagesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTransport{
		queues:  []string{"A", "B"},
		batches: map[string][]model.Envelope{"A": envs("A", "a1", "a2"), "B": envs("B", "b1")},
	}
	p := &cancelOnFirst{cancel: cancel}

	require.NoError(t, newTestCycle(tr, p).Run(ctx))

	assert.Equal(t, []string{"a1"}, p.processed)
	assert.Equal(t, []string{"a1"}, tr.deleted)
	assert.Equal(t, []string{"A"}, tr.received)
}

// cancelOnFirst cancels the cycle context while the first message is in flight.
type cancelOnFirst struct {
	cancel    context.CancelFunc
	processed []string
}

func (p *cancelOnFirst) Process(ctx context.Context, env model.Envelope) (pipeline.Result, error) {
	p.processed = append(p.processed, env.ID)
	p.cancel()
	if ctx.Err() != nil {
		return pipeline.Result{}, ctx.Err()
	}
	req := model.SMSInline{Common: model.Common{To: "+447700900123"}, Content: "Hi"}
	return pipeline.Result{Request: req, Outcome: model.Outcome{Status: model.StatusSent}}, nil
}
