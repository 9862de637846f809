package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
	"github.com/jmehdipour/notifications-delivery/internal/codec"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, msg channel.Email) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, serviceID, templateID string) (string, error) {
	args := m.Called(ctx, serviceID, templateID)
	return args.String(0), args.Error(1)
}

type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Record(ctx context.Context, rec model.FinalizationRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type fixture struct {
	signer    *codec.Signer
	email     *MockEmailSender
	sms       *MockSMSSender
	templates *MockResolver
	reporter  *MockReporter
	processor *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := codec.NewSigner("secret", "salt")
	require.NoError(t, err)

	f := &fixture{
		signer:    signer,
		email:     new(MockEmailSender),
		sms:       new(MockSMSSender),
		templates: new(MockResolver),
		reporter:  new(MockReporter),
	}
	f.processor = NewProcessor(
		codec.NewDecoder(signer),
		NewEngine(f.email, f.sms, f.templates),
		NewFinalizer(f.reporter),
	)
	return f
}

func (f *fixture) envelope(t *testing.T, typ string, p codec.Payload) model.Envelope {
	t.Helper()
	body, err := f.signer.Dumps(p)
	require.NoError(t, err)
	return model.Envelope{
		ID:   "m-1",
		Body: body,
		Attributes: map[string]string{
			model.AttrType:           typ,
			model.AttrServiceID:      "svc-1",
			model.AttrTemplateID:     "tpl-1",
			model.AttrNotificationID: "n-1",
		},
	}
}

func (f *fixture) assertNoReport(t *testing.T) {
	t.Helper()
	f.reporter.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func record(job, to string, status model.DeliveryStatus) model.FinalizationRecord {
	return model.FinalizationRecord{
		ServiceID:      "svc-1",
		TemplateID:     "tpl-1",
		JobID:          job,
		To:             to,
		Status:         status,
		NotificationID: "n-1",
	}
}
