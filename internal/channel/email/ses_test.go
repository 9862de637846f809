package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/notifications-delivery/internal/channel"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

func TestSESSendEmail(t *testing.T) {
	api := new(mockSES)
	s := &SES{api: api, configurationSet: "notify"}

	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return aws.ToString(in.FromEmailAddress) == "source@notify.gov.uk" &&
			len(in.Destination.ToAddresses) == 1 &&
			in.Destination.ToAddresses[0] == "random@random.com" &&
			aws.ToString(in.Content.Simple.Subject.Data) == "Email subject" &&
			aws.ToString(in.Content.Simple.Body.Text.Data) == "Email body" &&
			aws.ToString(in.ConfigurationSetName) == "notify"
	})).Return(&sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil)

	id, err := s.SendEmail(context.Background(), channel.Email{
		From:    "source@notify.gov.uk",
		To:      "random@random.com",
		Subject: "Email subject",
		Body:    "Email body",
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-1", id)
	api.AssertExpectations(t)
}

func TestSESSendEmailNotVerified(t *testing.T) {
	api := new(mockSES)
	s := &SES{api: api}

	api.On("SendEmail", mock.Anything, mock.Anything).
		Return(nil, errors.New("MessageRejected: Email address is not verified"))

	_, err := s.SendEmail(context.Background(), channel.Email{From: "source@notify.gov.uk", To: "random@random.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source@notify.gov.uk")
}

func TestSESStatusUnknown(t *testing.T) {
	st, err := (&SES{}).Status(context.Background(), "ses-1")
	require.NoError(t, err)
	assert.Equal(t, channel.StateUnknown, st)
}
