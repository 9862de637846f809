package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/jmehdipour/notifications-delivery/internal/awscfg"
	"github.com/jmehdipour/notifications-delivery/internal/channel"
)

const charset = "UTF-8"

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends plain text email through Amazon SES.
type SES struct {
	api              sesAPI
	configurationSet string
}

func NewSES(cfg aws.Config, endpoint, configurationSet string) *SES {
	return &SES{
		api: sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
			o.BaseEndpoint = awscfg.EndpointOverride(endpoint)
		}),
		configurationSet: configurationSet,
	}
}

func (s *SES) SendEmail(ctx context.Context, msg channel.Email) (string, error) {
	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String(charset)},
				},
			},
		},
	}
	if s.configurationSet != "" {
		in.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.api.SendEmail(ctx, in)
	if err != nil {
		return "", fmt.Errorf("ses send email from %s: %w", msg.From, err)
	}
	if out.MessageId == nil || *out.MessageId == "" {
		return "", errors.New("ses send email: empty message id")
	}
	return *out.MessageId, nil
}

// Status is always unknown: SES reports delivery asynchronously through event destinations.
func (s *SES) Status(ctx context.Context, id string) (channel.DeliveryState, error) {
	return channel.StateUnknown, nil
}
