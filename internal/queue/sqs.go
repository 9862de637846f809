package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/jmehdipour/notifications-delivery/internal/awscfg"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

// ReceiveOptions are applied to every receive call.
type ReceiveOptions struct {
	MaxMessages       int
	VisibilityTimeout time.Duration
	WaitTime          time.Duration // long polling; 0 = short poll
	AttributeNames    []string
}

type sqsAPI interface {
	ListQueues(ctx context.Context, in *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQS is the queue transport. Redelivery is left entirely to the
// visibility timeout: a message that is not deleted comes back later.
type SQS struct {
	api sqsAPI
}

func NewSQS(cfg aws.Config, endpoint string) *SQS {
	return &SQS{api: sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = awscfg.EndpointOverride(endpoint)
	})}
}

// Queues lists the urls of all queues whose name starts with prefix.
func (q *SQS) Queues(ctx context.Context, prefix string) ([]string, error) {
	in := &sqs.ListQueuesInput{}
	if prefix != "" {
		in.QueueNamePrefix = aws.String(prefix)
	}

	var urls []string
	p := sqs.NewListQueuesPaginator(q.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("sqs list queues prefix=%q: %w", prefix, err)
		}
		urls = append(urls, page.QueueUrls...)
	}
	return urls, nil
}

// QueueURL resolves a queue name.
func (q *SQS) QueueURL(ctx context.Context, name string) (string, error) {
	out, err := q.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("sqs get queue url %s: %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

func (q *SQS) Receive(ctx context.Context, queueURL string, opts ReceiveOptions) ([]model.Envelope, error) {
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   int32(opts.MaxMessages),
		VisibilityTimeout:     int32(opts.VisibilityTimeout / time.Second),
		WaitTimeSeconds:       int32(opts.WaitTime / time.Second),
		MessageAttributeNames: opts.AttributeNames,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive %s: %w", queueURL, err)
	}

	envs := make([]model.Envelope, 0, len(out.Messages))
	for _, m := range out.Messages {
		attrs := make(map[string]string, len(m.MessageAttributes))
		for name, v := range m.MessageAttributes {
			if v.StringValue != nil {
				attrs[name] = *v.StringValue
			}
		}
		envs = append(envs, model.Envelope{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Queue:         queueURL,
			Body:          aws.ToString(m.Body),
			Attributes:    attrs,
		})
	}
	return envs, nil
}

func (q *SQS) Delete(ctx context.Context, env model.Envelope) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(env.Queue),
		ReceiptHandle: aws.String(env.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete %s from %s: %w", env.ID, env.Queue, err)
	}
	return nil
}

// Send publishes body with string attributes and returns the message id.
func (q *SQS) Send(ctx context.Context, queueURL, body string, attrs map[string]string) (string, error) {
	mattrs := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		mattrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	out, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: mattrs,
	})
	if err != nil {
		return "", fmt.Errorf("sqs send to %s: %w", queueURL, err)
	}
	return aws.ToString(out.MessageId), nil
}
