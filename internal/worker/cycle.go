package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/metrics"
	"github.com/jmehdipour/notifications-delivery/internal/model"
	"github.com/jmehdipour/notifications-delivery/internal/pipeline"
	"github.com/jmehdipour/notifications-delivery/internal/queue"
	"github.com/jmehdipour/notifications-delivery/internal/util"
)

// Transport is the queue side of a cycle.
type Transport interface {
	Queues(ctx context.Context, prefix string) ([]string, error)
	Receive(ctx context.Context, queueURL string, opts queue.ReceiveOptions) ([]model.Envelope, error)
	Delete(ctx context.Context, env model.Envelope) error
}

type Processor interface {
	Process(ctx context.Context, env model.Envelope) (pipeline.Result, error)
}

// Journal receives one record per processing attempt. Journal errors are
// logged and never change what happens to the message.
type Journal interface {
	Record(ctx context.Context, d model.Delivery) error
}

// Cycle:
// - lists the queues matching QueuePrefix,
// - receives one bounded batch from each, strictly one queue after the other,
// - processes every message in order and deletes it unless the failure is transient.
type Cycle struct {
	// Dependencies
	Transport Transport
	Processor Processor
	Journals  []Journal
	Log       *zap.Logger

	// Behavior
	QueuePrefix string
	Receive     queue.ReceiveOptions
}

// NewCycle builds a cycle with defaults matching a standard SQS receive.
func NewCycle(transport Transport, processor Processor, log *zap.Logger, prefix string, journals ...Journal) *Cycle {
	return &Cycle{
		Transport:   transport,
		Processor:   processor,
		Journals:    journals,
		Log:         log,
		QueuePrefix: prefix,
		Receive: queue.ReceiveOptions{
			MaxMessages:       10,
			VisibilityTimeout: 30 * time.Second,
			AttributeNames:    model.RequiredAttributes,
		},
	}
}

// Run executes one cycle. A failure confined to one queue is logged and the
// cycle moves on; only a failure to list queues is returned.
func (c *Cycle) Run(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	queues, err := c.Transport.Queues(ctx, c.QueuePrefix)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("list queues: %w", err)
	}

	for _, q := range queues {
		if ctx.Err() != nil {
			break
		}
		if err := c.drainQueue(ctx, q); err != nil {
			metrics.FailuresTotal.WithLabelValues("unclassified").Inc()
			c.Log.Error("unexpected error processing messages from queue, remaining batch left for redelivery",
				zap.String("queue", q), zap.Error(err))
		}
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	return nil
}

// drainQueue processes one batch. It returns on the first unclassified
// failure; the rest of the batch stays in the queue.
func (c *Cycle) drainQueue(ctx context.Context, queueURL string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &failure.Anomaly{Reason: r}
		}
	}()

	envs, err := c.Transport.Receive(ctx, queueURL, c.Receive)
	if err != nil {
		return err
	}

	for _, env := range envs {
		// Stop between messages on shutdown; the rest of the batch is redelivered.
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.handle(context.WithoutCancel(ctx), env); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cycle) handle(ctx context.Context, env model.Envelope) error {
	log := c.Log.With(zap.String("queue", env.Queue), zap.String("message_id", env.ID))
	log.Info("processing message")

	res, err := c.Processor.Process(ctx, env)

	toDelete := true
	if err != nil {
		kind, ok := failure.KindOf(err)
		if !ok {
			c.journal(ctx, env, res, err, false)
			return err
		}
		metrics.FailuresTotal.WithLabelValues(kind.String()).Inc()

		if kind.Permanent() {
			log.Error("failed processing message, the message will not be returned to the queue",
				zap.String("kind", kind.String()), zap.Error(err))
		} else {
			toDelete = false
			log.Error("failed processing message, the message will be returned to the queue",
				zap.String("kind", kind.String()), zap.Error(err))
		}
	}

	if res.Request != nil {
		metrics.MessagesTotal.WithLabelValues(model.TypeLabel(res.Request.Type().String()), res.Outcome.Status.String()).Inc()
	}

	if toDelete {
		if derr := c.Transport.Delete(ctx, env); derr != nil {
			c.journal(ctx, env, res, errors.Join(err, derr), false)
			return derr
		}
		metrics.DeletedTotal.Inc()
		log.Info("deleted message")
	}

	c.journal(ctx, env, res, err, toDelete)
	return nil
}

func (c *Cycle) journal(ctx context.Context, env model.Envelope, res pipeline.Result, err error, deleted bool) {
	if len(c.Journals) == 0 {
		return
	}

	d := deliveryFrom(env, res, err, deleted)
	for _, j := range c.Journals {
		if jerr := j.Record(ctx, d); jerr != nil {
			c.Log.Warn("journal record failed",
				zap.String("delivery_id", d.ID), zap.String("message_id", env.ID), zap.Error(jerr))
		}
	}
}

func deliveryFrom(env model.Envelope, res pipeline.Result, err error, deleted bool) model.Delivery {
	d := model.Delivery{
		ID:             util.New(),
		Queue:          env.Queue,
		MessageID:      env.ID,
		NotificationID: env.Attributes[model.AttrNotificationID],
		ServiceID:      env.Attributes[model.AttrServiceID],
		TemplateID:     env.Attributes[model.AttrTemplateID],
		Type:           model.TypeLabel(env.Attributes[model.AttrType]),
		Variant:        "undecoded",
		Status:         res.Outcome.Status,
		ProviderRef:    res.Outcome.ProviderRef,
		Deleted:        deleted,
		CreatedAt:      time.Now().UTC(),
	}
	if d.Status == "" {
		d.Status = model.StatusFailed
	}
	if res.Request != nil {
		h := res.Request.Header()
		d.JobID = h.JobID
		d.Recipient = h.To
		d.Variant = model.Variant(res.Request)
	}
	if err != nil {
		d.Error = err.Error()
		if k, ok := failure.KindOf(err); ok {
			d.FailureKind = k.String()
		} else {
			d.FailureKind = "unclassified"
		}
	}
	return d
}
