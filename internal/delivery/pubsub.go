package delivery

import (
	"context"
	"encoding/json"

	pubsub "cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

const attrFlow = "flow"

// PubSubDispatcher publishes delivery jobs to the delivery topic so a
// separate worker can execute them.
type PubSubDispatcher struct {
	publisher *pubsub.Publisher
	logg      *logger.Logger
}

func NewPubSubDispatcher(publisher *pubsub.Publisher, logg *logger.Logger) (*PubSubDispatcher, error) {
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "delivery publisher required")
	}
	return &PubSubDispatcher{publisher: publisher, logg: logg}, nil
}

func (d *PubSubDispatcher) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode delivery job")
	}

	result := d.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{attrFlow: string(job.Flow)},
	})
	if _, err := result.Get(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish delivery job")
	}

	if d.logg != nil {
		d.logg.Info(d.logg.WithReportID(ctx, job.ReportID), "delivery job published")
	}
	return nil
}

func (d *PubSubDispatcher) Close() error {
	d.publisher.Stop()
	return nil
}

// Consumer pulls delivery jobs from the subscription and runs them through
// the delivery service.
type Consumer struct {
	svc          *Service
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

func NewConsumer(svc *Service, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "delivery service required")
	}
	if subscription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "delivery subscription required")
	}
	return &Consumer{svc: svc, subscription: subscription, logg: logg}, nil
}

// Run blocks until the context is canceled. Malformed messages are acked and
// dropped; transient delivery failures are nacked for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logCtx := ctx
		if c.logg != nil {
			logCtx = c.logg.WithFields(ctx, map[string]any{"message_id": msg.ID})
		}

		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			if c.logg != nil {
				c.logg.Error(logCtx, "failed to decode delivery job", err)
			}
			msg.Ack()
			return
		}

		if err := c.svc.Deliver(ctx, job); err != nil {
			if c.logg != nil {
				c.logg.Error(logCtx, "delivery failed, nacking for retry", err)
			}
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
