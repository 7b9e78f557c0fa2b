package events

import (
	"context"
	"encoding/json"

	"pdf-tools-bot/internal/domain"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Consumer records published events in the analytics repository.
type Consumer struct {
	subscriber message.Subscriber
	repo       domain.AnalyticsRepository
	logger     domain.Logger
}

// NewConsumer creates a consumer.
func NewConsumer(subscriber message.Subscriber, repo domain.AnalyticsRepository, logger domain.Logger) *Consumer {
	return &Consumer{subscriber: subscriber, repo: repo, logger: logger}
}

// Subscribe attaches to the topic. Events published before Subscribe are
// not delivered, so callers subscribe before they start publishing.
func (c *Consumer) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return c.subscriber.Subscribe(ctx, TopicOperations)
}

// Consume handles messages until the channel closes or ctx is done.
func (c *Consumer) Consume(ctx context.Context, messages <-chan *message.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.process(ctx, msg)
		}
	}
}

// Run subscribes and consumes in one call.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.Subscribe(ctx)
	if err != nil {
		return err
	}
	return c.Consume(ctx, messages)
}

func (c *Consumer) process(ctx context.Context, msg *message.Message) {
	var event domain.OperationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("Failed to unmarshal operation event", err, "message_id", msg.UUID)
		msg.Ack()
		return
	}

	// Analytics are best effort; a failed write is logged and acknowledged
	// so the bus never redelivers in a loop.
	if err := c.repo.Track(ctx, event); err != nil {
		c.logger.Error("Failed to record operation event", err, "command", event.Command, "user_id", event.UserID)
	}
	msg.Ack()
}
