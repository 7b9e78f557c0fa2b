// Package events carries operation events from the dispatcher to the
// analytics consumer over an in-process watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"pdf-tools-bot/internal/domain"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicOperations is the topic every handled command is published on.
const TopicOperations = "bot.operations"

// NewPubSub creates the in-process bus.
func NewPubSub(debug bool) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(debug, false),
	)
}

// Publisher serializes operation events onto the bus.
type Publisher struct {
	publisher message.Publisher
	topic     string
}

var _ domain.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher for TopicOperations.
func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{publisher: publisher, topic: TopicOperations}
}

// Publish sends one event.
func (p *Publisher) Publish(ctx context.Context, event domain.OperationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return p.publisher.Publish(p.topic, msg)
}
