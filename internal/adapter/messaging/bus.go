package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"clearway-webhooks/internal/core/domain"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
)

// Message metadata keys set on every routed event.
const (
	MetadataAdministrator = "administrator"
	MetadataEventType     = "event_type"
	MetadataExternalID    = "external_id"
)

// EventBus is the in-process channel for routed inbound events. It implements
// ports.EventPublisher and exposes a watermill subscriber for consumers.
type EventBus struct {
	pubsub *gochannel.GoChannel
	log    zerolog.Logger
}

// NewEventBus creates an in-memory bus. Messages published on a channel with
// no subscriber are discarded.
func NewEventBus(log zerolog.Logger) *EventBus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, NewLoggerAdapter(log))

	return &EventBus{pubsub: pubsub, log: log}
}

// Publish serializes envelope and publishes it on channel.
func (b *EventBus) Publish(ctx context.Context, channel string, envelope domain.RoutedEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode routed event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataAdministrator, envelope.Administrator)
	msg.Metadata.Set(MetadataEventType, envelope.EventType)
	msg.Metadata.Set(MetadataExternalID, envelope.ExternalID)
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(channel, msg); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscriber returns the subscriber side of the bus.
func (b *EventBus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Close stops the bus and closes every subscription.
func (b *EventBus) Close() error {
	return b.pubsub.Close()
}

// DecodeEnvelope parses a message produced by Publish.
func DecodeEnvelope(msg *message.Message) (domain.RoutedEnvelope, error) {
	var env domain.RoutedEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return env, fmt.Errorf("decode routed event %s: %w", msg.UUID, err)
	}
	return env, nil
}
