package messaging

import (
	"time"

	"clearway-webhooks/internal/core/domain"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// NewRouter builds a watermill router with one logging consumer per routed
// channel, so every inbound event leaves a structured trace even before a
// business consumer subscribes. Run it with router.Run(ctx).
func NewRouter(subscriber message.Subscriber, log zerolog.Logger) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 10 * time.Second,
	}, NewLoggerAdapter(log))
	if err != nil {
		return nil, err
	}

	consumer := &loggingConsumer{log: log}
	for _, kind := range domain.InboundEventKinds {
		channel := kind.Channel()
		router.AddConsumerHandler("log-"+channel, channel, subscriber, consumer.Handle)
	}
	return router, nil
}

type loggingConsumer struct {
	log zerolog.Logger
}

// Handle logs a routed event. Undecodable messages are logged and acked so
// they are not redelivered forever.
func (c *loggingConsumer) Handle(msg *message.Message) error {
	env, err := DecodeEnvelope(msg)
	if err != nil {
		c.log.Error().Err(err).Str("message_id", msg.UUID).Msg("consumer: dropping undecodable event")
		return nil
	}

	c.log.Info().
		Str("message_id", msg.UUID).
		Str("administrator", env.Administrator).
		Str("event_type", env.EventType).
		Str("external_id", env.ExternalID).
		Str("related_id", env.RelatedID).
		Msg("consumer: routed event received")
	return nil
}
