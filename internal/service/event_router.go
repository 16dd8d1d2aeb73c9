package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"clearway-webhooks/internal/core/domain"
	"clearway-webhooks/internal/core/ports"

	"github.com/rs/zerolog"
)

// EventRouter maps verified partner events to internal channels.
type EventRouter struct {
	publisher ports.EventPublisher
	log       zerolog.Logger
}

// NewEventRouter creates a router publishing through publisher.
func NewEventRouter(publisher ports.EventPublisher, log zerolog.Logger) *EventRouter {
	return &EventRouter{publisher: publisher, log: log}
}

// Route publishes event on the channel of its kind. Unrecognised types go to
// the unknown channel rather than being dropped.
func (r *EventRouter) Route(ctx context.Context, administrator string, event domain.InboundEvent) error {
	kind := domain.ParseInboundEventKind(event.Type)
	if kind == domain.InboundEventUnknown {
		r.log.Warn().Str("administrator", administrator).Str("event_type", event.Type).Msg("router: unrecognised event type")
	}

	envelope := domain.RoutedEnvelope{
		Administrator: administrator,
		ExternalID:    event.ID,
		RelatedID:     relatedID(event.Data, kind.RelatedIDField()),
		EventType:     event.Type,
		RawEventData:  event.Data,
	}

	channel := kind.Channel()
	if err := r.publisher.Publish(ctx, channel, envelope); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}

	r.log.Debug().Str("channel", channel).Str("external_id", event.ID).Msg("router: event routed")
	return nil
}

// relatedID extracts data[field] as a string. Numbers keep their literal
// text; anything else yields "".
func relatedID(data json.RawMessage, field string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	raw, ok := fields[field]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}
