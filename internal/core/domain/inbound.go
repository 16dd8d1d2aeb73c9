package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InboundWebhookLog records the first arrival of an external event.
// ExternalEventID is unique: a duplicate never produces a second row.
type InboundWebhookLog struct {
	ID              uuid.UUID       `json:"id"`
	Source          string          `json:"source"`
	EventType       string          `json:"event_type"`
	ExternalEventID string          `json:"external_event_id"`
	RawPayload      json.RawMessage `json:"raw_payload"`
	ProcessedAt     time.Time       `json:"processed_at"`
}

// InboundEvent is the partner's request body.
type InboundEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt string          `json:"created_at"`
}

// InboundEventKind enumerates the partner event families this service routes.
type InboundEventKind int

const (
	InboundEventUnknown InboundEventKind = iota
	InboundEventCapitalCallCreated
	InboundEventCapitalCallUpdated
	InboundEventCapitalCallCancelled
	InboundEventInvestorCreated
	InboundEventInvestorUpdated
	InboundEventDistributionCreated
)

// InboundEventKinds lists every kind, unknown included.
var InboundEventKinds = []InboundEventKind{
	InboundEventUnknown,
	InboundEventCapitalCallCreated,
	InboundEventCapitalCallUpdated,
	InboundEventCapitalCallCancelled,
	InboundEventInvestorCreated,
	InboundEventInvestorUpdated,
	InboundEventDistributionCreated,
}

// ParseInboundEventKind maps a partner event type to its kind. Anything not
// recognised is InboundEventUnknown, never dropped.
func ParseInboundEventKind(eventType string) InboundEventKind {
	switch eventType {
	case "capital_call.created":
		return InboundEventCapitalCallCreated
	case "capital_call.updated":
		return InboundEventCapitalCallUpdated
	case "capital_call.cancelled":
		return InboundEventCapitalCallCancelled
	case "investor.created":
		return InboundEventInvestorCreated
	case "investor.updated":
		return InboundEventInvestorUpdated
	case "distribution.created":
		return InboundEventDistributionCreated
	default:
		return InboundEventUnknown
	}
}

// Channel is the internal topic consumers subscribe to for this kind.
func (k InboundEventKind) Channel() string {
	switch k {
	case InboundEventCapitalCallCreated:
		return "fund_admin.capital_call.created"
	case InboundEventCapitalCallUpdated:
		return "fund_admin.capital_call.updated"
	case InboundEventCapitalCallCancelled:
		return "fund_admin.capital_call.cancelled"
	case InboundEventInvestorCreated:
		return "fund_admin.investor.created"
	case InboundEventInvestorUpdated:
		return "fund_admin.investor.updated"
	case InboundEventDistributionCreated:
		return "fund_admin.distribution.created"
	default:
		return "fund_admin.unknown"
	}
}

// RelatedIDField names the data field identifying the entity the event is about.
func (k InboundEventKind) RelatedIDField() string {
	switch k {
	case InboundEventCapitalCallCreated, InboundEventCapitalCallUpdated, InboundEventCapitalCallCancelled:
		return "capital_call_id"
	case InboundEventInvestorCreated, InboundEventInvestorUpdated:
		return "investor_id"
	case InboundEventDistributionCreated:
		return "distribution_id"
	default:
		return "id"
	}
}

// RoutedEnvelope is the normalized message published for a routed event.
type RoutedEnvelope struct {
	Administrator string          `json:"administrator"`
	ExternalID    string          `json:"external_id"`
	RelatedID     string          `json:"related_id,omitempty"`
	EventType     string          `json:"event_type"`
	RawEventData  json.RawMessage `json:"raw_event_data"`
}
