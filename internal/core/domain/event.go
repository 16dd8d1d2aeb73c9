package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventTypeTest is the event type used by synthetic test deliveries.
const EventTypeTest = "test.webhook"

// TestEventData is the fixed body sent by a test delivery.
var TestEventData = json.RawMessage(`{"message":"This is a test webhook from Clearway","test":true}`)

// Event is a domain event to be fanned out to subscribed endpoints.
// It is built per trigger and never persisted as such.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Timestamp time.Time       `json:"timestamp"`
}
