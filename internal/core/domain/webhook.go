package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the outcome of one delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusSuccess DeliveryStatus = "SUCCESS"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

// DeliveryPayload is both the JSON body sent on the wire and the immutable
// snapshot kept on the ledger row. Timestamp is epoch milliseconds.
type DeliveryPayload struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewDeliveryPayload snapshots event with a fresh payload id.
func NewDeliveryPayload(event Event, timestamp time.Time) DeliveryPayload {
	data := event.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return DeliveryPayload{
		ID:        uuid.New(),
		Type:      event.Type,
		Timestamp: timestamp.UnixMilli(),
		Data:      data,
	}
}

// Delivery is one ledger row: exactly one per attempt, never updated.
type Delivery struct {
	ID             uuid.UUID       `json:"id"`
	EndpointID     uuid.UUID       `json:"endpoint_id"`
	EventType      string          `json:"event_type"`
	Payload        DeliveryPayload `json:"payload"`
	Status         DeliveryStatus  `json:"status"`
	HTTPStatusCode *int            `json:"http_status_code,omitempty"`
	Error          *string         `json:"error,omitempty"`
	DeliveredAt    time.Time       `json:"delivered_at"`
}

// Succeeded reports whether the attempt was acknowledged with a 2xx.
func (d *Delivery) Succeeded() bool {
	return d.Status == DeliveryStatusSuccess
}

// DeliveryResult is the per-endpoint outcome returned to dispatcher callers.
type DeliveryResult struct {
	Success    bool      `json:"success"`
	StatusCode *int      `json:"status_code,omitempty"`
	Error      *string   `json:"error,omitempty"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	EndpointID uuid.UUID `json:"endpoint_id"`
}

// DeliveryStats summarises recent ledger history for one endpoint.
type DeliveryStats struct {
	Total            int        `json:"total"`
	Successful       int        `json:"successful"`
	Failed           int        `json:"failed"`
	SuccessRate      float64    `json:"success_rate"`
	RecentDeliveries []Delivery `json:"recent_deliveries"`
}

// ComputeDeliveryStats aggregates deliveries (newest first) and keeps the
// first recent rows for display.
func ComputeDeliveryStats(deliveries []Delivery, recent int) DeliveryStats {
	stats := DeliveryStats{Total: len(deliveries)}
	for i := range deliveries {
		if deliveries[i].Succeeded() {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total) * 100
	}
	if recent > len(deliveries) {
		recent = len(deliveries)
	}
	stats.RecentDeliveries = append([]Delivery{}, deliveries[:recent]...)
	return stats
}
