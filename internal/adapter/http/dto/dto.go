package dto

import (
	"encoding/json"
	"time"

	"clearway-webhooks/internal/core/domain"
)

// TriggerEventRequest is the request body for POST /api/v1/webhooks/events.
type TriggerEventRequest struct {
	Type string          `json:"type" binding:"required,max=100,event_type"`
	Data json.RawMessage `json:"data"`
}

// DeliveryResultResponse is one per-endpoint delivery outcome.
type DeliveryResultResponse struct {
	DeliveryID string  `json:"delivery_id"`
	EndpointID string  `json:"endpoint_id"`
	Success    bool    `json:"success"`
	StatusCode *int    `json:"status_code,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// TriggerEventResponse summarises a fan-out.
type TriggerEventResponse struct {
	EventType  string                   `json:"event_type"`
	Attempted  int                      `json:"attempted"`
	Succeeded  int                      `json:"succeeded"`
	Deliveries []DeliveryResultResponse `json:"deliveries"`
}

// DeliveryResponse is a ledger row as shown to tenants.
type DeliveryResponse struct {
	ID             string                 `json:"id"`
	EndpointID     string                 `json:"endpoint_id"`
	EventType      string                 `json:"event_type"`
	Payload        domain.DeliveryPayload `json:"payload"`
	Status         string                 `json:"status"`
	HTTPStatusCode *int                   `json:"http_status_code,omitempty"`
	Error          *string                `json:"error,omitempty"`
	DeliveredAt    string                 `json:"delivered_at"`
}

// DeliveryStatsResponse is the response for endpoint delivery statistics.
type DeliveryStatsResponse struct {
	Total            int                `json:"total"`
	Successful       int                `json:"successful"`
	Failed           int                `json:"failed"`
	SuccessRate      float64            `json:"success_rate"`
	RecentDeliveries []DeliveryResponse `json:"recent_deliveries"`
}

// InboundAckResponse acknowledges a verified partner webhook.
type InboundAckResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type,omitempty"`
	Message   string `json:"message"`
}

// NewDeliveryResultResponse converts a domain result.
func NewDeliveryResultResponse(r *domain.DeliveryResult) DeliveryResultResponse {
	return DeliveryResultResponse{
		DeliveryID: r.DeliveryID.String(),
		EndpointID: r.EndpointID.String(),
		Success:    r.Success,
		StatusCode: r.StatusCode,
		Error:      r.Error,
	}
}

// NewTriggerEventResponse summarises results of one fan-out.
func NewTriggerEventResponse(eventType string, results []domain.DeliveryResult) TriggerEventResponse {
	resp := TriggerEventResponse{
		EventType:  eventType,
		Attempted:  len(results),
		Deliveries: make([]DeliveryResultResponse, 0, len(results)),
	}
	for i := range results {
		if results[i].Success {
			resp.Succeeded++
		}
		resp.Deliveries = append(resp.Deliveries, NewDeliveryResultResponse(&results[i]))
	}
	return resp
}

// NewDeliveryStatsResponse converts domain stats.
func NewDeliveryStatsResponse(s *domain.DeliveryStats) DeliveryStatsResponse {
	resp := DeliveryStatsResponse{
		Total:            s.Total,
		Successful:       s.Successful,
		Failed:           s.Failed,
		SuccessRate:      s.SuccessRate,
		RecentDeliveries: make([]DeliveryResponse, 0, len(s.RecentDeliveries)),
	}
	for _, d := range s.RecentDeliveries {
		resp.RecentDeliveries = append(resp.RecentDeliveries, DeliveryResponse{
			ID:             d.ID.String(),
			EndpointID:     d.EndpointID.String(),
			EventType:      d.EventType,
			Payload:        d.Payload,
			Status:         string(d.Status),
			HTTPStatusCode: d.HTTPStatusCode,
			Error:          d.Error,
			DeliveredAt:    d.DeliveredAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}
