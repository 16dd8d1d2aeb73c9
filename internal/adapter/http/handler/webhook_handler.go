package handler

import (
	"encoding/json"
	"time"

	"clearway-webhooks/internal/adapter/http/dto"
	"clearway-webhooks/internal/adapter/http/middleware"
	"clearway-webhooks/internal/core/domain"
	"clearway-webhooks/internal/core/ports"
	"clearway-webhooks/pkg/apperror"
	"clearway-webhooks/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler serves the outbound webhook management API.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
	now        func() time.Time
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc, now: time.Now}
}

// TriggerEvent handles POST /api/v1/webhooks/events.
func (h *WebhookHandler) TriggerEvent(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TriggerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(dto.ValidationMessage(err)))
		return
	}
	if len(req.Data) == 0 {
		req.Data = json.RawMessage("null")
	}

	results, err := h.webhookSvc.TriggerWebhooks(c.Request.Context(), domain.Event{
		Type:      req.Type,
		Data:      req.Data,
		OwnerID:   ownerID,
		Timestamp: h.now().UTC(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTriggerEventResponse(req.Type, results))
}

// TestEndpoint handles POST /api/v1/webhooks/endpoints/:id/test.
func (h *WebhookHandler) TestEndpoint(c *gin.Context) {
	ownerID, endpointID, ok := ownerAndPathID(c, "endpoint")
	if !ok {
		return
	}

	result, err := h.webhookSvc.TestWebhook(c.Request.Context(), ownerID, endpointID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDeliveryResultResponse(result))
}

// GetStats handles GET /api/v1/webhooks/endpoints/:id/stats.
func (h *WebhookHandler) GetStats(c *gin.Context) {
	ownerID, endpointID, ok := ownerAndPathID(c, "endpoint")
	if !ok {
		return
	}

	stats, err := h.webhookSvc.GetDeliveryStats(c.Request.Context(), ownerID, endpointID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDeliveryStatsResponse(stats))
}

// RetryDelivery handles POST /api/v1/webhooks/deliveries/:id/retry.
func (h *WebhookHandler) RetryDelivery(c *gin.Context) {
	ownerID, deliveryID, ok := ownerAndPathID(c, "delivery")
	if !ok {
		return
	}

	result, err := h.webhookSvc.RetryFailedDelivery(c.Request.Context(), ownerID, deliveryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDeliveryResultResponse(result))
}

// ownerAndPathID reads the authenticated owner and the :id path parameter,
// writing the error response itself when either is missing or invalid.
func ownerAndPathID(c *gin.Context, entity string) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("Invalid "+entity+" id"))
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, id, true
}
