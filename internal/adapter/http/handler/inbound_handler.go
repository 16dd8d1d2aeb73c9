package handler

import (
	"errors"
	"io"
	"net/http"

	"clearway-webhooks/internal/adapter/http/dto"
	"clearway-webhooks/internal/core/ports"
	"clearway-webhooks/pkg/apperror"
	"clearway-webhooks/pkg/response"

	"github.com/gin-gonic/gin"
)

// InboundHandler receives partner webhooks.
type InboundHandler struct {
	inboundSvc ports.InboundService
}

// NewInboundHandler creates a new InboundHandler.
func NewInboundHandler(inboundSvc ports.InboundService) *InboundHandler {
	return &InboundHandler{inboundSvc: inboundSvc}
}

// SignatureHeader is the header carrying a partner's signature, e.g.
// "fundadmin-signature".
func SignatureHeader(partner string) string { return partner + "-signature" }

// TimestampHeader is the header carrying a partner's signing timestamp.
func TimestampHeader(partner string) string { return partner + "-timestamp" }

// Receive handles POST /webhooks/:partner. The body is passed on untouched;
// the signature covers its exact bytes.
func (h *InboundHandler) Receive(c *gin.Context) {
	partner := c.Param("partner")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return
		}
		response.Error(c, apperror.Validation("Cannot read request body"))
		return
	}

	result, err := h.inboundSvc.HandleWebhook(c.Request.Context(), ports.InboundRequest{
		Partner:   partner,
		Signature: c.GetHeader(SignatureHeader(partner)),
		Timestamp: c.GetHeader(TimestampHeader(partner)),
		Body:      body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.InboundAckResponse{
		Received:  true,
		Duplicate: result.Duplicate,
		EventID:   result.EventID,
		EventType: result.EventType,
		Message:   result.Message,
	})
}

// Challenge handles GET /webhooks/:partner?challenge=<token> by echoing the
// token verbatim as text/plain.
func (h *InboundHandler) Challenge(c *gin.Context) {
	challenge, ok := c.GetQuery("challenge")
	if !ok || challenge == "" {
		response.Error(c, apperror.Validation("Missing challenge parameter"))
		return
	}
	response.Text(c, challenge)
}
