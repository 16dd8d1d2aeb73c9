package ports

import (
	"context"
	"time"

	"clearway-webhooks/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption of secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(payload []byte, secret string) string
	Verify(payload []byte, signature string, secret string) bool
}

// SendResult is the outcome of one outbound HTTP call. Err is set for
// network failures, timeouts and open circuit breakers; StatusCode is 0 then.
type SendResult struct {
	StatusCode int
	Err        error
}

// Transport performs a single timeout-bounded POST.
type Transport interface {
	Send(ctx context.Context, url string, headers map[string]string, body []byte) SendResult
}

// TokenService handles JWT token operations for the management API.
type TokenService interface {
	Generate(ownerID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	OwnerID uuid.UUID
}

// EventPublisher hands routed inbound events to internal consumers.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, envelope domain.RoutedEnvelope) error
}

// Metrics records delivery and ingestion outcomes.
type Metrics interface {
	ObserveDelivery(eventType string, status domain.DeliveryStatus, elapsed time.Duration)
	IncInbound(partner string, outcome string)
}

// --- Service Ports (Business Logic) ---

// WebhookService is the outbound dispatcher.
type WebhookService interface {
	TriggerWebhooks(ctx context.Context, event domain.Event) ([]domain.DeliveryResult, error)
	DeliverWebhook(ctx context.Context, endpoint *domain.Endpoint, event domain.Event, timestamp time.Time) (*domain.DeliveryResult, error)
	RetryFailedDelivery(ctx context.Context, ownerID uuid.UUID, deliveryID uuid.UUID) (*domain.DeliveryResult, error)
	TestWebhook(ctx context.Context, ownerID uuid.UUID, endpointID uuid.UUID) (*domain.DeliveryResult, error)
	GetDeliveryStats(ctx context.Context, ownerID uuid.UUID, endpointID uuid.UUID) (*domain.DeliveryStats, error)
}

// InboundRequest carries the raw pieces of a partner webhook call.
type InboundRequest struct {
	Partner   string
	Signature string
	Timestamp string
	Body      []byte
}

// InboundResult describes an acknowledged inbound request.
type InboundResult struct {
	EventID   string
	EventType string
	Duplicate bool
	Message   string
}

// InboundService is the inbound gateway verification pipeline.
type InboundService interface {
	HandleWebhook(ctx context.Context, req InboundRequest) (*InboundResult, error)
}
