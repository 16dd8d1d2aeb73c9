package ports

import (
	"context"

	"clearway-webhooks/internal/core/domain"

	"github.com/google/uuid"
)

// EndpointRepository reads tenant-configured webhook endpoints.
// Lookups return (nil, nil) when the row does not exist.
type EndpointRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Endpoint, error)
	// ListSubscribed returns enabled endpoints of ownerID subscribed to eventType.
	ListSubscribed(ctx context.Context, ownerID uuid.UUID, eventType string) ([]domain.Endpoint, error)
}

// DeliveryRepository is the append-only delivery ledger.
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *domain.Delivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	// ListRecentByEndpoint returns at most limit rows, newest first.
	ListRecentByEndpoint(ctx context.Context, endpointID uuid.UUID, limit int) ([]domain.Delivery, error)
}

// InboundLogRepository persists inbound webhook arrivals.
type InboundLogRepository interface {
	// InsertIfAbsent inserts the log in one statement guarded by the unique
	// external_event_id index. It returns false when the id already exists.
	InsertIfAbsent(ctx context.Context, log *domain.InboundWebhookLog) (bool, error)
}
