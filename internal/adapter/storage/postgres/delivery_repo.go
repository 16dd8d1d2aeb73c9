package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clearway-webhooks/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, endpoint_id, event_type, payload, status, http_status_code, error, delivered_at`

// DeliveryRepo implements ports.DeliveryRepository over the append-only
// webhook_deliveries table. Rows are never updated.
type DeliveryRepo struct {
	pool Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(pool Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

// Create appends one delivery row.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("encode delivery payload: %w", err)
	}

	query := `INSERT INTO webhook_deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.pool.Exec(ctx, query,
		d.ID, d.EndpointID, d.EventType, string(payload),
		string(d.Status), d.HTTPStatusCode, d.Error, d.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// GetByID fetches a delivery by its UUID.
func (r *DeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = $1`

	d, err := scanDelivery(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery by id: %w", err)
	}
	return d, nil
}

// ListRecentByEndpoint returns up to limit deliveries of endpointID, newest first.
func (r *DeliveryRepo) ListRecentByEndpoint(ctx context.Context, endpointID uuid.UUID, limit int) ([]domain.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries
		WHERE endpoint_id = $1
		ORDER BY delivered_at DESC, id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return deliveries, nil
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var (
		d       domain.Delivery
		payload []byte
		status  string
	)
	if err := row.Scan(
		&d.ID, &d.EndpointID, &d.EventType, &payload,
		&status, &d.HTTPStatusCode, &d.Error, &d.DeliveredAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &d.Payload); err != nil {
		return nil, fmt.Errorf("decode delivery payload: %w", err)
	}
	d.Status = domain.DeliveryStatus(status)
	return &d, nil
}
