package postgres

import (
	"context"
	"errors"
	"fmt"

	"clearway-webhooks/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const endpointColumns = `id, owner_id, url, secret_key_enc, events, enabled, created_at, updated_at`

// EndpointRepo implements ports.EndpointRepository. Endpoint rows are owned by
// tenant configuration; this repo only reads them.
type EndpointRepo struct {
	pool Pool
}

// NewEndpointRepo creates a new EndpointRepo.
func NewEndpointRepo(pool Pool) *EndpointRepo {
	return &EndpointRepo{pool: pool}
}

// GetByID fetches an endpoint by its UUID.
func (r *EndpointRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE id = $1`

	e := &domain.Endpoint{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.OwnerID, &e.URL, &e.SecretKeyEnc,
		&e.Events, &e.Enabled, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get endpoint by id: %w", err)
	}
	return e, nil
}

// ListSubscribed returns the enabled endpoints of ownerID whose events contain eventType.
func (r *EndpointRepo) ListSubscribed(ctx context.Context, ownerID uuid.UUID, eventType string) ([]domain.Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints
		WHERE owner_id = $1 AND enabled = TRUE AND $2 = ANY(events)
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, ownerID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list subscribed endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []domain.Endpoint
	for rows.Next() {
		var e domain.Endpoint
		if err := rows.Scan(
			&e.ID, &e.OwnerID, &e.URL, &e.SecretKeyEnc,
			&e.Events, &e.Enabled, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscribed endpoints: %w", err)
	}
	return endpoints, nil
}
