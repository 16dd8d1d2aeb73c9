package postgres

import (
	"context"
	"errors"
	"fmt"

	"clearway-webhooks/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InboundLogRepo implements ports.InboundLogRepository.
type InboundLogRepo struct {
	pool Pool
}

// NewInboundLogRepo creates a new InboundLogRepo.
func NewInboundLogRepo(pool Pool) *InboundLogRepo {
	return &InboundLogRepo{pool: pool}
}

// InsertIfAbsent inserts log unless its external_event_id already exists.
// The unique index decides; concurrent duplicates yield exactly one row.
func (r *InboundLogRepo) InsertIfAbsent(ctx context.Context, log *domain.InboundWebhookLog) (bool, error) {
	query := `INSERT INTO inbound_webhook_logs (id, source, event_type, external_event_id, raw_payload, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_event_id) DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		log.ID, log.Source, log.EventType, log.ExternalEventID,
		string(log.RawPayload), log.ProcessedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert inbound log: %w", err)
	}
	return true, nil
}
