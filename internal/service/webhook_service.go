package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"clearway-webhooks/internal/core/domain"
	"clearway-webhooks/internal/core/ports"
	"clearway-webhooks/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outbound request headers.
const (
	HeaderSignature = "X-Clearway-Signature"
	HeaderEvent     = "X-Clearway-Event"
	HeaderTimestamp = "X-Clearway-Timestamp"
	UserAgent       = "Clearway-Webhook/1.0"
)

const (
	statsWindow = 100
	statsRecent = 10
)

// webhookService implements ports.WebhookService.
type webhookService struct {
	endpointRepo ports.EndpointRepository
	deliveryRepo ports.DeliveryRepository
	encSvc       ports.EncryptionService
	sigSvc       ports.SignatureService
	transport    ports.Transport
	metrics      ports.Metrics
	log          zerolog.Logger
	now          func() time.Time
}

// NewWebhookService creates the outbound dispatcher.
func NewWebhookService(
	endpointRepo ports.EndpointRepository,
	deliveryRepo ports.DeliveryRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	transport ports.Transport,
	metrics ports.Metrics,
	log zerolog.Logger,
) ports.WebhookService {
	return &webhookService{
		endpointRepo: endpointRepo,
		deliveryRepo: deliveryRepo,
		encSvc:       encSvc,
		sigSvc:       sigSvc,
		transport:    transport,
		metrics:      metrics,
		log:          log,
		now:          time.Now,
	}
}

// TriggerWebhooks fans event out to every enabled endpoint of the owner that
// subscribes to its type. Attempts run concurrently and all of them finish
// before it returns; results keep endpoint order.
func (s *webhookService) TriggerWebhooks(ctx context.Context, event domain.Event) ([]domain.DeliveryResult, error) {
	listed, err := s.endpointRepo.ListSubscribed(ctx, event.OwnerID, event.Type)
	if err != nil {
		s.log.Error().Err(err).Str("owner_id", event.OwnerID.String()).Msg("webhook: failed to list endpoints")
		return nil, apperror.ErrDatabaseError(err)
	}

	endpoints := make([]domain.Endpoint, 0, len(listed))
	for _, ep := range listed {
		if ep.Subscribes(event.Type) {
			endpoints = append(endpoints, ep)
		}
	}

	results := make([]domain.DeliveryResult, len(endpoints))
	if len(endpoints) == 0 {
		s.log.Debug().Str("event_type", event.Type).Str("owner_id", event.OwnerID.String()).Msg("webhook: no subscribed endpoints")
		return results, nil
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	// Caller cancellation must not abort attempts already in flight.
	dctx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := range endpoints {
		wg.Go(func() {
			results[i] = s.attempt(dctx, &endpoints[i], event, ts)
		})
	}
	wg.Wait()

	return results, nil
}

// attempt runs one delivery and always yields a result, even on panic.
func (s *webhookService) attempt(ctx context.Context, endpoint *domain.Endpoint, event domain.Event, ts time.Time) (res domain.DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic during delivery: %v", r)
			s.log.Error().Str("endpoint_id", endpoint.ID.String()).Str("panic", fmt.Sprint(r)).Msg("webhook: delivery attempt panicked")
			res = domain.DeliveryResult{Success: false, Error: &msg, EndpointID: endpoint.ID}
		}
	}()

	result, err := s.DeliverWebhook(ctx, endpoint, event, ts)
	if err != nil {
		s.log.Error().Err(err).Str("endpoint_id", endpoint.ID.String()).Msg("webhook: delivery not recorded")
	}
	return *result
}

// DeliverWebhook performs exactly one signed POST to endpoint and appends one
// ledger row describing it. The returned error is non-nil only when that row
// could not be written; the result is still returned then.
func (s *webhookService) DeliverWebhook(ctx context.Context, endpoint *domain.Endpoint, event domain.Event, timestamp time.Time) (*domain.DeliveryResult, error) {
	return s.deliver(ctx, endpoint, domain.NewDeliveryPayload(event, timestamp))
}

func (s *webhookService) deliver(ctx context.Context, endpoint *domain.Endpoint, payload domain.DeliveryPayload) (*domain.DeliveryResult, error) {
	start := time.Now()
	statusCode, errMsg := s.send(ctx, endpoint, payload)

	status := domain.DeliveryStatusFailed
	if errMsg == nil {
		status = domain.DeliveryStatusSuccess
	}

	delivery := &domain.Delivery{
		ID:             uuid.New(),
		EndpointID:     endpoint.ID,
		EventType:      payload.Type,
		Payload:        payload,
		Status:         status,
		HTTPStatusCode: statusCode,
		Error:          errMsg,
		DeliveredAt:    s.now(),
	}
	s.metrics.ObserveDelivery(payload.Type, status, time.Since(start))

	result := &domain.DeliveryResult{
		Success:    status == domain.DeliveryStatusSuccess,
		StatusCode: statusCode,
		Error:      errMsg,
		DeliveryID: delivery.ID,
		EndpointID: endpoint.ID,
	}

	evt := s.log.Info()
	if !result.Success {
		evt = s.log.Warn()
	}
	evt.Str("endpoint_id", endpoint.ID.String()).
		Str("delivery_id", delivery.ID.String()).
		Str("payload_id", payload.ID.String()).
		Str("event_type", payload.Type).
		Str("status", string(status)).
		Msg("webhook: delivery attempted")

	if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
		s.log.Error().Err(err).Str("delivery_id", delivery.ID.String()).Msg("webhook: failed to record delivery")
		return result, apperror.ErrDatabaseError(err)
	}
	return result, nil
}

// send signs and posts payload. A nil error message means a 2xx response.
// Panics are converted into a failure message so the attempt is still recorded.
func (s *webhookService) send(ctx context.Context, endpoint *domain.Endpoint, payload domain.DeliveryPayload) (statusCode *int, errMsg *string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("endpoint_id", endpoint.ID.String()).Str("panic", fmt.Sprint(r)).Msg("webhook: panic while sending")
			statusCode, errMsg = nil, strPtr(fmt.Sprintf("panic during delivery: %v", r))
		}
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, strPtr(fmt.Sprintf("encoding payload: %v", err))
	}

	secret, err := s.encSvc.Decrypt(endpoint.SecretKeyEnc)
	if err != nil {
		s.log.Error().Err(err).Str("endpoint_id", endpoint.ID.String()).Msg("webhook: failed to decrypt endpoint secret")
		return nil, strPtr("decrypting endpoint secret failed")
	}

	headers := map[string]string{
		"Content-Type":  "application/json",
		"User-Agent":    UserAgent,
		HeaderSignature: s.sigSvc.Sign(body, secret),
		HeaderEvent:     payload.Type,
		HeaderTimestamp: strconv.FormatInt(payload.Timestamp, 10),
	}

	res := s.transport.Send(ctx, endpoint.URL, headers, body)
	if res.Err != nil {
		return nil, strPtr(res.Err.Error())
	}

	code := res.StatusCode
	if code >= 200 && code < 300 {
		return &code, nil
	}
	return &code, strPtr(fmt.Sprintf("HTTP %d: %s", code, http.StatusText(code)))
}

// RetryFailedDelivery replays a FAILED delivery with its original payload
// snapshot, producing a new ledger row.
func (s *webhookService) RetryFailedDelivery(ctx context.Context, ownerID uuid.UUID, deliveryID uuid.UUID) (*domain.DeliveryResult, error) {
	delivery, err := s.deliveryRepo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if delivery == nil {
		return nil, apperror.ErrNotFound("Delivery")
	}

	endpoint, err := s.ownedEndpoint(ctx, ownerID, delivery.EndpointID)
	if err != nil {
		return nil, err
	}

	if delivery.Succeeded() {
		return nil, apperror.ErrDeliveryAlreadySucceeded()
	}

	s.log.Info().
		Str("delivery_id", deliveryID.String()).
		Str("payload_id", delivery.Payload.ID.String()).
		Msg("webhook: retrying delivery")

	return s.deliver(context.WithoutCancel(ctx), endpoint, delivery.Payload)
}

// TestWebhook sends a synthetic test.webhook event to one endpoint,
// regardless of its subscriptions.
func (s *webhookService) TestWebhook(ctx context.Context, ownerID uuid.UUID, endpointID uuid.UUID) (*domain.DeliveryResult, error) {
	endpoint, err := s.ownedEndpoint(ctx, ownerID, endpointID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	event := domain.Event{
		Type:      domain.EventTypeTest,
		Data:      domain.TestEventData,
		OwnerID:   ownerID,
		Timestamp: now,
	}
	return s.DeliverWebhook(context.WithoutCancel(ctx), endpoint, event, now)
}

// GetDeliveryStats aggregates the latest deliveries of one endpoint.
func (s *webhookService) GetDeliveryStats(ctx context.Context, ownerID uuid.UUID, endpointID uuid.UUID) (*domain.DeliveryStats, error) {
	if _, err := s.ownedEndpoint(ctx, ownerID, endpointID); err != nil {
		return nil, err
	}

	deliveries, err := s.deliveryRepo.ListRecentByEndpoint(ctx, endpointID, statsWindow)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	stats := domain.ComputeDeliveryStats(deliveries, statsRecent)
	return &stats, nil
}

func (s *webhookService) ownedEndpoint(ctx context.Context, ownerID, endpointID uuid.UUID) (*domain.Endpoint, error) {
	endpoint, err := s.endpointRepo.GetByID(ctx, endpointID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if endpoint == nil {
		return nil, apperror.ErrNotFound("Webhook endpoint")
	}
	if !endpoint.OwnedBy(ownerID) {
		return nil, apperror.ErrEndpointNotOwned()
	}
	return endpoint, nil
}

func strPtr(s string) *string {
	return &s
}
