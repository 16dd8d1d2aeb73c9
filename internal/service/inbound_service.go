package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clearway-webhooks/internal/core/domain"
	"clearway-webhooks/internal/core/ports"
	"clearway-webhooks/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Inbound outcome labels reported to metrics.
const (
	InboundProcessed        = "processed"
	InboundDuplicate        = "duplicate"
	InboundConfigError      = "config_error"
	InboundMissingHeaders   = "missing_headers"
	InboundInvalidSignature = "invalid_signature"
	InboundExpired          = "expired"
	InboundMalformed        = "malformed"
	InboundError            = "error"
)

// UnconfiguredPartner is the metrics label for requests naming a partner that
// has no secret configured.
const UnconfiguredPartner = "unconfigured"

var errMissingEventFields = errors.New("event id and type are required")

const (
	msgProcessed = "Webhook processed"
	msgDuplicate = "Event already processed"
	msgReceived  = "Webhook received"
)

// SecretLookup returns the shared secret of a partner, or "" if none is set.
type SecretLookup func(partner string) string

// inboundService implements ports.InboundService.
type inboundService struct {
	logRepo   ports.InboundLogRepository
	sigSvc    ports.SignatureService
	router    *EventRouter
	metrics   ports.Metrics
	secrets   SecretLookup
	tolerance time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewInboundService creates the inbound gateway.
func NewInboundService(
	logRepo ports.InboundLogRepository,
	sigSvc ports.SignatureService,
	router *EventRouter,
	metrics ports.Metrics,
	secrets SecretLookup,
	tolerance time.Duration,
	log zerolog.Logger,
) ports.InboundService {
	return &inboundService{
		logRepo:   logRepo,
		sigSvc:    sigSvc,
		router:    router,
		metrics:   metrics,
		secrets:   secrets,
		tolerance: tolerance,
		log:       log,
		now:       time.Now,
	}
}

// HandleWebhook runs the verification pipeline for one partner request.
// Once an event is verified and logged it is acknowledged even if routing fails.
func (s *inboundService) HandleWebhook(ctx context.Context, req ports.InboundRequest) (*ports.InboundResult, error) {
	partner := strings.ToLower(req.Partner)

	secret := s.secrets(partner)
	if secret == "" {
		// The path segment is unauthenticated; keep it out of metric labels.
		s.log.Error().Str("partner", partner).Msg("inbound: webhook secret not configured")
		s.metrics.IncInbound(UnconfiguredPartner, InboundConfigError)
		return nil, apperror.ErrMissingWebhookSecret(partner)
	}

	if req.Signature == "" || req.Timestamp == "" {
		s.metrics.IncInbound(partner, InboundMissingHeaders)
		return nil, apperror.ErrMissingSignatureHeaders()
	}

	if !s.sigSvc.Verify(InboundSignedPayload(req.Timestamp, req.Body), req.Signature, secret) {
		s.log.Warn().Str("partner", partner).Msg("inbound: invalid signature")
		s.metrics.IncInbound(partner, InboundInvalidSignature)
		return nil, apperror.ErrInvalidSignature()
	}

	if !s.fresh(req.Timestamp) {
		s.log.Warn().Str("partner", partner).Str("timestamp", req.Timestamp).Msg("inbound: timestamp outside tolerance")
		s.metrics.IncInbound(partner, InboundExpired)
		return nil, apperror.ErrTimestampExpired()
	}

	event, err := parseInboundEvent(req.Body)
	if err != nil {
		s.log.Warn().Err(err).Str("partner", partner).Msg("inbound: malformed event body")
		s.metrics.IncInbound(partner, InboundMalformed)
		return nil, apperror.ErrMalformedEvent(err)
	}

	inserted, err := s.logRepo.InsertIfAbsent(ctx, &domain.InboundWebhookLog{
		ID:              uuid.New(),
		Source:          partner,
		EventType:       event.Type,
		ExternalEventID: event.ID,
		RawPayload:      json.RawMessage(req.Body),
		ProcessedAt:     s.now(),
	})
	if err != nil {
		// Verified requests are always acknowledged. Without a log row the
		// event is not routed, so nothing downstream sees it twice.
		s.log.Error().Err(err).Str("partner", partner).Str("event_id", event.ID).
			Str("event_type", event.Type).RawJSON("raw_payload", req.Body).
			Msg("inbound: failed to persist log, acknowledging without routing")
		s.metrics.IncInbound(partner, InboundError)
		return &ports.InboundResult{EventID: event.ID, EventType: event.Type, Message: msgReceived}, nil
	}
	if !inserted {
		s.log.Info().Str("partner", partner).Str("event_id", event.ID).Msg("inbound: duplicate event ignored")
		s.metrics.IncInbound(partner, InboundDuplicate)
		return &ports.InboundResult{EventID: event.ID, EventType: event.Type, Duplicate: true, Message: msgDuplicate}, nil
	}

	s.route(ctx, partner, event)

	s.log.Info().Str("partner", partner).Str("event_id", event.ID).Str("event_type", event.Type).Msg("inbound: webhook processed")
	s.metrics.IncInbound(partner, InboundProcessed)
	return &ports.InboundResult{EventID: event.ID, EventType: event.Type, Message: msgProcessed}, nil
}

// route never fails the request: the event is already logged.
func (s *inboundService) route(ctx context.Context, partner string, event domain.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("partner", partner).Str("event_id", event.ID).Str("panic", fmt.Sprint(r)).Msg("inbound: routing panicked")
		}
	}()

	if err := s.router.Route(ctx, partner, event); err != nil {
		s.log.Error().Err(err).Str("partner", partner).Str("event_id", event.ID).Msg("inbound: routing failed")
	}
}

// fresh reports whether timestamp (epoch seconds) lies within tolerance of now.
// The boundary itself is accepted.
func (s *inboundService) fresh(timestamp string) bool {
	secs, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return false
	}
	skew := s.now().Sub(time.Unix(secs, 0))
	if skew < 0 {
		skew = -skew
	}
	return skew <= s.tolerance
}

func parseInboundEvent(body []byte) (domain.InboundEvent, error) {
	var event domain.InboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("decoding event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return event, errMissingEventFields
	}
	return event, nil
}
