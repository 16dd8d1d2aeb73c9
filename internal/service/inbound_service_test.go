package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clearway-webhooks/internal/core/domain"
	"clearway-webhooks/internal/core/ports"
	"clearway-webhooks/internal/core/ports/mocks"
	appmetrics "clearway-webhooks/internal/metrics"
	"clearway-webhooks/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const partnerSecret = "whsec_partner"

// memInboundLogs mimics the unique external_event_id index.
type memInboundLogs struct {
	mu   sync.Mutex
	rows map[string]*domain.InboundWebhookLog
}

func newMemInboundLogs() *memInboundLogs {
	return &memInboundLogs{rows: make(map[string]*domain.InboundWebhookLog)}
}

func (m *memInboundLogs) InsertIfAbsent(_ context.Context, log *domain.InboundWebhookLog) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[log.ExternalEventID]; ok {
		return false, nil
	}
	m.rows[log.ExternalEventID] = log
	return true, nil
}

func (m *memInboundLogs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// countingPublisher counts publishes per channel.
type countingPublisher struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
	panic bool
}

func (p *countingPublisher) Publish(_ context.Context, channel string, _ domain.RoutedEnvelope) error {
	if p.panic {
		panic("consumer blew up")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[channel]++
	return p.err
}

func (p *countingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

type inboundFixture struct {
	logs *memInboundLogs
	pub  *countingPublisher
	now  time.Time
	svc  *inboundService
}

func newInboundFixture(secrets map[string]string) *inboundFixture {
	f := &inboundFixture{
		logs: newMemInboundLogs(),
		pub:  &countingPublisher{},
		now:  time.Unix(1_760_000_000, 0),
	}
	svc := NewInboundService(
		f.logs,
		NewHMACSignatureService(),
		NewEventRouter(f.pub, newTestLogger()),
		nopMetrics{},
		func(partner string) string { return secrets[partner] },
		300*time.Second,
		newTestLogger(),
	).(*inboundService)
	svc.now = func() time.Time { return f.now }
	f.svc = svc
	return f
}

func signedRequest(partner, secret string, ts int64, body string) ports.InboundRequest {
	tsStr := strconv.FormatInt(ts, 10)
	sig := NewHMACSignatureService().Sign(InboundSignedPayload(tsStr, []byte(body)), secret)
	return ports.InboundRequest{Partner: partner, Signature: sig, Timestamp: tsStr, Body: []byte(body)}
}

func requireAppError(t *testing.T, err error, code string, status int) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.HTTPStatus)
}

const capitalCallBody = `{"id":"evt-42","type":"capital_call.created","data":{"capital_call_id":"cc-1"},"created_at":"2026-01-01T00:00:00Z"}`

func TestInboundService_ProcessesVerifiedEvent(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})

	res, err := f.svc.HandleWebhook(context.Background(), signedRequest("FundAdmin", partnerSecret, f.now.Unix(), capitalCallBody))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "Webhook processed", res.Message)
	assert.Equal(t, "evt-42", res.EventID)
	assert.Equal(t, "capital_call.created", res.EventType)

	assert.Equal(t, 1, f.logs.count())
	row := f.logs.rows["evt-42"]
	assert.Equal(t, "fundadmin", row.Source)
	assert.Equal(t, "capital_call.created", row.EventType)
	assert.JSONEq(t, capitalCallBody, string(row.RawPayload))
	assert.Equal(t, 1, f.pub.calls["fund_admin.capital_call.created"])
}

func TestInboundService_DuplicateIsAcknowledgedOnce(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})
	req := signedRequest("fundadmin", partnerSecret, f.now.Unix(), capitalCallBody)

	first, err := f.svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := f.svc.HandleWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, "Event already processed", second.Message)

	assert.Equal(t, 1, f.logs.count())
	assert.Equal(t, 1, f.pub.total())
}

func TestInboundService_ConcurrentDuplicates(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})
	req := signedRequest("fundadmin", partnerSecret, f.now.Unix(), capitalCallBody)

	const n = 20
	var processed, duplicates atomic.Int32
	var wg sync.WaitGroup
	for range n {
		wg.Go(func() {
			res, err := f.svc.HandleWebhook(context.Background(), req)
			if !assert.NoError(t, err) {
				return
			}
			if res.Duplicate {
				duplicates.Add(1)
			} else {
				processed.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), processed.Load())
	assert.Equal(t, int32(n-1), duplicates.Load())
	assert.Equal(t, 1, f.logs.count())
	assert.Equal(t, 1, f.pub.total())
}

func TestInboundService_WrongSecret(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})

	_, err := f.svc.HandleWebhook(context.Background(), signedRequest("fundadmin", "whsec_attacker", f.now.Unix(), capitalCallBody))
	requireAppError(t, err, "SEC_002", http.StatusUnauthorized)
	assert.Equal(t, "Invalid signature", err.(*apperror.AppError).Message)
	assert.Zero(t, f.logs.count())
	assert.Zero(t, f.pub.total())
}

func TestInboundService_TamperedBody(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})
	req := signedRequest("fundadmin", partnerSecret, f.now.Unix(), capitalCallBody)
	req.Body = []byte(`{"id":"evt-42","type":"capital_call.cancelled","data":{}}`)

	_, err := f.svc.HandleWebhook(context.Background(), req)
	requireAppError(t, err, "SEC_002", http.StatusUnauthorized)
	assert.Zero(t, f.logs.count())
}

func TestInboundService_MissingSecretIsConfigurationError(t *testing.T) {
	f := newInboundFixture(map[string]string{})

	_, err := f.svc.HandleWebhook(context.Background(), signedRequest("fundadmin", partnerSecret, f.now.Unix(), capitalCallBody))
	requireAppError(t, err, "CFG_001", http.StatusInternalServerError)
	assert.Zero(t, f.logs.count())
}

func TestInboundService_MissingHeaders(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})

	tests := []struct {
		name   string
		mutate func(*ports.InboundRequest)
	}{
		{"no signature", func(r *ports.InboundRequest) { r.Signature = "" }},
		{"no timestamp", func(r *ports.InboundRequest) { r.Timestamp = "" }},
		{"neither", func(r *ports.InboundRequest) { r.Signature, r.Timestamp = "", "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signedRequest("fundadmin", partnerSecret, f.now.Unix(), capitalCallBody)
			tt.mutate(&req)

			_, err := f.svc.HandleWebhook(context.Background(), req)
			requireAppError(t, err, "SEC_001", http.StatusUnauthorized)
			assert.Equal(t, "Missing signature headers", err.(*apperror.AppError).Message)
		})
	}
	assert.Zero(t, f.logs.count())
}

func TestInboundService_FreshnessBoundary(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		ok     bool
	}{
		{"now", 0, true},
		{"300s old", -300, true},
		{"300s ahead", 300, true},
		{"301s old", -301, false},
		{"301s ahead", 301, false},
		{"a day old", -86400, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})
			body := `{"id":"evt-` + strconv.Itoa(i) + `","type":"investor.created","data":{}}`

			_, err := f.svc.HandleWebhook(context.Background(), signedRequest("fundadmin", partnerSecret, f.now.Unix()+tt.offset, body))
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, 1, f.logs.count())
				return
			}
			requireAppError(t, err, "SEC_003", http.StatusUnauthorized)
			assert.Zero(t, f.logs.count())
		})
	}
}

func TestInboundService_UnparsableTimestamp(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})
	body := []byte(capitalCallBody)
	ts := "yesterday"
	sig := NewHMACSignatureService().Sign(InboundSignedPayload(ts, body), partnerSecret)

	_, err := f.svc.HandleWebhook(context.Background(), ports.InboundRequest{Partner: "fundadmin", Signature: sig, Timestamp: ts, Body: body})
	requireAppError(t, err, "SEC_003", http.StatusUnauthorized)
}

func TestInboundService_MalformedBody(t *testing.T) {
	f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})

	for _, body := range []string{`not json`, `{"type":"investor.created"}`, `{"id":"evt-1"}`} {
		_, err := f.svc.HandleWebhook(context.Background(), signedRequest("fundadmin", partnerSecret, f.now.Unix(), body))
		requireAppError(t, err, "WHK_005", http.StatusBadRequest)
	}
	assert.Zero(t, f.logs.count())
}

func TestInboundService_RoutingFailureStillAcknowledged(t *testing.T) {
	t.Run("publish error", func(t *testing.T) {
		f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})
		f.pub.err = errors.New("bus closed")

		res, err := f.svc.HandleWebhook(context.Background(), signedRequest("fundadmin", partnerSecret, f.now.Unix(), capitalCallBody))
		require.NoError(t, err)
		assert.Equal(t, "Webhook processed", res.Message)
		assert.Equal(t, 1, f.logs.count())
	})

	t.Run("publish panic", func(t *testing.T) {
		f := newInboundFixture(map[string]string{"fundadmin": partnerSecret})
		f.pub.panic = true

		res, err := f.svc.HandleWebhook(context.Background(), signedRequest("fundadmin", partnerSecret, f.now.Unix(), capitalCallBody))
		require.NoError(t, err)
		assert.Equal(t, "Webhook processed", res.Message)
	})
}

func TestInboundService_LogInsertError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInboundLogRepository(ctrl)
	pub := mocks.NewMockEventPublisher(ctrl)
	now := time.Unix(1_760_000_000, 0)

	svc := NewInboundService(repo, NewHMACSignatureService(), NewEventRouter(pub, newTestLogger()), nopMetrics{},
		func(string) string { return partnerSecret }, 300*time.Second, newTestLogger()).(*inboundService)
	svc.now = func() time.Time { return now }

	repo.EXPECT().InsertIfAbsent(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))
	// No Publish expectation: an unlogged event must not be routed.

	res, err := svc.HandleWebhook(context.Background(), signedRequest("fundadmin", partnerSecret, now.Unix(), capitalCallBody))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "Webhook received", res.Message)
	assert.Equal(t, "evt-42", res.EventID)
}

func TestInboundService_LogInsertErrorCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockInboundLogRepository(ctrl)
	metrics := mocks.NewMockMetrics(ctrl)
	now := time.Unix(1_760_000_000, 0)

	svc := NewInboundService(repo, NewHMACSignatureService(), NewEventRouter(&countingPublisher{}, newTestLogger()), metrics,
		func(string) string { return partnerSecret }, 300*time.Second, newTestLogger()).(*inboundService)
	svc.now = func() time.Time { return now }

	repo.EXPECT().InsertIfAbsent(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))
	metrics.EXPECT().IncInbound("fundadmin", InboundError)

	_, err := svc.HandleWebhook(context.Background(), signedRequest("fundadmin", partnerSecret, now.Unix(), capitalCallBody))
	require.NoError(t, err)
}

func TestInboundService_UnknownPartnersShareOneSeries(t *testing.T) {
	m := appmetrics.New()
	svc := NewInboundService(newMemInboundLogs(), NewHMACSignatureService(), NewEventRouter(&countingPublisher{}, newTestLogger()), m,
		func(string) string { return "" }, 300*time.Second, newTestLogger())

	for i := range 200 {
		_, err := svc.HandleWebhook(context.Background(), ports.InboundRequest{
			Partner: "junk-" + strconv.Itoa(i),
			Body:    []byte(`{}`),
		})
		requireAppError(t, err, "CFG_001", http.StatusInternalServerError)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.Registry(), "inbound_webhooks_total"))
}

func TestInboundService_RecordsOutcomeMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	metrics := mocks.NewMockMetrics(ctrl)
	now := time.Unix(1_760_000_000, 0)

	svc := NewInboundService(newMemInboundLogs(), NewHMACSignatureService(), NewEventRouter(&countingPublisher{}, newTestLogger()), metrics,
		func(string) string { return partnerSecret }, 300*time.Second, newTestLogger()).(*inboundService)
	svc.now = func() time.Time { return now }

	gomock.InOrder(
		metrics.EXPECT().IncInbound("fundadmin", InboundProcessed),
		metrics.EXPECT().IncInbound("fundadmin", InboundDuplicate),
		metrics.EXPECT().IncInbound("fundadmin", InboundInvalidSignature),
	)

	req := signedRequest("fundadmin", partnerSecret, now.Unix(), capitalCallBody)
	_, _ = svc.HandleWebhook(context.Background(), req)
	_, _ = svc.HandleWebhook(context.Background(), req)
	req.Signature = "00"
	_, _ = svc.HandleWebhook(context.Background(), req)
}
