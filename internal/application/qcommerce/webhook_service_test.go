package qcommerce

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/cache"
	"github.com/mobilsoft/connectors/internal/infrastructure/scheduler"
)

// MockChannelRepository is a mock implementation of qcommerce.ChannelRepository
type MockChannelRepository struct {
	mock.Mock
}

func (m *MockChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*qcommerce.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*qcommerce.Channel), args.Error(1)
}

func (m *MockChannelRepository) FindActiveByPlatform(ctx context.Context, platform qcommerce.PlatformType) (*qcommerce.Channel, error) {
	args := m.Called(ctx, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*qcommerce.Channel), args.Error(1)
}

func (m *MockChannelRepository) Save(ctx context.Context, channel *qcommerce.Channel) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

// MockSubmitter is a mock implementation of scheduler.Submitter
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(job *scheduler.Job) error {
	args := m.Called(job)
	return args.Error(0)
}

var (
	_ qcommerce.ChannelRepository = (*MockChannelRepository)(nil)
	_ scheduler.Submitter         = (*MockSubmitter)(nil)
)

const testSecret = "whsec-123"

func newChannel(platform qcommerce.PlatformType) *qcommerce.Channel {
	return &qcommerce.Channel{
		BaseEntity:    shared.NewBaseEntity(),
		Name:          platform.DisplayName() + " Kadikoy",
		Platform:      platform,
		Active:        true,
		WebhookSecret: testSecret,
	}
}

func newWebhookService(t *testing.T, channels qcommerce.ChannelRepository, submitter scheduler.Submitter) *WebhookService {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore(0)
	t.Cleanup(func() { _ = store.Close() })
	return NewWebhookService(WebhookServiceConfig{
		Channels: channels,
		Handlers: []qcommerce.EventHandler{
			NewGetirHandler(submitter, zap.NewNop()),
			NewYemeksepetiHandler(submitter, zap.NewNop()),
			NewVigoHandler(submitter, zap.NewNop()),
		},
		Idempotency: store,
		Logger:      zap.NewNop(),
	})
}

func signedHeaders(header string, body []byte) http.Header {
	h := http.Header{}
	h.Set(header, Sign(testSecret, body))
	return h
}

func TestWebhookService_GetirDeliveryQueuesOrderSync(t *testing.T) {
	ctx := context.Background()
	channel := newChannel(qcommerce.PlatformGetir)
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformGetir).Return(channel, nil)
	submitter := new(MockSubmitter)
	submitter.On("Submit", mock.MatchedBy(func(job *scheduler.Job) bool {
		return job.Kind == scheduler.JobKindChannelOrderSync &&
			job.TargetID == channel.ID &&
			job.Params["order_id"] == "ORD-77" &&
			job.Params["event_type"] == qcommerce.EventOrderCreated
	})).Return(nil).Once()

	svc := newWebhookService(t, channels, submitter)
	body := []byte(`{"id":"evt-1","event":"newOrder","foodOrder":{"id":"ORD-77"}}`)

	resp := svc.Process(ctx, "getir", signedHeaders(GetirSignatureHeader, body), body)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "Webhook processed for getir", resp.Message)
	assert.Equal(t, true, resp.Result["queued"])
	assert.Equal(t, "ORD-77", resp.Result["order_id"])

	// redelivery of the same event is acknowledged without a second job
	replay := svc.Process(ctx, "getir", signedHeaders(GetirSignatureHeader, body), body)
	assert.Equal(t, StatusSuccess, replay.Status)
	assert.Equal(t, true, replay.Result["duplicate"])

	submitter.AssertExpectations(t)
}

func TestWebhookService_RejectsBadSignatures(t *testing.T) {
	ctx := context.Background()
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformYemeksepeti).Return(newChannel(qcommerce.PlatformYemeksepeti), nil)
	submitter := new(MockSubmitter)
	svc := newWebhookService(t, channels, submitter)
	body := []byte(`{"eventId":"e-1","type":"ORDER_CREATED","order":{"code":"Y1"}}`)

	tests := []struct {
		name    string
		headers http.Header
	}{
		{"missing", http.Header{}},
		{"wrong secret", func() http.Header {
			h := http.Header{}
			h.Set(YemeksepetiSignatureHeader, Sign("other", body))
			return h
		}()},
		{"not hex", func() http.Header {
			h := http.Header{}
			h.Set(YemeksepetiSignatureHeader, "zzzz")
			return h
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := svc.Process(ctx, "yemeksepeti", tt.headers, body)
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, "Invalid signature", resp.Message)
		})
	}
	submitter.AssertNotCalled(t, "Submit", mock.Anything)

	h := http.Header{}
	h.Set(YemeksepetiSignatureHeader, "sha256="+Sign(testSecret, body))
	submitter.On("Submit", mock.Anything).Return(nil).Once()
	assert.Equal(t, StatusSuccess, svc.Process(ctx, "yemeksepeti", h, body).Status)
}

func TestWebhookService_VigoSecretInBody(t *testing.T) {
	ctx := context.Background()
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformVigo).Return(newChannel(qcommerce.PlatformVigo), nil)
	submitter := new(MockSubmitter)
	submitter.On("Submit", mock.Anything).Return(nil).Once()
	svc := newWebhookService(t, channels, submitter)

	bad := svc.Process(ctx, "vigo", http.Header{}, []byte(`{"secret":"nope","event_id":"v1","event_type":"order.created","order_id":"V-1"}`))
	assert.Equal(t, "Invalid signature", bad.Message)

	ok := svc.Process(ctx, "vigo", http.Header{}, []byte(`{"secret":"whsec-123","event_id":"v1","event_type":"ORDER.CREATED","order_id":"V-1"}`))
	assert.Equal(t, StatusSuccess, ok.Status)
	assert.Equal(t, qcommerce.EventOrderCreated, ok.Result["event_type"])
	submitter.AssertExpectations(t)
}

func TestWebhookService_UnroutableDeliveries(t *testing.T) {
	ctx := context.Background()
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformGetir).Return(nil, qcommerce.ErrChannelNotFound)
	svc := newWebhookService(t, channels, new(MockSubmitter))

	resp := svc.Process(ctx, "getir", http.Header{}, []byte(`{}`))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "Channel not found", resp.Message)

	resp = svc.Process(ctx, "trendyol", http.Header{}, []byte(`{}`))
	assert.Equal(t, "Unknown platform", resp.Message)
}

func TestWebhookService_ChannelWithoutSecretIsRejected(t *testing.T) {
	channel := newChannel(qcommerce.PlatformGetir)
	channel.WebhookSecret = ""
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformGetir).Return(channel, nil)
	svc := newWebhookService(t, channels, new(MockSubmitter))

	resp := svc.Process(context.Background(), "getir", http.Header{}, []byte(`{}`))
	assert.Equal(t, "Webhook secret not configured", resp.Message)
}

func TestWebhookService_PayloadProblems(t *testing.T) {
	ctx := context.Background()
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformGetir).Return(newChannel(qcommerce.PlatformGetir), nil)
	submitter := new(MockSubmitter)
	svc := newWebhookService(t, channels, submitter)

	tests := []struct {
		name    string
		body    string
		status  string
		message string
	}{
		{"malformed json", `{"id":`, StatusError, "Malformed payload"},
		{"missing event id", `{"event":"newOrder","foodOrder":{"id":"O"}}`, StatusError, "Malformed payload"},
		{"unsupported event", `{"id":"e9","event":"courierAssigned"}`, StatusSuccess, "Event ignored"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			resp := svc.Process(ctx, "getir", signedHeaders(GetirSignatureHeader, body), body)
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
	submitter.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestWebhookService_FailedHandlingCanBeRedelivered(t *testing.T) {
	ctx := context.Background()
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformGetir).Return(newChannel(qcommerce.PlatformGetir), nil)
	submitter := new(MockSubmitter)
	submitter.On("Submit", mock.Anything).Return(scheduler.ErrJobQueueFull).Once()
	submitter.On("Submit", mock.Anything).Return(nil).Once()
	svc := newWebhookService(t, channels, submitter)
	body := []byte(`{"id":"evt-5","event":"orderCanceled","foodOrder":{"id":"O5"}}`)

	first := svc.Process(ctx, "getir", signedHeaders(GetirSignatureHeader, body), body)
	assert.Equal(t, StatusError, first.Status)
	assert.True(t, first.Retry)
	assert.NotContains(t, first.Message, "queue")

	second := svc.Process(ctx, "getir", signedHeaders(GetirSignatureHeader, body), body)
	assert.Equal(t, StatusSuccess, second.Status)
	assert.Nil(t, second.Result["duplicate"])
	submitter.AssertNumberOfCalls(t, "Submit", 2)
}

func TestWebhookService_JobAlreadyQueuedIsSuccess(t *testing.T) {
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformGetir).Return(newChannel(qcommerce.PlatformGetir), nil)
	submitter := new(MockSubmitter)
	submitter.On("Submit", mock.Anything).Return(scheduler.ErrJobAlreadyQueued)
	svc := newWebhookService(t, channels, submitter)
	body := []byte(`{"id":"evt-6","event":"orderStatusChanged","foodOrder":{"id":"O6"}}`)

	resp := svc.Process(context.Background(), "getir", signedHeaders(GetirSignatureHeader, body), body)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, true, resp.Result["queued"])
	assert.NotContains(t, resp.Result, "job_id")
}

// failingStore reports every mark as a storage failure
type failingStore struct{ shared.IdempotencyStore }

func (failingStore) MarkProcessed(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestWebhookService_IdempotencyFailureAsksForRetry(t *testing.T) {
	channels := new(MockChannelRepository)
	channels.On("FindActiveByPlatform", mock.Anything, qcommerce.PlatformGetir).Return(newChannel(qcommerce.PlatformGetir), nil)
	submitter := new(MockSubmitter)
	svc := NewWebhookService(WebhookServiceConfig{
		Channels:    channels,
		Handlers:    []qcommerce.EventHandler{NewGetirHandler(submitter, nil)},
		Idempotency: failingStore{},
	})
	body := []byte(`{"id":"evt-7","event":"newOrder","foodOrder":{"id":"O7"}}`)

	resp := svc.Process(context.Background(), "getir", signedHeaders(GetirSignatureHeader, body), body)
	assert.Equal(t, StatusError, resp.Status)
	assert.True(t, resp.Retry)
	assert.NotContains(t, resp.Message, "redis")
	submitter.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestOrderSyncService_Sync(t *testing.T) {
	ctx := context.Background()
	channel := newChannel(qcommerce.PlatformGetir)
	channels := new(MockChannelRepository)
	channels.On("FindByID", ctx, channel.ID).Return(channel, nil)
	channels.On("Save", ctx, channel).Return(nil)

	svc := NewOrderSyncService(channels, zap.NewNop())
	summary, err := svc.Sync(ctx, channel.ID, map[string]string{"order_id": "O1", "event_type": qcommerce.EventOrderCreated})
	require.NoError(t, err)
	assert.Contains(t, summary, "O1")
	assert.NotNil(t, channel.LastSync)
	channels.AssertExpectations(t)
}
