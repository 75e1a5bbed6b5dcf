// Package banking orchestrates open-banking connectors: token management,
// account, transaction and exchange rate syncs, and statement line ingest.
package banking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
	"github.com/mobilsoft/connectors/internal/infrastructure/oauth"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

// TokenExchanger obtains client-credentials tokens from a token endpoint
type TokenExchanger interface {
	Exchange(ctx context.Context, req oauth.Request) (*oauth.Token, error)
}

var _ TokenExchanger = (*oauth.Exchanger)(nil)

// TokenStore hands out access tokens stored on the connector row.
// Expired tokens are replaced with a new client-credentials grant; the stored
// refresh token is kept but never used.
type TokenStore struct {
	connectors banking.ConnectorRepository
	adapters   *banking.AdapterRegistry
	exchanger  TokenExchanger
	metrics    *telemetry.IngestMetrics
	window     time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// TokenStoreConfig contains the dependencies of TokenStore
type TokenStoreConfig struct {
	Connectors   banking.ConnectorRepository
	Adapters     *banking.AdapterRegistry
	Exchanger    TokenExchanger
	Metrics      *telemetry.IngestMetrics
	SafetyWindow time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
}

// NewTokenStore creates a token store
func NewTokenStore(cfg TokenStoreConfig) *TokenStore {
	s := &TokenStore{
		connectors: cfg.Connectors,
		adapters:   cfg.Adapters,
		exchanger:  cfg.Exchanger,
		metrics:    cfg.Metrics,
		window:     cfg.SafetyWindow,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if s.window <= 0 {
		s.window = banking.DefaultTokenSafetyWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

var _ banking.TokenSource = (*TokenStore)(nil)

// EnsureToken returns the cached token while it is valid beyond the safety window,
// otherwise acquires, stores and returns a new one.
// Acquisition failures move the connector to error and return *banking.TokenError.
func (s *TokenStore) EnsureToken(ctx context.Context, connector *banking.BankConnector) (string, error) {
	if connector.TokenValid(s.now(), s.window) {
		return connector.AccessToken, nil
	}

	if err := connector.Validate(); err != nil {
		return "", err
	}
	adapter, err := s.adapters.Get(connector.BankType)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(adapter.BaseURL(connector.SandboxMode), "/")
	if base == "" {
		return "", shared.NewIngestError(shared.ErrConfig, "ensure token", errors.New("bank base url is not configured"))
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "TokenStore", "EnsureToken",
		attribute.String("bank", connector.BankType.String()),
		attribute.String("connector_id", connector.ID.String()),
	)
	tok, err := s.exchanger.Exchange(ctx, oauth.Request{
		TokenURL:     base + adapter.TokenPath(),
		ClientID:     connector.ClientID,
		ClientSecret: connector.ClientSecret,
		Scope:        adapter.Scope(connector),
	})
	telemetry.End(span, err)
	if err != nil {
		return "", s.fail(ctx, connector, err)
	}

	connector.ApplyToken(tok.AccessToken, tok.RefreshToken, tok.ExpiresAt, s.now())
	if err := s.connectors.Save(ctx, connector); err != nil {
		return "", fmt.Errorf("persist access token: %w", err)
	}
	s.metrics.TokenRefresh(ctx, connector.BankType.String(), "success")
	s.logger.Info("Access token refreshed",
		zap.String("connector_id", connector.ID.String()),
		zap.String("bank", connector.BankType.String()),
		zap.Time("expires_at", tok.ExpiresAt),
	)
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next EnsureToken re-authenticates
func (s *TokenStore) Invalidate(ctx context.Context, connector *banking.BankConnector) error {
	connector.InvalidateToken()
	if err := s.connectors.Save(ctx, connector); err != nil {
		return fmt.Errorf("invalidate access token: %w", err)
	}
	return nil
}

func (s *TokenStore) fail(ctx context.Context, connector *banking.BankConnector, cause error) error {
	detail := tokenFailureDetail(cause)
	connector.MarkError(detail, s.now())
	if err := s.connectors.Save(ctx, connector); err != nil {
		s.logger.Error("Failed to persist connector error state",
			zap.String("connector_id", connector.ID.String()),
			zap.Error(err),
		)
	}
	s.metrics.TokenRefresh(ctx, connector.BankType.String(), "failure")

	tokenErr := &banking.TokenError{
		Connector:  connector.Name,
		StatusCode: httpclient.StatusCode(cause),
		Detail:     detail,
		Err:        cause,
	}
	s.logger.Warn("Token acquisition failed",
		zap.String("connector_id", connector.ID.String()),
		zap.String("bank", connector.BankType.String()),
		zap.Int("status", tokenErr.StatusCode),
		zap.Error(cause),
	)
	return tokenErr
}

func tokenFailureDetail(err error) string {
	var se *httpclient.HTTPStatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
