// Package bank implements the open-banking adapters and the authorized
// client they share.
package bank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
)

// Client issues authorized requests to bank APIs over the shared session
type Client struct {
	session *httpclient.Session
	logger  *zap.Logger
}

// NewClient creates a bank API client
func NewClient(session *httpclient.Session, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{session: session, logger: logger}
}

// NewCaller implements banking.CallerFactory
func (c *Client) NewCaller(connector *banking.BankConnector, adapter banking.BankAdapter, tokens banking.TokenSource) banking.Caller {
	return &caller{
		client:    c,
		connector: connector,
		baseURL:   strings.TrimRight(adapter.BaseURL(connector.SandboxMode), "/"),
		tokens:    tokens,
	}
}

var _ banking.CallerFactory = (*Client)(nil)

type caller struct {
	client    *Client
	connector *banking.BankConnector
	baseURL   string
	tokens    banking.TokenSource
}

// GetJSON re-checks token freshness before the call. A 401 invalidates the
// cached token and the call is retried once with a fresh one.
func (c *caller) GetJSON(ctx context.Context, path string, query map[string]string, out any) error {
	token, err := c.tokens.EnsureToken(ctx, c.connector)
	if err != nil {
		return err
	}

	err = c.get(ctx, token, path, query, out)
	if httpclient.StatusCode(err) != http.StatusUnauthorized {
		return err
	}

	c.client.logger.Info("bank rejected access token, re-authenticating",
		zap.String("connector_id", c.connector.ID.String()),
		zap.String("bank", c.connector.BankType.String()),
		zap.String("path", path),
	)
	if ierr := c.tokens.Invalidate(ctx, c.connector); ierr != nil {
		return errors.Join(err, ierr)
	}
	token, err = c.tokens.EnsureToken(ctx, c.connector)
	if err != nil {
		return err
	}
	return c.get(ctx, token, path, query, out)
}

func (c *caller) get(ctx context.Context, token, path string, query map[string]string, out any) error {
	if c.baseURL == "" {
		return shared.NewIngestError(shared.ErrConfig, "bank request", errors.New("base url is not configured"))
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return shared.NewIngestError(shared.ErrConfig, "bank request", fmt.Errorf("invalid url: %w", err))
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return shared.NewIngestError(shared.ErrConfig, "bank request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	return c.client.session.DoJSON(ctx, req, out)
}
