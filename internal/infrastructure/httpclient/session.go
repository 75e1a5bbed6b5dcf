// Package httpclient builds the outbound HTTP sessions used to talk to bank
// APIs and supplier feeds: bounded timeouts, retries on transient statuses,
// and errors mapped onto the ingestion taxonomy.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

const (
	defaultConnectTimeout  = 5 * time.Second
	defaultReadTimeout     = 30 * time.Second
	defaultMaxRetries      = 5
	defaultBackoffFactor   = 100 * time.Millisecond
	defaultMaxResponseSize = 20 * 1024 * 1024 // 20MB
	maxErrorBodySize       = 2048
	maxErrorMessageRunes   = 200
	maxRedirects           = 10
)

// ErrCrossSchemeRedirect is returned when a redirect would change the URL scheme
var ErrCrossSchemeRedirect = errors.New("httpclient: refusing cross-scheme redirect")

// Config holds session settings
type Config struct {
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxRetries      int
	BackoffFactor   time.Duration
	RetryStatuses   []int
	MaxResponseSize int64
	UserAgent       string
	// Tracing wraps the transport with OpenTelemetry client spans
	Tracing bool
}

// DefaultConfig returns the session defaults used for bank APIs
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  defaultConnectTimeout,
		ReadTimeout:     defaultReadTimeout,
		MaxRetries:      defaultMaxRetries,
		BackoffFactor:   defaultBackoffFactor,
		RetryStatuses:   []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
		MaxResponseSize: defaultMaxResponseSize,
		UserAgent:       "mobilsoft-connectors/1.0",
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = d.BackoffFactor
	}
	if len(c.RetryStatuses) == 0 {
		c.RetryStatuses = d.RetryStatuses
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = d.MaxResponseSize
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
}

// Session is a configured HTTP client. It is safe for concurrent use.
type Session struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for retry diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithBaseTransport replaces the underlying transport, mainly for tests
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(s *Session) {
		s.client.Transport = rt
	}
}

// New creates a session
func New(cfg Config, opts ...Option) *Session {
	cfg.applyDefaults()

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	s := &Session{
		client: &http.Client{
			Transport:     base,
			CheckRedirect: checkRedirect,
		},
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var rt http.RoundTripper = &retryTransport{
		base:   s.client.Transport,
		cfg:    s.cfg,
		logger: s.logger,
	}
	if cfg.Tracing {
		rt = otelhttp.NewTransport(rt)
	}
	s.client.Transport = rt
	return s
}

// Client returns the underlying client, with retries installed in its transport
func (s *Session) Client() *http.Client {
	return s.client
}

// Do sends the request. Transport failures are returned as NetworkError.
// Non-2xx responses are returned as-is.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		op := req.Method + " " + req.URL.Redacted()
		if errors.Is(err, ErrCrossSchemeRedirect) {
			return nil, shared.NewIngestError(shared.ErrRemote, op, err)
		}
		if kind := shared.KindOf(err); kind != nil {
			return nil, err
		}
		return nil, shared.NewIngestError(shared.ErrNetwork, op, err)
	}
	return resp, nil
}

// DoJSON sends the request and decodes a 2xx JSON body into out.
// Other statuses become an *HTTPStatusError wrapped with the matching ingestion kind.
func (s *Session) DoJSON(ctx context.Context, req *http.Request, out any) error {
	req = req.WithContext(ctx)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := s.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	op := req.Method + " " + req.URL.Path
	if err := CheckResponse(op, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxResponseSize))
	if err != nil {
		return shared.NewIngestError(shared.ErrNetwork, op, fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return shared.NewIngestError(shared.ErrData, op, fmt.Errorf("decode json: %w", err))
	}
	return nil
}

// ReadBody reads a successful response body bounded by the session's size limit
func (s *Session) ReadBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxResponseSize))
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("httpclient: stopped after %d redirects", maxRedirects)
	}
	if len(via) > 0 && req.URL.Scheme != via[0].URL.Scheme {
		return fmt.Errorf("%w: %s -> %s", ErrCrossSchemeRedirect, via[0].URL.Scheme, req.URL.Scheme)
	}
	return nil
}
