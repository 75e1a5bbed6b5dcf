package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxRetryAfter = 30 * time.Second

// errRetryableStatus marks an attempt whose status should be retried
type errRetryableStatus struct {
	status int
}

func (e *errRetryableStatus) Error() string {
	return "retryable status " + strconv.Itoa(e.status)
}

// retryTransport retries idempotent and buffered requests on transient
// statuses and transport errors with exponential backoff.
type retryTransport struct {
	base   http.RoundTripper
	cfg    Config
	logger *zap.Logger
}

func (t *retryTransport) RoundTrip(in *http.Request) (*http.Response, error) {
	req := in.Clone(in.Context())
	if err := bufferBody(req); err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	policy := &retryAfterBackOff{BackOff: t.newBackOff()}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.cfg.MaxRetries)), req.Context())

	var (
		last    *http.Response
		attempt int
	)
	operation := func() error {
		attempt++
		if last != nil {
			drain(last)
			last = nil
		}

		attemptReq := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			attemptReq.Body = body
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			if req.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if t.shouldRetry(resp.StatusCode) {
			last = resp
			policy.wait = retryAfter(resp)
			return &errRetryableStatus{status: resp.StatusCode}
		}
		last = resp
		return nil
	}

	notify := func(err error, wait time.Duration) {
		t.logger.Debug("retrying request",
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, b, notify)
	var statusErr *errRetryableStatus
	if err != nil && errors.As(err, &statusErr) && last != nil {
		// retries exhausted, hand the final response to the caller
		t.logger.Warn("request failed after retries",
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Int("status", statusErr.status),
			zap.Int("attempts", attempt),
		)
		return last, nil
	}
	if err != nil {
		if last != nil {
			drain(last)
		}
		return nil, err
	}
	return last, nil
}

func (t *retryTransport) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.cfg.BackoffFactor
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = maxRetryAfter
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

func (t *retryTransport) shouldRetry(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	for _, s := range t.cfg.RetryStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// retryAfterBackOff lets a server supplied Retry-After override the next interval
type retryAfterBackOff struct {
	backoff.BackOff
	wait time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.wait > 0 {
		next, b.wait = b.wait, 0
	}
	return next
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	var wait time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		wait = time.Until(at)
	}
	if wait < 0 {
		return 0
	}
	if wait > maxRetryAfter {
		return maxRetryAfter
	}
	return wait
}

// bufferBody makes the request body replayable across attempts
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("httpclient: buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}
