package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// HTTPStatusError is a non-2xx answer from a remote API
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// CheckResponse returns nil for 2xx responses. Otherwise it consumes a bounded
// part of the body and returns an ingestion error classified by status.
func CheckResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	statusErr := &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Message:    ExtractErrorMessage(body),
		Body:       string(body),
	}

	kind := shared.ClassifyHTTPStatus(resp.StatusCode)
	if kind == nil {
		kind = shared.ErrRemote
	}
	ie := shared.NewIngestError(kind, op, statusErr)
	ie.StatusCode = resp.StatusCode
	return ie
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var ie *shared.IngestError
	if errors.As(err, &ie) && ie.StatusCode != 0 {
		return ie.StatusCode
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// ExtractErrorMessage pulls a human readable message out of common vendor error envelopes
func ExtractErrorMessage(body []byte) string {
	var envelope struct {
		ErrorCode        string `json:"errorCode"`
		ErrorMessage     string `json:"errorMessage"`
		Error            any    `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
		Detail           string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		text := strings.TrimSpace(string(body))
		if runes := []rune(text); len(runes) > maxErrorMessageRunes {
			text = string(runes[:maxErrorMessageRunes])
		}
		if strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}

	var parts []string
	switch v := envelope.Error.(type) {
	case string:
		parts = append(parts, v)
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			parts = append(parts, msg)
		}
	}
	for _, s := range []string{envelope.ErrorCode, envelope.ErrorMessage, envelope.ErrorDescription, envelope.Message, envelope.Detail} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ": ")
}
