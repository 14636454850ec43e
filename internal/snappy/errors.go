package snappy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/PIO-VIA/Snapppy/internal/transport/httpapi"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDecodeResponse marks a 2xx answer whose body is not what the endpoint returns.
	ErrDecodeResponse = errors.New("decode response")
)

// APIError is returned for every non-2xx answer of the chat API.
// Code is filled when the body carries the JSON error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func newAPIError(status int, body string) *APIError {
	e := &APIError{StatusCode: status, Body: body}

	var env httpapi.ErrorResponse
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Error.Code != "" {
		e.Code = env.Error.Code
		e.Body = env.Error.Message
	}

	return e
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("snappy api: HTTP %d %s: %s", e.StatusCode, e.Code, e.Body)
	}
	return fmt.Sprintf("snappy api: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

func (e *APIError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
