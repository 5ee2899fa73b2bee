package dsentr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is the typed failure returned for non-2xx platform responses. Code
// is the platform's machine-readable error code when the envelope carries
// one; the raw body and request id ride along for operator-facing logs.
type Error struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Body       string `json:"body,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("dsentr: %s (status: %d, request_id: %s)", e.Message, e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("dsentr: %s (status: %d)", e.Message, e.StatusCode)
}

// IsRetryable reports whether another attempt could plausibly succeed.
func (e *Error) IsRetryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether the platform rejected this hub's identity.
func (e *Error) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether the addressed resource does not exist.
func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// AsError unwraps err into a platform *Error when one is in the chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// newAPIError builds the Error for an error response, preferring the
// platform's error envelope over the bare status line.
func newAPIError(resp *http.Response, body []byte) *Error {
	apiErr := &Error{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		Body:       string(body),
		RequestID:  resp.Header.Get("X-Request-ID"),
	}

	var envelope struct {
		Code    string `json:"code"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Code
		switch {
		case envelope.Error != "":
			apiErr.Message = envelope.Error
		case envelope.Message != "":
			apiErr.Message = envelope.Message
		}
	}

	return apiErr
}
