package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is a non-2xx answer from an upstream model endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream http status %d", e.Status)
	}
	return fmt.Sprintf("upstream http status %d: %s", e.Status, e.Body)
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a failed turn may succeed if the client sends
// it again. Cancellation by the caller is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableHTTPStatus(statusErr.Status)
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
