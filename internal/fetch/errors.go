package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrBodyTooLarge is returned when a response body exceeds the configured
	// maximum size. Bodies are never truncated silently.
	ErrBodyTooLarge = errors.New("response body exceeds maximum size")

	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)

// StatusError is returned when a response status is outside 200-299.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the received HTTP status code.
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code <= 299
}
