package ophim

import (
	"fmt"
	"strings"
)

// HTTPStatusError means the catalog answered with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// APIError means the catalog answered 200 but flagged the payload as failed
// (status:false), typically for an unknown slug.
type APIError struct {
	URL string
	Msg string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Msg)
	if msg == "" {
		msg = "status=false"
	}
	return fmt.Sprintf("catalog API error from %s: %s", e.URL, msg)
}

// DecodeError wraps a JSON decoding failure of a response body.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
