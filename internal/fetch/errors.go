package fetch

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying a failed fetch.
var (
	// ErrNetwork indicates a transport failure (DNS, connection, TLS, reset).
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates the request exceeded the client timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrStatus indicates the server answered with a non-2xx status or an
	// unreadable body.
	ErrStatus = errors.New("unexpected response")
)

// Error is returned by Fetch. Kind is one of the sentinel errors above and
// Err carries the underlying cause, if any.
type Error struct {
	URL        string
	StatusCode int
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch: GET %s: %v: HTTP %d", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch: GET %s: %v: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch: GET %s: %v", e.URL, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
