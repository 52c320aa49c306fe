// Package autherr defines the typed errors raised at the auth transport
// boundary. The session core classifies these into user-facing signals;
// nothing above the core should ever see a raw *url.Error or json error.
package autherr

import (
	"errors"
	"fmt"
)

// APIError is an HTTP-level rejection from the auth API. It carries the
// status code and the server's message, plus the underlying error for
// logging. The message may be shown to the user as-is.
type APIError struct {
	Status   int
	Message  string
	Internal error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("api error %d: %s (internal: %v)", e.Status, e.Message, e.Internal)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Internal
}

// NewAPI creates an APIError for the given status and server message.
func NewAPI(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

var (
	// ErrTimeout indicates the request deadline elapsed before a response.
	ErrTimeout = errors.New("request timed out")
	// ErrConnectivity indicates the network was unreachable (DNS failure,
	// connection refused, airplane mode).
	ErrConnectivity = errors.New("network unreachable")
	// ErrDecode indicates the server replied 2xx but the body could not be
	// decoded into the expected shape.
	ErrDecode = errors.New("malformed response body")
)

// Client-side validation errors, raised before any network call is made.
var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrShortPassword = errors.New("password too short")
)

// Status returns the HTTP status carried by err, or 0 if err is not an
// APIError.
func Status(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsStatus reports whether err is an APIError with one of the given
// status codes.
func IsStatus(err error, codes ...int) bool {
	status := Status(err)
	for _, c := range codes {
		if status == c && status != 0 {
			return true
		}
	}
	return false
}

// Retriable reports whether err is worth retrying: timeouts, connectivity
// failures and 5xx responses. 4xx rejections are never retriable.
func Retriable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectivity) {
		return true
	}
	return Status(err) >= 500
}
