package autherr

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusAndIsStatus(t *testing.T) {
	err := NewAPI(404, "user not found")
	if Status(err) != 404 {
		t.Errorf("Status = %d", Status(err))
	}
	if !IsStatus(err, 400, 404) {
		t.Error("IsStatus should match 404")
	}
	if IsStatus(err, 401) {
		t.Error("IsStatus matched the wrong code")
	}

	wrapped := fmt.Errorf("login: %w", err)
	if Status(wrapped) != 404 {
		t.Errorf("Status through wrapping = %d", Status(wrapped))
	}

	if Status(errors.New("plain")) != 0 {
		t.Error("non-API errors must report status 0")
	}
	if IsStatus(errors.New("plain"), 0) {
		t.Error("status 0 must never match")
	}
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", fmt.Errorf("%w: deadline", ErrTimeout), true},
		{"connectivity", fmt.Errorf("%w: refused", ErrConnectivity), true},
		{"server error", NewAPI(503, "unavailable"), true},
		{"rejection", NewAPI(401, "unauthorized"), false},
		{"decode", fmt.Errorf("%w: bad json", ErrDecode), false},
		{"plain", errors.New("plain"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retriable(tc.err); got != tc.want {
				t.Errorf("Retriable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("db gone")
	err := &APIError{Status: 500, Message: "internal", Internal: inner}
	if !errors.Is(err, inner) {
		t.Error("Unwrap must expose the internal error")
	}
}
