package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
)

// Sender hands a single SMS to an SMS provider and returns the provider's
// message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// ErrNotConfigured is returned when no provider credentials were supplied.
var ErrNotConfigured = errors.New("no provider client configured")

// Error is a failure reported by the provider API itself.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %s (http %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("provider error (http %d): %s", e.HTTPStatus, e.Message)
}

// Unconfigured is the Sender used when credentials are missing.
type Unconfigured struct{}

func (Unconfigured) Send(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

// ErrorCode returns the provider-supplied code for err, or a short name for
// its kind when the provider never answered.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var perr *Error
	if errors.As(err, &perr) && perr.Code != "" {
		return perr.Code
	}
	if errors.Is(err, ErrNotConfigured) {
		return "NotConfigured"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return "Timeout"
	}
	if perr != nil {
		return fmt.Sprintf("HTTP%d", perr.HTTPStatus)
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}
