package graph

import (
	"fmt"
	"net/url"
	"strings"
)

type ErrorKind string

const (
	// ErrUnreachable covers transport-level failures: refused connections,
	// DNS errors, broken pipes.
	ErrUnreachable ErrorKind = "unreachable"
	// ErrTimeout is a deadline hit while the provider call was in flight.
	ErrTimeout ErrorKind = "timeout"
	// ErrHTTP is any non-2xx status from the provider.
	ErrHTTP ErrorKind = "http_error"
	// ErrDecode is a payload that parsed badly or was missing required fields.
	ErrDecode ErrorKind = "decode_error"
)

// Error is the single failure shape the adapter returns. Callers match on
// Kind with errors.As instead of inspecting message text.
type Error struct {
	Kind       ErrorKind
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("graph provider: %s (HTTP %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("graph provider: %s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var sensitiveParams = []string{"token", "authorization", "api_key", "apikey", "password", "secret"}

// redactURL strips credential-bearing query values so they never reach error
// messages or logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	changed := false
	for key := range q {
		for _, s := range sensitiveParams {
			if strings.EqualFold(key, s) {
				q.Set(key, "REDACTED")
				changed = true
			}
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
