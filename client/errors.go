package client

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

var (
	// ErrRequestTimeout is returned when no response arrived within the request timeout.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrShuttingDown rejects every request still pending when the client closes.
	ErrShuttingDown = errors.New("bridge shutting down")
	// ErrPushChannelLost marks a push channel failure before initialization completed.
	ErrPushChannelLost = errors.New("push channel lost")
)

// StatusError reports a non-2xx HTTP reply from the remote server.
type StatusError struct {
	StatusCode int
	Method     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: unexpected HTTP status %d %s", e.Method, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%v: unexpected HTTP status %d %s: %s", e.Method, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}
