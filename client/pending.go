package client

import (
	"encoding/json"
	"time"
)

type outcome struct {
	value json.RawMessage
	err   error
}

// pendingRequest is a request awaiting its response. Whoever takes it out of
// the pending map owns completing it.
type pendingRequest struct {
	id      uint64
	method  string
	created time.Time
	done    chan outcome
}

func (r *pendingRequest) complete(value json.RawMessage, err error) {
	r.done <- outcome{value: value, err: err}
}

func newPendingRequest(id uint64, method string) *pendingRequest {
	return &pendingRequest{id: id, method: method, created: time.Now(), done: make(chan outcome, 1)}
}

// resolve completes the request with id; it reports false for unknown or expired ids.
func (c *Client) resolve(id uint64, value json.RawMessage, err error) bool {
	request, ok := c.pending.Take(id)
	if !ok {
		return false
	}
	c.logger.V(1).Info("response received", "id", id, "method", request.method, "elapsed", time.Since(request.created))
	request.complete(value, err)
	return true
}

func (c *Client) reject(id uint64, err error) {
	if request, ok := c.pending.Take(id); ok {
		request.complete(nil, err)
	}
}

func (c *Client) rejectAll(err error) {
	for _, request := range c.pending.Drain() {
		request.complete(nil, err)
	}
}
