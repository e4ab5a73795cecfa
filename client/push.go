package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
)

// lastEventIDHeader lets the remote replay push events missed while reconnecting.
const lastEventIDHeader = "Last-Event-ID"

// pushChannel is one open event stream from the remote server.
type pushChannel struct {
	response *http.Response
	cancel   context.CancelFunc
}

func (p *pushChannel) close() {
	p.cancel()
	_ = p.response.Body.Close()
}

// Connect opens the push channel. ctx bounds the open only; the channel stays
// up until Close.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrShuttingDown
	}
	channel, err := c.openPush(ctx)
	if err != nil {
		return err
	}
	if !c.install(channel) {
		return ErrShuttingDown
	}
	return nil
}

func (c *Client) openPush(ctx context.Context) (*pushChannel, error) {
	streamCtx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	httpRequest, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	c.setHeaders(httpRequest.Header)
	httpRequest.Header.Set("Accept", "text/event-stream")
	httpRequest.Header.Set("Cache-Control", "no-cache")
	if id := c.lastPushEventID(); id != "" {
		httpRequest.Header.Set(lastEventIDHeader, id)
	}
	response, err := c.streamClient.Do(httpRequest)
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "failed to open push channel %v", c.endpoint)
	}
	c.captureSession(response)
	if err = checkStatus("push channel", response); err != nil {
		_ = response.Body.Close()
		cancel()
		return nil, err
	}
	return &pushChannel{response: response, cancel: cancel}, nil
}

// install makes channel the current push channel and starts reading it.
func (c *Client) install(channel *pushChannel) bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.closed.Load() {
		channel.close()
		return false
	}
	c.stream = channel
	c.logger.Info("push channel open", "endpoint", c.endpoint)
	go c.read(channel)
	return true
}

func (c *Client) read(channel *pushChannel) {
	reader := newEventReader(channel.response.Body)
	for {
		anEvent, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("stream ended")
			}
			c.onPushLost(channel, err)
			return
		}
		if anEvent.ID != "" {
			c.setLastPushEventID(anEvent.ID)
		}
		if !anEvent.isMessage() {
			c.logger.V(1).Info("ignoring event", "type", anEvent.Type)
			continue
		}
		if len(anEvent.Data) > 0 {
			c.enqueue(c.ctx, anEvent.Data)
		}
	}
}

func (c *Client) onPushLost(channel *pushChannel, cause error) {
	if c.closed.Load() {
		return
	}
	c.mux.Lock()
	if c.stream != channel {
		c.mux.Unlock()
		return
	}
	c.stream = nil
	initialized := c.initialized
	c.mux.Unlock()
	channel.close()

	if !initialized {
		err := errors.Mark(errors.Wrap(cause, "push channel lost before initialization"), ErrPushChannelLost)
		c.logger.Error(err, "push channel failed")
		c.fail(err)
		return
	}
	c.logger.Error(cause, "push channel lost, reconnecting", "delay", c.reconnectDelay)
	go c.reconnect()
}

// reconnect reopens the push channel at a fixed delay until it succeeds or the client closes.
func (c *Client) reconnect() {
	select {
	case <-time.After(c.reconnectDelay):
	case <-c.ctx.Done():
		return
	}
	attempt := 0
	operation := func() error {
		attempt++
		channel, err := c.openPush(c.ctx)
		if err != nil {
			return err
		}
		if !c.install(channel) {
			return backoff.Permanent(ErrShuttingDown)
		}
		return nil
	}
	policy := backoff.WithContext(backoff.NewConstantBackOff(c.reconnectDelay), c.ctx)
	notify := func(err error, next time.Duration) {
		c.logger.Error(err, "push channel reconnect failed", "attempt", attempt, "retryIn", next)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		c.logger.V(1).Info("push channel reconnect stopped", "reason", err.Error())
		return
	}
	c.logger.Info("push channel reconnected", "attempts", attempt, "session", c.SessionID())
}

func (c *Client) lastPushEventID() string {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.lastEventID
}

func (c *Client) setLastPushEventID(id string) {
	c.mux.Lock()
	c.lastEventID = id
	c.mux.Unlock()
}
