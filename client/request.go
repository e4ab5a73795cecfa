package client

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/glyphs-mcp/bridge/schema"
)

const (
	maxBodySize     = 10 * 1024 * 1024
	maxErrorBodyLen = 512
)

// transmit posts a registered request. Transport failures reject only this request;
// any JSON-RPC payload in the reply body goes through the inbound loop.
func (c *Client) transmit(request *pendingRequest, payload []byte, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	response, err := c.post(ctx, payload)
	if err != nil {
		c.logger.Error(err, "request failed", "id", request.id, "method", request.method)
		c.reject(request.id, errors.Wrapf(err, "%v request failed", request.method))
		return
	}
	defer response.Body.Close()
	if err = checkStatus(request.method, response); err != nil {
		c.logger.Error(err, "request rejected", "id", request.id, "method", request.method)
		c.reject(request.id, err)
		return
	}
	if err = c.consume(ctx, response); err != nil && ctx.Err() == nil {
		c.logger.Error(err, "failed to read reply body", "id", request.id, "method", request.method)
	}
}

// deliver posts a message that expects no correlated response.
func (c *Client) deliver(ctx context.Context, method string, payload []byte) error {
	response, err := c.post(ctx, payload)
	if err != nil {
		return errors.Wrapf(err, "failed to post %v", method)
	}
	defer response.Body.Close()
	if err = checkStatus(method, response); err != nil {
		return err
	}
	return c.consume(ctx, response)
}

func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpRequest.Header)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json, text/event-stream")
	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	c.captureSession(response)
	return response, nil
}

func (c *Client) setHeaders(header http.Header) {
	for k, values := range c.headers {
		for _, v := range values {
			header.Add(k, v)
		}
	}
	c.session.apply(header)
}

func (c *Client) captureSession(response *http.Response) {
	if c.session.capture(response.Header) {
		c.logger.Info("session established", "session", c.session.ID())
	}
}

// consume queues every JSON-RPC message found in a reply body.
func (c *Client) consume(ctx context.Context, response *http.Response) error {
	if response.StatusCode == http.StatusAccepted || response.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxBodySize))
		return nil
	}
	mediaType, _, _ := mime.ParseMediaType(response.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		reader := newEventReader(response.Body)
		for {
			anEvent, err := reader.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			if anEvent.isMessage() && len(anEvent.Data) > 0 {
				c.enqueue(ctx, anEvent.Data)
			}
		}
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		return err
	}
	messages, err := schema.Split(body)
	if err != nil {
		return errors.Wrapf(err, "unexpected %v reply body", mediaType)
	}
	for _, message := range messages {
		c.enqueue(ctx, message)
	}
	return nil
}

func checkStatus(method string, response *http.Response) error {
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyLen))
	return &StatusError{StatusCode: response.StatusCode, Method: method, Body: strings.TrimSpace(string(body))}
}
