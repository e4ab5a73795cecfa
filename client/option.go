package client

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/viant/jsonrpc/transport"
)

// Option represents option
type Option func(c *Client)

// WithHTTPClient sets the HTTP client used for both channels
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the default request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithReconnectDelay sets the fixed delay between push channel reconnect attempts
func WithReconnectDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.reconnectDelay = delay
		}
	}
}

// WithHeaders adds headers to every outgoing HTTP request
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers.Set(k, v)
		}
	}
}

// WithBearerToken authorizes every HTTP request with a static bearer token
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger logr.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHandler sets the handler receiving remote notifications and requests
func WithHandler(handler transport.Handler) Option {
	return func(c *Client) {
		c.handler = handler
	}
}
