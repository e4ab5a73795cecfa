package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/glyphs-mcp/bridge/internal/collection"
	"github.com/glyphs-mcp/bridge/internal/conv"
	"github.com/glyphs-mcp/bridge/schema"
	"github.com/go-logr/logr"
	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultReconnectDelay = 5 * time.Second
	inboundQueueSize      = 64
)

// Client is a session with a remote MCP server reachable over an HTTP request
// channel and a server-sent-events push channel on the same endpoint.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	streamClient   *http.Client
	headers        http.Header
	token          string
	timeout        time.Duration
	reconnectDelay time.Duration
	logger         logr.Logger
	handler        transport.Handler

	session session
	seq     atomic.Uint64
	pending *collection.SyncMap[uint64, *pendingRequest]
	inbound chan []byte

	mux         sync.RWMutex
	stream      *pushChannel
	lastEventID string
	initialized bool
	fatalErr    error

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// Call sends method with params and waits for the correlated response.
// A positive numeric params.timeout (seconds) overrides the default timeout.
// Remote error objects are returned as *schema.Error.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrShuttingDown
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	timeout := c.timeout
	if override, ok := conv.Timeout(params); ok {
		timeout = override
	}
	id := c.seq.Add(1)
	request := newPendingRequest(id, method)
	c.pending.Put(id, request)
	if c.closed.Load() {
		c.reject(id, ErrShuttingDown)
	} else if err := c.Err(); err != nil {
		c.reject(id, err)
	}
	select {
	case result := <-request.done:
		return result.value, result.err
	default:
	}

	payload, err := json.Marshal(&schema.Request{Jsonrpc: schema.Version, Id: &id, Method: method, Params: params})
	if err != nil {
		c.pending.Delete(id)
		return nil, errors.Wrapf(err, "failed to encode %v request", method)
	}
	go c.transmit(request, payload, timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case result := <-request.done:
		return result.value, result.err
	case <-timer.C:
		if _, ok := c.pending.Take(id); ok {
			c.logger.V(1).Info("request timed out", "id", id, "method", method, "timeout", timeout)
			return nil, errors.Wrapf(ErrRequestTimeout, "%v (id: %d) after %v", method, id, timeout)
		}
	case <-ctx.Done():
		if _, ok := c.pending.Take(id); ok {
			return nil, ctx.Err()
		}
	}
	result := <-request.done
	return result.value, result.err
}

// Send implements transport.Transport
func (c *Client) Send(ctx context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error) {
	response := &jsonrpc.Response{Id: request.Id, Jsonrpc: jsonrpc.Version}
	result, err := c.Call(ctx, request.Method, request.Params)
	if err != nil {
		var rpcError *schema.Error
		if errors.As(err, &rpcError) {
			response.Error = rpcError.RPC()
			return response, nil
		}
		return nil, err
	}
	response.Result = result
	return response, nil
}

// Notify implements transport.Transport; the notification is posted on the request channel.
func (c *Client) Notify(ctx context.Context, notification *jsonrpc.Notification) error {
	if c.closed.Load() {
		return ErrShuttingDown
	}
	payload, err := json.Marshal(&schema.Request{Jsonrpc: schema.Version, Method: notification.Method, Params: notification.Params})
	if err != nil {
		return errors.Wrapf(err, "failed to encode %v notification", notification.Method)
	}
	return c.deliver(ctx, notification.Method, payload)
}

// MarkInitialized switches push channel failures from fatal to reconnecting.
// It returns the recorded fatal error when the push channel was already lost.
func (c *Client) MarkInitialized() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.fatalErr != nil {
		return c.fatalErr
	}
	c.initialized = true
	return nil
}

// Err returns the fatal error that terminated the session, if any.
func (c *Client) Err() error {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.fatalErr
}

// SessionID returns the session identifier assigned by the remote server.
func (c *Client) SessionID() string {
	return c.session.ID()
}

// Pending returns the number of requests awaiting a response.
func (c *Client) Pending() int {
	return c.pending.Len()
}

// Close closes the push channel and rejects all pending requests.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mux.Lock()
	stream := c.stream
	c.stream = nil
	c.mux.Unlock()
	if stream != nil {
		stream.close()
	}
	c.cancel()
	c.rejectAll(ErrShuttingDown)
	return nil
}

func (c *Client) fail(err error) {
	c.mux.Lock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
	c.mux.Unlock()
	c.rejectAll(err)
}

// New creates a client for endpoint; call Connect to open the push channel.
func New(ctx context.Context, endpoint string, options ...Option) *Client {
	ret := &Client{
		endpoint:       endpoint,
		headers:        http.Header{},
		timeout:        defaultTimeout,
		reconnectDelay: defaultReconnectDelay,
		logger:         logr.Discard(),
		pending:        collection.NewSyncMap[uint64, *pendingRequest](),
		inbound:        make(chan []byte, inboundQueueSize),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{}
	}
	baseTransport := ret.httpClient.Transport
	if ret.token != "" {
		baseTransport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: ret.token, TokenType: "Bearer"}),
			Base:   baseTransport,
		}
		ret.httpClient = &http.Client{Transport: baseTransport, Timeout: ret.httpClient.Timeout, Jar: ret.httpClient.Jar}
	}
	ret.streamClient = &http.Client{Transport: baseTransport, Jar: ret.httpClient.Jar}
	ret.ctx, ret.cancel = context.WithCancel(context.WithoutCancel(ctx))
	go ret.loop()
	return ret
}
