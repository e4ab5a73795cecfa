package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/glyphs-mcp/bridge/internal/collection"
	"github.com/go-logr/logr"
	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/schema"
)

// Catalog answers capability listing methods from local state.
type Catalog interface {
	// List returns the listing result for method; ok is false for methods it does not mirror.
	List(method string) (result json.RawMessage, ok bool, err error)
}

// Forwarder relays a request to the remote server and returns its result.
// Remote JSON-RPC errors are returned as *bridge/schema.Error.
type Forwarder interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

// Server represents the local MCP endpoint
type Server struct {
	activeContexts *collection.SyncMap[string, context.CancelFunc]
	catalog        Catalog
	forwarder      Forwarder
	info           schema.Implementation
	logger         logr.Logger

	capabilities    json.RawMessage
	instructions    *string
	protocolVersion string

	mux      sync.RWMutex
	notifier transport.Notifier
}

// Notify sends a notification to the connected local client. Notifications
// are dropped while no client is connected.
func (s *Server) Notify(ctx context.Context, notification *jsonrpc.Notification) error {
	s.mux.RLock()
	notifier := s.notifier
	s.mux.RUnlock()
	if notifier == nil {
		s.logger.V(1).Info("no local client, dropping notification", "method", notification.Method)
		return nil
	}
	return notifier.Notify(ctx, notification)
}

func (s *Server) cancelOperation(key string) {
	if cancel, ok := s.activeContexts.Take(key); ok {
		cancel()
	}
}

func (s *Server) setRemote(result json.RawMessage) error {
	var remote struct {
		ProtocolVersion string          `json:"protocolVersion"`
		Capabilities    json.RawMessage `json:"capabilities"`
		Instructions    *string         `json:"instructions"`
	}
	if err := json.Unmarshal(result, &remote); err != nil {
		return errors.Wrap(err, "failed to decode remote initialize result")
	}
	if remote.ProtocolVersion != "" {
		s.protocolVersion = remote.ProtocolVersion
	}
	if len(remote.Capabilities) > 0 && string(remote.Capabilities) != "null" {
		s.capabilities = remote.Capabilities
	}
	s.instructions = remote.Instructions
	return nil
}

// NewHandler creates a handler for one local client connection
func (s *Server) NewHandler(ctx context.Context, transport transport.Transport) transport.Handler {
	s.mux.Lock()
	s.notifier = transport
	s.mux.Unlock()
	return &Handler{Server: s}
}

// New creates a new Server instance
func New(options ...Option) (*Server, error) {
	s := &Server{
		activeContexts:  collection.NewSyncMap[string, context.CancelFunc](),
		capabilities:    json.RawMessage(`{}`),
		protocolVersion: schema.LatestProtocolVersion,
		info: schema.Implementation{
			Name:    "mcp-sse-bridge",
			Version: "1.0.0",
		},
		logger: logr.Discard(),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	if s.catalog == nil {
		return nil, errors.New("no catalog specified")
	}
	if s.forwarder == nil {
		return nil, errors.New("no forwarder specified")
	}
	return s, nil
}
