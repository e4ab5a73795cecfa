package server

import (
	"encoding/json"

	"github.com/go-logr/logr"
	"github.com/viant/mcp-protocol/schema"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithCatalog sets the source of capability listings.
func WithCatalog(catalog Catalog) Option {
	return func(s *Server) error {
		s.catalog = catalog
		return nil
	}
}

// WithForwarder sets the remote relay.
func WithForwarder(forwarder Forwarder) Option {
	return func(s *Server) error {
		s.forwarder = forwarder
		return nil
	}
}

// WithImplementation sets the serverInfo reported on initialize.
func WithImplementation(info schema.Implementation) Option {
	return func(s *Server) error {
		s.info = info
		return nil
	}
}

// WithRemoteInitialize sets the remote initialize result whose capabilities and
// instructions are advertised locally.
func WithRemoteInitialize(result json.RawMessage) Option {
	return func(s *Server) error {
		return s.setRemote(result)
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger logr.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}
