package client

import (
	"net/http"
	"sync"

	"github.com/glyphs-mcp/bridge/schema"
)

// session holds the identifier assigned by the remote server. It is only ever
// adopted from response headers and survives push channel reconnects.
type session struct {
	mux sync.RWMutex
	id  string
}

func (s *session) ID() string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.id
}

// capture adopts a non-empty session header; it reports whether the id changed.
func (s *session) capture(header http.Header) bool {
	id := header.Get(schema.SessionHeader)
	if id == "" {
		return false
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if id == s.id {
		return false
	}
	s.id = id
	return true
}

func (s *session) apply(header http.Header) {
	if id := s.ID(); id != "" {
		header.Set(schema.SessionHeader, id)
	}
}
