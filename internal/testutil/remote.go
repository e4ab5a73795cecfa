// Package testutil provides a fake remote MCP endpoint speaking the
// POST + server-sent-events session protocol.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/glyphs-mcp/bridge/schema"
	"github.com/google/uuid"
)

// Handler answers one posted message. A nil Reply means 202 Accepted with an empty body.
type Handler func(remote *Remote, message *schema.Envelope) *Reply

// Reply describes the HTTP reply to a posted message.
type Reply struct {
	Status      int
	ContentType string
	Body        []byte
}

// Recorded is a message posted by the client.
type Recorded struct {
	Header  http.Header
	Message schema.Envelope
}

// Remote is a fake MCP server with one endpoint serving both channels.
type Remote struct {
	Server    *httptest.Server
	SessionID string

	mux           sync.Mutex
	handlers      map[string]Handler
	streams       map[*stream]struct{}
	requests      []Recorded
	streamHeaders []http.Header
	rejectStatus  int
	postStatus    int
	streamOpened  chan struct{}
	eventSeq      atomic.Uint64
	done          chan struct{}
	closeOnce     sync.Once
}

type stream struct {
	messages chan []byte
	closed   chan struct{}
	once     sync.Once
}

func (s *stream) close() {
	s.once.Do(func() { close(s.closed) })
}

// Handle registers handler for method.
func (r *Remote) Handle(method string, handler Handler) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.handlers[method] = handler
}

// HandleResult answers method with a fixed result in the HTTP body.
func (r *Remote) HandleResult(method string, result string) {
	r.Handle(method, func(_ *Remote, message *schema.Envelope) *Reply {
		return JSONReply(Response(message.Id, result))
	})
}

// Push sends data as a message event on every open push channel. Pushed
// events carry ids increasing across all channels, starting at 1.
func (r *Remote) Push(data []byte) {
	r.mux.Lock()
	defer r.mux.Unlock()
	for s := range r.streams {
		select {
		case s.messages <- data:
		case <-s.closed:
		case <-r.done:
		}
	}
}

// DropStreams ends every open push channel.
func (r *Remote) DropStreams() {
	r.mux.Lock()
	defer r.mux.Unlock()
	for s := range r.streams {
		s.close()
		delete(r.streams, s)
	}
}

// RejectStreams makes later push channel opens fail with status; 0 accepts them again.
func (r *Remote) RejectStreams(status int) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.rejectStatus = status
}

// FailPosts makes later posts fail with status; 0 restores normal handling.
func (r *Remote) FailPosts(status int) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.postStatus = status
}

// StreamOpened signals every accepted push channel open.
func (r *Remote) StreamOpened() <-chan struct{} {
	return r.streamOpened
}

// Streams returns the number of open push channels.
func (r *Remote) Streams() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.streams)
}

// Requests returns the posted messages in arrival order.
func (r *Remote) Requests() []Recorded {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]Recorded{}, r.requests...)
}

// RequestsFor returns the posted messages with method.
func (r *Remote) RequestsFor(method string) []Recorded {
	var ret []Recorded
	for _, recorded := range r.Requests() {
		if recorded.Message.Method == method {
			ret = append(ret, recorded)
		}
	}
	return ret
}

// StreamHeaders returns the request headers of every push channel open attempt.
func (r *Remote) StreamHeaders() []http.Header {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]http.Header{}, r.streamHeaders...)
}

func (r *Remote) URL() string {
	return r.Server.URL + "/mcp"
}

func (r *Remote) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.DropStreams()
		r.Server.Close()
	})
}

func (r *Remote) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.serveStream(w, req)
	case http.MethodPost:
		r.servePost(w, req)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (r *Remote) serveStream(w http.ResponseWriter, req *http.Request) {
	r.mux.Lock()
	r.streamHeaders = append(r.streamHeaders, req.Header.Clone())
	status := r.rejectStatus
	r.mux.Unlock()
	w.Header().Set(schema.SessionHeader, r.SessionID)
	if status != 0 {
		http.Error(w, "stream unavailable", status)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	s := &stream{messages: make(chan []byte, 64), closed: make(chan struct{})}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": keepalive\n\ndata: {\"type\":\"connection\"}\n\n")
	flusher.Flush()

	r.mux.Lock()
	r.streams[s] = struct{}{}
	r.mux.Unlock()
	select {
	case r.streamOpened <- struct{}{}:
	default:
	}
	defer func() {
		r.mux.Lock()
		delete(r.streams, s)
		r.mux.Unlock()
	}()
	for {
		select {
		case data := <-s.messages:
			_, _ = fmt.Fprintf(w, "id: %d\nevent: message\ndata: %s\n\n", r.eventSeq.Add(1), data)
			flusher.Flush()
		case <-s.closed:
			return
		case <-r.done:
			return
		case <-req.Context().Done():
			return
		}
	}
}

func (r *Remote) servePost(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	message := schema.Envelope{}
	if err := json.Unmarshal(body, &message); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	r.mux.Lock()
	r.requests = append(r.requests, Recorded{Header: req.Header.Clone(), Message: message})
	handler := r.handlers[message.Method]
	status := r.postStatus
	r.mux.Unlock()

	w.Header().Set(schema.SessionHeader, r.SessionID)
	if status != 0 {
		http.Error(w, "request failed", status)
		return
	}
	var reply *Reply
	switch {
	case handler != nil:
		reply = handler(r, &message)
	case message.IsRequest():
		reply = JSONReply(ErrorResponse(message.Id, schema.MethodNotFound, "method not found: "+message.Method))
	}
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}

// JSONReply wraps body as an application/json reply.
func JSONReply(body []byte) *Reply {
	return &Reply{ContentType: "application/json", Body: body}
}

// EventReply wraps messages as a text/event-stream reply.
func EventReply(messages ...[]byte) *Reply {
	var body []byte
	for _, message := range messages {
		body = append(body, "event: message\ndata: "...)
		body = append(body, message...)
		body = append(body, "\n\n"...)
	}
	return &Reply{ContentType: "text/event-stream", Body: body}
}

// Response builds a JSON-RPC result response.
func Response(id json.RawMessage, result string) []byte {
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":%s}`, id, result))
}

// ErrorResponse builds a JSON-RPC error response.
func ErrorResponse(id json.RawMessage, code int, message string) []byte {
	data, _ := json.Marshal(message)
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"error":{"code":%d,"message":%s}}`, id, code, data))
}

// Notification builds a JSON-RPC notification.
func Notification(method string, params string) []byte {
	if params == "" {
		return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","method":%q}`, method))
	}
	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":%s}`, method, params))
}

// NewRemote starts a fake remote server.
func NewRemote() *Remote {
	ret := &Remote{
		SessionID:    uuid.NewString(),
		handlers:     map[string]Handler{},
		streams:      map[*stream]struct{}{},
		streamOpened: make(chan struct{}, 16),
		done:         make(chan struct{}),
	}
	ret.Server = httptest.NewServer(ret)
	return ret
}
