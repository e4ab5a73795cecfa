package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"
	"github.com/viant/jsonrpc"
	transportbase "github.com/viant/jsonrpc/transport/base"
	"github.com/viant/jsonrpc/transport/server/base"
)

const stdioSessionID = "stdio"

// Stdio serves one local client over newline delimited JSON-RPC.
// Requests run concurrently; notifications are handled in arrival order, so a
// cancellation is seen while the call it names is still in flight.
type Stdio struct {
	ctx      context.Context
	reader   io.Reader
	endpoint *base.Handler
	session  *base.Session
	inflight sync.WaitGroup
}

// ListenAndServe reads until in is exhausted or ctx is done. On end of input it
// waits for in-flight requests to write their responses.
func (s *Stdio) ListenAndServe() error {
	lines := make(chan []byte)
	done := make(chan error, 1)
	go s.scan(lines, done)
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case err := <-done:
			s.inflight.Wait()
			return err
		case line := <-lines:
			s.handle(line)
		}
	}
}

func (s *Stdio) scan(lines chan<- []byte, done chan<- error) {
	reader := bufio.NewReader(s.reader)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			select {
			case lines <- line:
			case <-s.ctx.Done():
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			done <- err
			return
		}
	}
}

func (s *Stdio) handle(line []byte) {
	if transportbase.MessageType(line) != jsonrpc.MessageTypeRequest {
		s.endpoint.HandleMessage(s.ctx, s.session, line, nil)
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.endpoint.HandleMessage(s.ctx, s.session, line, nil)
	}()
}

// Stdio returns the server answering the local client reading in and writing out.
// Notifications sent through Notify are written to out as well.
func (s *Server) Stdio(ctx context.Context, in io.Reader, out io.Writer) *Stdio {
	s.logger.V(1).Info("serving local client over stdio", "name", s.info.Name, "protocolVersion", s.protocolVersion)
	ret := &Stdio{ctx: ctx, reader: in, endpoint: base.NewHandler()}
	ret.endpoint.Logger = &errorLogger{logger: s.logger}
	ret.session = base.NewSession(ctx, stdioSessionID, out, s.NewHandler, base.WithFramer(frameLine))
	return ret
}

func frameLine(data []byte) []byte {
	if bytes.HasSuffix(data, []byte{'\n'}) {
		return data
	}
	return append(data, '\n')
}

// errorLogger adapts logr to jsonrpc.Logger.
type errorLogger struct {
	logger logr.Logger
}

func (l *errorLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(nil, fmt.Sprintf(format, args...))
}
