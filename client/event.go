package client

import (
	"bufio"
	"bytes"
	"io"
)

const maxEventSize = 10 * 1024 * 1024

// event is one server-sent event.
// The retry field is ignored: reconnects use the configured fixed delay.
type event struct {
	Type string
	ID   string
	Data []byte
}

// isMessage reports whether the event carries a JSON-RPC payload.
func (e *event) isMessage() bool {
	return e.Type == "" || e.Type == "message"
}

// eventReader decodes a text/event-stream body.
type eventReader struct {
	scanner *bufio.Scanner
	lastID  string
}

// Next returns the next dispatched event. An event left incomplete at the end
// of the stream is discarded.
func (r *eventReader) Next() (*event, error) {
	var data bytes.Buffer
	var hasData bool
	ret := &event{}
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			if !hasData {
				ret = &event{}
				continue
			}
			ret.Data = bytes.TrimSuffix(data.Bytes(), []byte("\n"))
			ret.ID = r.lastID
			return ret, nil
		}
		if line[0] == ':' {
			continue
		}
		field, value := line, []byte{}
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}
		switch string(field) {
		case "data":
			data.Write(value)
			data.WriteByte('\n')
			hasData = true
		case "event":
			ret.Type = string(value)
		case "id":
			if bytes.IndexByte(value, 0) < 0 {
				r.lastID = string(value)
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func newEventReader(reader io.Reader) *eventReader {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &eventReader{scanner: scanner}
}
