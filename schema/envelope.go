package schema

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ErrMalformed is returned for payloads that are not valid JSON.
var ErrMalformed = errors.New("malformed JSON-RPC payload")

// Version is the only JSON-RPC protocol version accepted from the remote server.
const Version = "2.0"

// Envelope is any JSON-RPC 2.0 message: request, notification or response.
type Envelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HasId reports whether the envelope carries a non-null id.
func (e *Envelope) HasId() bool {
	return len(e.Id) > 0 && !bytes.Equal(e.Id, []byte("null"))
}

// IsRequest reports whether the envelope is a request expecting a response.
func (e *Envelope) IsRequest() bool {
	return e.Method != "" && e.HasId()
}

// IsNotification reports whether the envelope is a notification.
func (e *Envelope) IsNotification() bool {
	return e.Method != "" && !e.HasId()
}

// IsResponse reports whether the envelope answers an earlier request.
func (e *Envelope) IsResponse() bool {
	return e.Method == "" && e.HasId()
}

// Request is an outbound request or notification as written to the request channel.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound reply to a remote-initiated request.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Split decodes a JSON body holding either a single message or a batch.
func Split(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, errors.Mark(err, ErrMalformed)
		}
		return batch, nil
	}
	if !json.Valid(data) {
		return nil, ErrMalformed
	}
	return []json.RawMessage{data}, nil
}
