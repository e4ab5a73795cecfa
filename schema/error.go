package schema

import (
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
)

// Standard JSON-RPC error codes used by the bridge.
const (
	InvalidRequest = -32600
	MethodNotFound = -32601
	InternalError  = -32603
)

// Error is a JSON-RPC error object as received from the remote server.
// Data is kept raw so it can be relayed without loss.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// RPC converts the error into a local JSON-RPC error.
func (e *Error) RPC() *jsonrpc.Error {
	ret := &jsonrpc.Error{Code: e.Code, Message: e.Message}
	if len(e.Data) > 0 {
		ret.Data = e.Data
	}
	return ret
}
