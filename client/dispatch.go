package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glyphs-mcp/bridge/internal/conv"
	"github.com/glyphs-mcp/bridge/schema"
	"github.com/viant/jsonrpc"
)

// enqueue hands a raw message to the inbound loop.
func (c *Client) enqueue(ctx context.Context, data []byte) {
	select {
	case c.inbound <- data:
	case <-ctx.Done():
	case <-c.ctx.Done():
	}
}

// loop routes every inbound message, whichever channel delivered it.
func (c *Client) loop() {
	for {
		select {
		case data := <-c.inbound:
			c.dispatch(data)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(data []byte) {
	envelope := &schema.Envelope{}
	if err := json.Unmarshal(data, envelope); err != nil {
		c.logger.Error(err, "dropping malformed message", "data", truncate(data))
		return
	}
	if envelope.Jsonrpc != schema.Version {
		c.logger.V(1).Info("ignoring non JSON-RPC event", "data", truncate(data))
		return
	}
	switch {
	case envelope.IsNotification():
		c.onNotification(envelope)
	case envelope.IsRequest():
		go c.serveRemote(envelope)
	case envelope.IsResponse():
		c.onResponse(envelope)
	default:
		c.logger.V(1).Info("dropping message without method or id", "data", truncate(data))
	}
}

func (c *Client) onResponse(envelope *schema.Envelope) {
	id, ok := conv.AsUint64(envelope.Id)
	if !ok {
		c.logger.V(1).Info("dropping response with foreign id", "id", string(envelope.Id))
		return
	}
	var err error
	if envelope.Error != nil {
		err = envelope.Error
	}
	if !c.resolve(id, envelope.Result, err) {
		c.logger.V(1).Info("dropping late or unknown response", "id", id)
	}
}

func (c *Client) onNotification(envelope *schema.Envelope) {
	if c.handler == nil {
		c.logger.V(1).Info("dropping notification", "method", envelope.Method)
		return
	}
	c.handler.OnNotification(c.ctx, &jsonrpc.Notification{Jsonrpc: jsonrpc.Version, Method: envelope.Method, Params: envelope.Params})
}

// serveRemote answers a request initiated by the remote server.
func (c *Client) serveRemote(envelope *schema.Envelope) {
	var id interface{}
	_ = json.Unmarshal(envelope.Id, &id)
	request := &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: id, Method: envelope.Method, Params: envelope.Params}
	response := &jsonrpc.Response{Id: id, Jsonrpc: jsonrpc.Version}
	if c.handler != nil {
		c.handler.Serve(c.ctx, request, response)
	} else {
		response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", envelope.Method), nil)
	}
	reply := &schema.Response{Jsonrpc: schema.Version, Id: envelope.Id, Result: response.Result}
	if response.Error != nil {
		reply.Result = nil
		reply.Error = &schema.Error{Code: response.Error.Code, Message: response.Error.Message, Data: json.RawMessage(response.Error.Data)}
	} else if len(reply.Result) == 0 {
		reply.Result = json.RawMessage("{}")
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		c.logger.Error(err, "failed to encode reply", "method", envelope.Method)
		return
	}
	if err = c.deliver(c.ctx, envelope.Method+" reply", payload); err != nil {
		c.logger.Error(err, "failed to reply to server request", "method", envelope.Method)
	}
}

func truncate(data []byte) string {
	if len(data) > 256 {
		return string(data[:256]) + "..."
	}
	return string(data)
}
