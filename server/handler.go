package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	bridgeschema "github.com/glyphs-mcp/bridge/schema"
	"github.com/viant/jsonrpc"
)

// Handler represents handler
type Handler struct {
	*Server
}

// Serve handles incoming JSON-RPC requests
func (h *Handler) Serve(parent context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Id = request.Id
	response.Jsonrpc = request.Jsonrpc
	if jsonrpc.Version != request.Jsonrpc {
		response.Error = jsonrpc.NewInvalidRequest("invalid JSON-RPC version", nil)
		return
	}
	switch request.Method {
	case bridgeschema.MethodInitialize:
		result, err := h.Initialize(parent, request)
		h.setResponse(response, result, err)
	case bridgeschema.MethodPing:
		h.setResponse(response, json.RawMessage(`{}`), nil)
	case bridgeschema.MethodToolsList,
		bridgeschema.MethodResourcesList,
		bridgeschema.MethodPromptsList:
		result, err := h.List(request)
		h.setResponse(response, result, err)
	case bridgeschema.MethodToolsCall,
		bridgeschema.MethodResourcesRead,
		bridgeschema.MethodResourcesTemplatesList,
		bridgeschema.MethodSubscribe,
		bridgeschema.MethodUnsubscribe,
		bridgeschema.MethodPromptsGet,
		bridgeschema.MethodComplete,
		bridgeschema.MethodLoggingSetLevel:
		result, err := h.Forward(parent, request)
		h.setResponse(response, result, err)
	default:
		response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", request.Method), nil)
	}
}

// List answers a listing method from the catalog
func (h *Handler) List(request *jsonrpc.Request) (json.RawMessage, *jsonrpc.Error) {
	result, ok, err := h.catalog.List(request.Method)
	if !ok {
		return nil, jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", request.Method), nil)
	}
	if err != nil {
		return nil, jsonrpc.NewInternalError(err.Error(), nil)
	}
	return result, nil
}

// Forward relays the request to the remote server with its params unchanged
func (h *Handler) Forward(parent context.Context, request *jsonrpc.Request) (json.RawMessage, *jsonrpc.Error) {
	ctx, cancel := context.WithCancel(parent)
	key := requestKey(request.Id)
	h.activeContexts.Put(key, cancel)
	defer h.cancelOperation(key)

	result, err := h.forwarder.Call(ctx, request.Method, request.Params)
	if err != nil {
		var rpcError *bridgeschema.Error
		if errors.As(err, &rpcError) {
			return nil, rpcError.RPC()
		}
		h.logger.Error(err, "forwarded request failed", "method", request.Method)
		return nil, jsonrpc.NewInternalError(err.Error(), nil)
	}
	return result, nil
}

func (h *Handler) setResponse(response *jsonrpc.Response, result json.RawMessage, rpcError *jsonrpc.Error) {
	if rpcError != nil {
		response.Error = rpcError
		return
	}
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	response.Result = result
}

// OnNotification handles incoming JSON-RPC notifications
func (h *Handler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	switch notification.Method {
	case bridgeschema.MethodNotificationInitialized:
		h.logger.V(1).Info("local client initialized")
	case bridgeschema.MethodNotificationCancel:
		h.Cancel(notification)
	default:
		h.logger.V(1).Info("ignoring local notification", "method", notification.Method)
	}
}

// Cancel aborts an in-flight forwarded request named by notifications/cancelled
func (h *Handler) Cancel(notification *jsonrpc.Notification) {
	var params struct {
		RequestId json.RawMessage `json:"requestId"`
		Reason    string          `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(notification.Params, &params); err != nil || len(params.RequestId) == 0 {
		return
	}
	var id interface{}
	if err := json.Unmarshal(params.RequestId, &id); err != nil {
		return
	}
	h.logger.V(1).Info("cancelling forwarded request", "requestId", id, "reason", params.Reason)
	h.cancelOperation(requestKey(id))
}

func requestKey(id interface{}) string {
	data, _ := json.Marshal(id)
	return string(data)
}
