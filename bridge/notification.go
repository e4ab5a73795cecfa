package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	bridgeschema "github.com/glyphs-mcp/bridge/schema"
	"github.com/viant/jsonrpc"
)

// remoteHandler receives notifications and requests initiated by the remote server.
type remoteHandler struct {
	service *Service
}

// OnNotification forwards the notification to the local client, then refreshes
// the matching mirror in the background when a listing changed.
func (h *remoteHandler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	if !bridgeschema.Forwarded(notification.Method) {
		h.service.logger.V(1).Info("ignoring remote notification", "method", notification.Method)
		return
	}
	if srv := h.service.server.Load(); srv != nil {
		if err := srv.Notify(ctx, notification); err != nil {
			h.service.logger.Error(err, "failed to forward notification", "method", notification.Method)
		}
	}
	if listing, ok := bridgeschema.ListingFor(notification.Method); ok {
		h.service.refreshAsync(listing)
	}
}

// Serve answers requests from the remote server.
func (h *remoteHandler) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	response.Id = request.Id
	response.Jsonrpc = request.Jsonrpc
	switch request.Method {
	case bridgeschema.MethodPing:
		response.Result = json.RawMessage(`{}`)
	default:
		response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", request.Method), nil)
	}
}
