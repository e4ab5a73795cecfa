package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
)

// Initialize handles the initialize method. The remote session is already
// initialized; the client gets the remote capabilities under the bridge identity.
func (h *Handler) Initialize(ctx context.Context, request *jsonrpc.Request) (json.RawMessage, *jsonrpc.Error) {
	params := schema.InitializeRequestParams{}
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, jsonrpc.NewInvalidParamsError(fmt.Sprintf("failed to parse %v", err), nil)
		}
	}
	protocolVersion := h.protocolVersion
	if params.ProtocolVersion != "" {
		protocolVersion = params.ProtocolVersion
	}
	h.logger.Info("local client initializing", "client", params.ClientInfo.Name, "protocolVersion", protocolVersion)
	result := struct {
		ProtocolVersion string                `json:"protocolVersion"`
		Capabilities    json.RawMessage       `json:"capabilities"`
		ServerInfo      schema.Implementation `json:"serverInfo"`
		Instructions    *string               `json:"instructions,omitempty"`
	}{
		ProtocolVersion: protocolVersion,
		Capabilities:    h.capabilities,
		ServerInfo:      h.info,
		Instructions:    h.instructions,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, jsonrpc.NewInternalError(err.Error(), nil)
	}
	return data, nil
}
