// Command mcp-bridge runs the MCP bridge as the `mcpb` binary.
//
// The bridge lets a client that only speaks JSON-RPC over stdin/stdout use a
// remote MCP server that answers over HTTP POST plus a server-sent-events push
// channel. Point it at the server with -u or MCP_SSE_URL:
//
//	mcpb -u http://127.0.0.1:9680/mcp
//
// Diagnostics go to stderr; stdout carries only the JSON-RPC stream.
package main
