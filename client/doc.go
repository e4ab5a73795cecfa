// Package client implements a session with a remote MCP server that answers
// over two HTTP channels on one endpoint:
//   - a long-lived GET event stream (server-sent events) pushing responses and notifications,
//   - POST requests whose reply bodies may also carry responses.
//
// Every message, whichever channel delivered it, goes through a single inbound
// loop that correlates responses to pending requests by id. The session id the
// server assigns in the `Mcp-Session-Id` header is echoed on every later request.
//
// After MarkInitialized a dropped push channel is reopened at a fixed delay until
// it succeeds; before that, losing it is fatal.
//
// Example:
//
//	cli := client.New(ctx, "http://127.0.0.1:9680/mcp", client.WithTimeout(time.Minute))
//	if err := cli.Connect(ctx); err != nil {
//		return err
//	}
//	result, err := cli.Call(ctx, "tools/list", json.RawMessage(`{}`))
package client
