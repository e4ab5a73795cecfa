// Package bridge connects a local stdio MCP client to a remote MCP server that
// answers over HTTP POST and a server-sent-events push channel.
//
// On Start the bridge opens the push channel, initializes the remote session and
// mirrors the remote tools, resources and prompts. The local server answers the
// listing methods from those mirrors and relays every other call to the remote.
// list_changed notifications are forwarded to the local client right away and
// the matching mirror is refreshed in the background.
package bridge
