// Package server implements the local side of the bridge: a JSON-RPC handler
// served over stdio.
//
// Capability listings are answered from mirrors held by a Catalog, initialize and
// ping are answered locally, and every other supported MCP method is relayed
// one-to-one to the remote server through a Forwarder.
//
//	s, _ := server.New(server.WithCatalog(catalog), server.WithForwarder(remote))
//	log.Fatal(s.Stdio(ctx, os.Stdin, os.Stdout).ListenAndServe())
package server
