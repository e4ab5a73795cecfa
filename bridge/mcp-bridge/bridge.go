package main

import (
	"os"

	"github.com/glyphs-mcp/bridge/bridge"
)

// main exits non-zero when the bridge stopped on an error; Run has already logged it.
func main() {
	if err := bridge.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
