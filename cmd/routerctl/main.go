// Command routerctl inspects and manages MCP servers through a router: it
// registers and starts configured servers, lists the router's view of them,
// and opens sessions to enumerate their tools.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "routerctl:", err)
		os.Exit(1)
	}
}
