// ABOUTME: Entry point for the agencycrm CLI, API server, and MCP server
// ABOUTME: Hands off to the cobra command tree
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harperreed/agencycrm/cli"
)

const version = "0.1.0"

func main() {
	if err := cli.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
