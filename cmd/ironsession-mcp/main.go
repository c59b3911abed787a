// Command ironsession-mcp serves the IronSession MCP tools over stdio,
// reading data from a remote IronSession server through its REST API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	ismcp "github.com/claude/ironsession/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "http://ironsession", "base URL of the IronSession server")
	flag.Parse()

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("IronSession MCP starting", "version", Version, "server", *serverURL)

	s := ismcp.New(ismcp.NewHTTPClient(*serverURL), Version, log)
	if err := mcpserver.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %v\n", err)
		os.Exit(1)
	}
}
