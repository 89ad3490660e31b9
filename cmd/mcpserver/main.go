// Command boardofone-mcpserver exposes Board of One's deliberation
// sessions over the Model Context Protocol via stdio, so a host agent can
// start, poll, pause, resume, and kill sessions as tool calls rather than
// driving the engine as a library.
//
// Environment variables:
//   - DEBUG: set to "true" to enable file:line-annotated logging
//   - BOARDOFONE_CONFIG: path to a JSON config file (optional)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, VOYAGE_API_KEY: provider credentials
package main

import (
	"context"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"boardofone/internal/config"
	"boardofone/internal/engine"
	"boardofone/internal/mcpserver"
)

func main() {
	if os.Getenv("DEBUG") == "true" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("Starting Board of One MCP server in debug mode...")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	comps, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Printf("Warning: failed to close engine: %v", err)
		}
	}()
	log.Println("Initialized deliberation engine")

	srv := mcpserver.New(comps)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "boardofone-server",
		Version: cfg.Server.Version,
	}, nil)
	log.Println("Created MCP server")

	srv.RegisterTools(mcpServer)
	log.Println("Registered tools: start-deliberation, deliberation-status, deliberation-result, pause-deliberation, resume-deliberation, kill-deliberation")

	transport := &mcp.StdioTransport{}
	log.Println("Created stdio transport")

	ctx := context.Background()
	log.Println("Starting MCP server...")
	if err := mcpServer.Run(ctx, transport); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func loadConfig() (config.Config, error) {
	if path := os.Getenv("BOARDOFONE_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
