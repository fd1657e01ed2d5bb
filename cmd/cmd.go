// Package cmd provides the rex CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE chat streaming
//   - mcp: Model Context Protocol server for IDE integration
//
// All commands shut down gracefully on SIGINT/SIGTERM via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vlaship/rex/internal/log"
)

// Execute is the main entry point for the rex CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: os.Getenv("REX_LOG_JSON") != ""})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "mcp":
		return runMCP(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Rex - conversational assistant backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rex serve [addr]   Start HTTP API server (default: :8080)")
	fmt.Println("  rex mcp            Start MCP server on stdio (for Claude Desktop/Cursor)")
	fmt.Println("  rex --version      Show version information")
	fmt.Println("  rex --help         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required for the gemini provider")
	fmt.Println("  REX_PROVIDER       Model provider: gemini (default) or ollama")
	fmt.Println("  REX_MODEL_NAME     Override the chat model")
	fmt.Println("  REX_SERVE_ADDR     Override the HTTP listen address")
	fmt.Println("  DEBUG              Enable debug logging")
	fmt.Println("  REX_LOG_JSON       Switch logs to JSON format")
}
