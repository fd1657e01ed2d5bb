// Package mcp exposes the tool registry over the Model Context Protocol.
//
// The same handlers the model calls through Genkit are reachable here,
// so an external MCP client sees identical tool behavior.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vlaship/rex/internal/tools"
)

// Server wraps the MCP SDK server around the tool registry.
type Server struct {
	mcpServer *mcp.Server
	registry  *tools.Registry
	logger    *slog.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// NewServer creates an MCP server exposing the registry's tools.
func NewServer(cfg Config, registry *tools.Registry, logger *slog.Logger) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcp: server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("mcp: server version is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("mcp: tool registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		registry: registry,
		logger:   logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("mcp: registering tools: %w", err)
	}
	return s, nil
}

// Run serves MCP protocol traffic on the given transport until ctx is
// canceled. Blocking.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server running")
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerCurrentTime(); err != nil {
		return err
	}
	if err := s.registerSearchDocuments(); err != nil {
		return err
	}
	return s.registerCountDocuments()
}

func (s *Server) registerCurrentTime() error {
	inputSchema, err := jsonschema.For[tools.CurrentTimeInput](nil)
	if err != nil {
		return fmt.Errorf("current_time schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        tools.CurrentTimeName,
		Description: "Get the current date and time in RFC 3339 format plus a Unix timestamp.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(_ context.Context, _ *mcp.CallToolRequest, in tools.CurrentTimeInput) (*mcp.CallToolResult, any, error) {
		out, err := s.registry.CurrentTime(nil, in)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out)
	})
	return nil
}

func (s *Server) registerSearchDocuments() error {
	inputSchema, err := jsonschema.For[tools.SearchDocumentsInput](nil)
	if err != nil {
		return fmt.Errorf("search_documents schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: tools.SearchDocumentsName,
		Description: "Search the indexed document store using semantic similarity. " +
			"Returns document excerpts with similarity scores. Default topK: 5, maximum: 10.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in tools.SearchDocumentsInput) (*mcp.CallToolResult, any, error) {
		out, err := s.registry.SearchDocuments(toolContext(ctx), in)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out)
	})
	return nil
}

func (s *Server) registerCountDocuments() error {
	inputSchema, err := jsonschema.For[tools.CountDocumentsInput](nil)
	if err != nil {
		return fmt.Errorf("count_documents schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: tools.CountDocumentsName,
		Description: "Count documents in the store, optionally restricted to documents " +
			"whose metadata contains the given key/value pairs.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in tools.CountDocumentsInput) (*mcp.CallToolResult, any, error) {
		out, err := s.registry.CountDocuments(toolContext(ctx), in)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out)
	})
	return nil
}

// textResult marshals a handler output as a single JSON text content part.
func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// errorResult reports a handler failure to the client without failing
// the protocol call.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}

// toolContext adapts a plain context for handlers shared with Genkit.
func toolContext(ctx context.Context) *ai.ToolContext {
	return &ai.ToolContext{Context: ctx}
}
