// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the capture pipeline for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/sink"
	"github.com/starford/ansuz/internal/storage"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp   *server.MCPServer
	pipe  *pipeline.Pipeline
	store storage.Provider
	sink  *sink.Sink
}

// New creates a new MCP server with all Ansuz tools registered.
func New(pipe *pipeline.Pipeline, store storage.Provider, s *sink.Sink) *Server {
	srv := &Server{pipe: pipe, store: store, sink: s}

	srv.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	srv.mcp.AddTool(mcp.NewTool("capture_text",
		mcp.WithDescription("Feed one raw captured payload (free text or JSON) through the "+
			"note/task pipeline. Recognized commands are deduplicated and appended to the "+
			"destination logs; returns how many commands were committed."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw payload text")),
		mcp.WithString("source", mcp.Description("Capture channel label (defaults to mcp)")),
	), srv.captureText)

	srv.mcp.AddTool(mcp.NewTool("pipeline_stats",
		mcp.WithDescription("Return the pipeline counters: payloads, candidates, commands, "+
			"commits, and duplicate suppressions per tier."),
	), srv.pipelineStats)

	srv.mcp.AddTool(mcp.NewTool("read_log",
		mcp.WithDescription("Read one day's destination log."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("note or task")),
		mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD (defaults to today)")),
	), srv.readLog)

	// Resource: utterance format contract.
	srv.mcp.AddResource(
		mcp.NewResource("ansuz://command-format", "Command Format",
			mcp.WithResourceDescription("The spoken/typed utterance shapes the pipeline recognizes."),
			mcp.WithMIMEType("text/markdown"),
		),
		srv.readCommandFormatResource,
	)

	return srv
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) captureText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := "mcp"
	if v, err := req.RequireString("source"); err == nil && v != "" {
		source = v
	}

	committed, err := s.pipe.Handle(ctx, source, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("committed: %d", committed)), nil
}

func (s *Server) pipelineStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.pipe.Stats().Snapshot(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kindStr, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, ok := command.ParseKind(kindStr)
	if !ok {
		return mcp.NewToolResultError("kind must be note or task"), nil
	}
	date := time.Now().Format("2006-01-02")
	if v, err := req.RequireString("date"); err == nil && v != "" {
		date = v
	}

	data, err := s.store.Read(s.sink.LogPath(kind, date))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no %s log for %s", kind, date)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readCommandFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://command-format",
			MIMEType: "text/markdown",
			Text:     CommandFormatContract,
		},
	}, nil
}
