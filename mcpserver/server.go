// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// dataset analysis tools. It uses the mark3labs/mcp-go library to handle the
// protocol details and provides query_data, visualize_data, get_dataset_info
// and get_statistics as the interface to the validated, sandboxed execution
// pipeline.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/tablab/databox/config"
	"github.com/tablab/databox/runner"
	"github.com/tablab/databox/tabular"
	"github.com/tablab/databox/validate"
)

// SnippetRunner is the part of the runner the server drives. *runner.Runner
// implements it; tests substitute a scripted fake.
type SnippetRunner interface {
	Run(ctx context.Context, snippet string, frame *tabular.Frame, columns validate.ColumnSet, opts ...runner.Option) (string, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	frame     *tabular.Frame
	columns   validate.ColumnSet
	runner    SnippetRunner
	mcpServer *server.MCPServer
}

// New creates a new MCPServer. The column set is registered here, once,
// from the loaded frame; nothing adds to it afterwards.
func New(cfg *config.Config, logger *zap.Logger, frame *tabular.Frame, snippetRunner SnippetRunner) (*MCPServer, error) {
	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		frame:   frame,
		columns: validate.NewColumnSet(frame.Columns()...),
		runner:  snippetRunner,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("sandbox.timeout_ms", s.config.Sandbox.TimeoutMS),
		zap.Int("sandbox.visualize_timeout_ms", s.config.Sandbox.VisualizeTimeoutMS),
		zap.Int("sandbox.memory_headroom_mb", s.config.Sandbox.MemoryHeadroomMB),
		zap.Int("sandbox.output_limit_chars", s.config.Sandbox.OutputLimitChars),
		zap.Int("sandbox.max_attempts", s.config.Sandbox.MaxAttempts),
		zap.Int("dataset.rows", frame.NumRows()),
		zap.Int("dataset.columns", frame.NumCols()),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("databox", "A secure tabular data analysis server")

	// Register the analysis tools
	s.registerQueryDataTool()
	s.registerVisualizeDataTool()
	s.registerDatasetInfoTool()
	s.registerStatisticsTool()

	return s, nil
}

// registerQueryDataTool registers the query_data tool
func (s *MCPServer) registerQueryDataTool() {
	tool := mcp.Tool{
		Name:        "query_data",
		Description: "Run an analysis snippet against the dataset and return the result as text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Starlark analysis code. Must assign the final value to `result`, e.g. result = dataset[\"Age\"].mean()",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleQueryData)
}

// registerVisualizeDataTool registers the visualize_data tool
func (s *MCPServer) registerVisualizeDataTool() {
	tool := mcp.Tool{
		Name:        "visualize_data",
		Description: "Build a chart from the dataset and return it as a base64 JSON chart spec",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Starlark code assigning a chart spec to `result`, e.g. result = charts.bar(labels=[\"m\", \"f\"], values=[1, 2])",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleVisualizeData)
}

// registerDatasetInfoTool registers the get_dataset_info tool
func (s *MCPServer) registerDatasetInfoTool() {
	tool := mcp.Tool{
		Name:        "get_dataset_info",
		Description: "Get the dataset schema: column names, types, null counts and sample values",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleDatasetInfo)
}

// registerStatisticsTool registers the get_statistics tool
func (s *MCPServer) registerStatisticsTool() {
	tool := mcp.Tool{
		Name:        "get_statistics",
		Description: "Get descriptive statistics (count, mean, std, min, quartiles, max) for all numeric columns",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleStatistics)
}

// handleQueryData handles the query_data tool
func (s *MCPServer) handleQueryData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	text, isErr := s.queryData(ctx, code)
	return toolResult(text, isErr), nil
}

// queryData runs one analysis snippet through the full
// validate/execute/retry pipeline and renders the reply text.
func (s *MCPServer) queryData(ctx context.Context, code string) (text string, isErr bool) {
	s.logger.Info("query requested", zap.Int("code_len", len(code)))

	out, err := s.runner.Run(ctx, code, s.frame, s.columns)
	if err != nil {
		s.logger.Warn("query failed", zap.Error(err))
		return fmt.Sprintf("ERROR: %v", err), true
	}
	return out, false
}

// handleVisualizeData handles the visualize_data tool
func (s *MCPServer) handleVisualizeData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	text, isErr := s.visualizeData(ctx, code)
	return toolResult(text, isErr), nil
}

// visualizeData wraps the snippet with the chart-encode epilogue, runs the
// wrapped source through the pipeline with the longer visualization
// timeout, and prefixes the payload. The wrapped source is what gets
// validated: the epilogue obeys the same policy as user code.
func (s *MCPServer) visualizeData(ctx context.Context, code string) (text string, isErr bool) {
	s.logger.Info("visualization requested", zap.Int("code_len", len(code)))

	wrapped := wrapChartCode(code)
	out, err := s.runner.Run(ctx, wrapped, s.frame, s.columns,
		runner.WithTimeout(s.config.GetVisualizeTimeout()))
	if err != nil {
		s.logger.Warn("visualization failed", zap.Error(err))
		return fmt.Sprintf("ERROR: %v", err), true
	}
	if out == "" || out == runner.NoResultText {
		return "ERROR: chart rendering produced no output", true
	}
	return "BASE64:" + out, false
}

// wrapChartCode appends the encode epilogue so the chart spec leaves the
// worker as base64 JSON rather than a live value.
func wrapChartCode(code string) string {
	return strings.TrimRight(code, "\n") + "\n\nresult = charts.encode(result)\n"
}

// handleDatasetInfo handles the get_dataset_info tool
func (s *MCPServer) handleDatasetInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("dataset info requested")
	return toolResult(s.frame.SchemaText(), false), nil
}

// handleStatistics handles the get_statistics tool
func (s *MCPServer) handleStatistics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("statistics requested")
	return toolResult(s.frame.Describe(), false), nil
}

func toolResult(text string, isErr bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: isErr,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
