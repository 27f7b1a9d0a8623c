// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// dataset analysis tools. It uses the mark3labs/mcp-go library to handle the
// protocol details and provides query_data, visualize_data, get_dataset_info
// and get_statistics as the interface to the validated, sandboxed execution
// pipeline.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, frame, snippetRunner)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
