// Package main is the entry point for the Databox MCP server.
//
// The Databox server implements a secure Model Context Protocol (MCP) server
// that runs untrusted analysis snippets against an in-memory tabular dataset.
// Every snippet is statically validated, then executed in an isolated worker
// process with memory and wall-clock limits. The server supports both stdio
// and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
