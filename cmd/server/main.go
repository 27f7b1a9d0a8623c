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

import (
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/tablab/databox/config"
	"github.com/tablab/databox/logger"
	"github.com/tablab/databox/mcpserver"
	"github.com/tablab/databox/runner"
	"github.com/tablab/databox/sandbox"
	"github.com/tablab/databox/tabular"
)

func main() {
	// The execution engine re-executes this binary as its worker. A process
	// started that way must run the worker protocol and nothing else, so
	// dispatch happens before any server wiring.
	if sandbox.IsWorkerProcess() {
		os.Exit(sandbox.WorkerMain(os.Stdin, os.Stdout))
	}

	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Dataset loaded from CSV
			newFrame,

			// Process-isolated execution engine
			newEngine,

			// Retry orchestrator driving the engine
			newRunner,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					// Use fx to run this as a background task
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

// newFrame loads the dataset every snippet executes against.
func newFrame(cfg *config.Config, log *zap.Logger) (*tabular.Frame, error) {
	frame, err := tabular.Load(cfg.Dataset.CSVPath, tabular.LoadOptions{
		EngineerFeatures: cfg.Dataset.EngineerFeatures,
		DropColumns:      cfg.Dataset.DropColumns,
	})
	if err != nil {
		return nil, err
	}
	log.Info("dataset loaded",
		zap.String("path", cfg.Dataset.CSVPath),
		zap.Int("rows", frame.NumRows()),
		zap.Int("columns", frame.NumCols()))
	return frame, nil
}

// newEngine builds the execution engine from config.
func newEngine(cfg *config.Config, log *zap.Logger) sandbox.Engine {
	return sandbox.NewProcessEngine(log,
		sandbox.WithTimeout(cfg.GetTimeout()),
		sandbox.WithMemoryHeadroomMB(cfg.Sandbox.MemoryHeadroomMB),
		sandbox.WithOutputLimit(cfg.Sandbox.OutputLimitChars),
		sandbox.WithMaxSteps(cfg.Sandbox.MaxSteps),
	)
}

// newRunner builds the retry orchestrator the MCP tools call.
func newRunner(cfg *config.Config, log *zap.Logger, engine sandbox.Engine) mcpserver.SnippetRunner {
	return runner.NewRunner(log, engine,
		runner.WithMaxAttempts(cfg.Sandbox.MaxAttempts))
}
