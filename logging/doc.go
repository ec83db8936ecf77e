// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that the orchestrator, the tool adapter and the stores use for
// observability. Arguments after the message are alternating key/value pairs,
// the same convention as log/slog. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping *slog.Logger
//   - ZerologAdapter wrapping zerolog for console oriented output
//   - TurnLogger, a structured logger with thread/turn scoping and domain
//     helpers for model calls, tool calls and turn outcomes
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng, err := engine.New(m, tools, prompt, func(o *engine.Options) { o.Logger = logger })
package logging
