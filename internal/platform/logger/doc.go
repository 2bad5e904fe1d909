// Package logger provides structured logging for both pipeline processes.
//
// It utilizes Go's standard library log/slog package to implement structured
// JSON logging with configurable log levels, plus helpers for carrying a
// request-scoped logger through a context.
package logger
