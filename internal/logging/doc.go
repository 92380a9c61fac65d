// Package logging assembles the structured slog loggers used across
// scriptcheck workers and the CLI.
//
// It owns the console/JSON handlers, level and output plumbing, and the
// context-aware helpers that tag log lines with interview IDs, stages, and
// correlation IDs. Prefer these constructors over hand-rolled slog setup so
// every component emits data with the same shape.
package logging
