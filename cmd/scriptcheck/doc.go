// Package main hosts the scriptcheck CLI entrypoint and command graph.
//
// The Cobra-based command tree covers configuration scaffolding, submitting
// recordings to the pipeline, and inspecting an interview's ledger state
// through the daemon's HTTP API. It centralizes configuration resolution so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
