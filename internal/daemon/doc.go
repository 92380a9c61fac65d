// Package daemon wires the pipeline together: it runs one consumer per
// configured stage against the broker, serves the health/status API and the
// metrics endpoint, reaps stale scratch directories, and enforces
// single-instance execution per host.
package daemon
