// Package metrics registers the process's Prometheus instruments and exposes
// the scrape handler.
package metrics
