// Package inference is the HTTP client for the speaker-embedding service.
package inference
