// Package verdict holds the pure decision algorithm: cosine similarity,
// per-segment classification against the two reference clips, and the
// interview-level aggregation. It carries no I/O so the whole ruleset is
// testable with plain vectors.
package verdict
