// Package analyzer implements the second pipeline stage: scoring uploaded
// audio clips against the two reference recordings via the embedding service
// and recording the interview's verdict in the job ledger.
package analyzer
