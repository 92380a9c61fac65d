// Package ledger persists per-interview job state: the status machine, the
// monotonic attempt counter, the append-only history, and the write-once
// results. Transitions are compare-and-set so at-least-once message delivery
// cannot double-process a job.
package ledger
