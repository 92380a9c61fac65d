// Package services holds the cross-cutting helpers stage code depends on:
// sentinel-based error classification and context annotations.
//
// Every collaborator failure is wrapped with one of the exported sentinels at
// the point of invocation, so no raw error crosses a stage boundary
// unclassified. The broker consumer reads the classification back through
// Classify to decide between acknowledge, requeue, and dead-letter.
package services
