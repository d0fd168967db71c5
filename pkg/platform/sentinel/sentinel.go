package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks and services return
// these (optionally wrapped) so callers can translate them at the edge.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: nothing to return yet (for example, no completed run)
// - ErrConflict: another deduplication run currently holds the run lock
// - ErrUnavailable: a backing service (database, redis, broker) is unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
