// Package dedup decides whether a freshly captured frame is different enough
// from the last accepted one to be worth keeping.
//
// A Deduplicator holds a single fingerprint slot: only consecutive duplicates
// are suppressed. Both the periodic and hotkey capture paths share one
// Deduplicator, and its mutex serializes the compare, update and persist steps
// of every Consider call.
package dedup
