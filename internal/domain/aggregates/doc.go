// Package aggregates declares the write boundaries of the review pipeline: the review draft (content,
// provenance, edits, status) and the sentiment alert (dedup, acknowledgement). Implementations live
// in internal/data/aggregates.
package aggregates
