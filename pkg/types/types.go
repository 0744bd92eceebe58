// Package types defines the domain model shared by the card-recovery packages.
package types

import (
	"time"
)

// SearchMode selects how workers treat the candidate space once a match is known.
type SearchMode string

const (
	// ModeExhaustive evaluates every candidate in range before returning.
	ModeExhaustive SearchMode = "exhaustive"
	// ModeEarlyExit lets workers stop once no lower match can exist in their sub-range.
	ModeEarlyExit SearchMode = "early-exit"
)

// Outcome is the terminal state of one search invocation.
type Outcome string

const (
	OutcomeFound     Outcome = "found"     // a candidate's digest matched the target
	OutcomeNotFound  Outcome = "not_found" // the whole range was evaluated, no match
	OutcomeCancelled Outcome = "cancelled" // the caller cancelled before completion
)

// Range is a half-open interval [Start, End) of infix indices.
type Range struct {
	Start int64 `json:"start" yaml:"start"`
	End   int64 `json:"end" yaml:"end"`
}

// Len returns the number of indices in the range, or 0 if it is empty or inverted.
func (r Range) Len() int64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// IsZero reports whether the range was left unset.
func (r Range) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Contains reports whether index falls inside the range.
func (r Range) Contains(index int64) bool {
	return index >= r.Start && index < r.End
}

// SearchSpec describes one search. It is built once per invocation and passed by value.
type SearchSpec struct {
	TargetDigest string     `json:"target_digest"` // hex encoded, any case
	Prefix       string     `json:"prefix"`        // BIN digits
	Suffix       string     `json:"suffix"`        // known trailing digits
	InfixWidth   int        `json:"infix_width"`   // zero padded width of the unknown middle
	Range        Range      `json:"range"`         // zero value means [0, 10^InfixWidth)
	WorkerCount  int        `json:"worker_count"`  // <= 0 means hardware parallelism
	Algorithm    string     `json:"algorithm"`     // empty means sha1
	CardLength   int        `json:"card_length"`   // 0 disables the total length check
	Mode         SearchMode `json:"mode"`          // empty means exhaustive
}

// Candidate is one full card number in the search space.
type Candidate struct {
	Index  int64  `json:"index"`
	Number string `json:"number"`
}

// SearchResult is produced exactly once per search invocation.
type SearchResult struct {
	SearchID    string        `json:"search_id"`
	Outcome     Outcome       `json:"outcome"`
	Number      string        `json:"number,omitempty"`
	Index       int64         `json:"index"`
	Processed   int64         `json:"processed"`
	Total       int64         `json:"total"`
	WorkerCount int           `json:"worker_count"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Found reports whether the search located a matching candidate.
func (r SearchResult) Found() bool {
	return r.Outcome == OutcomeFound
}

// ProgressEvent is an advisory progress notification.
type ProgressEvent struct {
	Processed int64 `json:"processed"`
	Total     int64 `json:"total"`
}
