// ============================================================================
// Card Recovery - Hash Matcher
// ============================================================================
//
// Package: internal/hashmatch
// File: matcher.go
// Purpose: Decides whether a candidate's digest equals the target digest
//
// Comparison:
//   The target hex string is decoded once at construction. hex decoding is
//   case-insensitive, so "BF67..." and "bf67..." select the same target and
//   comparison happens on raw bytes instead of re-encoding every candidate.
//
// Concurrency:
//   A Matcher is immutable and safe to share. hash.Hash states are not, so
//   each worker takes its own State via NewState() and reuses it for every
//   candidate of its sub-range.
//
// ============================================================================

package hashmatch

import (
	"bytes"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// Matcher compares candidate digests against one target.
type Matcher struct {
	alg    Algorithm
	target []byte
}

// NewMatcher builds a matcher for algorithm and the hex encoded targetDigest.
// Surrounding whitespace in the digest is ignored.
func NewMatcher(algorithm, targetDigest string) (*Matcher, error) {
	alg, err := Lookup(algorithm)
	if err != nil {
		return nil, err
	}

	digest := strings.TrimSpace(targetDigest)
	target, err := hex.DecodeString(digest)
	if err != nil {
		return nil, types.InvalidSpecf("target digest is not valid hex: %v", err)
	}
	if len(target) != alg.Size {
		return nil, types.InvalidSpecf("target digest has %d hex chars, %s needs %d",
			len(digest), alg.Name, alg.Size*2)
	}

	return &Matcher{alg: alg, target: target}, nil
}

// Algorithm returns the digest algorithm in use.
func (m *Matcher) Algorithm() Algorithm {
	return m.alg
}

// Target returns the lowercase hex form of the target digest.
func (m *Matcher) Target() string {
	return hex.EncodeToString(m.target)
}

// Matches reports whether candidate hashes to the target.
func (m *Matcher) Matches(candidate string) bool {
	return m.NewState().Matches([]byte(candidate))
}

// NewState returns a single-goroutine evaluator that reuses its hash state.
func (m *Matcher) NewState() *State {
	return &State{
		h:      m.alg.New(),
		target: m.target,
		sum:    make([]byte, 0, m.alg.Size),
	}
}

// State evaluates candidates for one worker. Not safe for concurrent use.
type State struct {
	h      hash.Hash
	target []byte
	sum    []byte
}

// Matches reports whether the digest of candidate equals the target.
func (s *State) Matches(candidate []byte) bool {
	s.h.Reset()
	s.h.Write(candidate)
	s.sum = s.h.Sum(s.sum[:0])
	return bytes.Equal(s.sum, s.target)
}

// Matches is the one-shot form: does candidate hash to targetDigest under algorithm?
func Matches(algorithm, candidate, targetDigest string) (bool, error) {
	m, err := NewMatcher(algorithm, targetDigest)
	if err != nil {
		return false, err
	}
	return m.Matches(candidate), nil
}

// Digest returns the lowercase hex digest of text under algorithm.
func Digest(algorithm, text string) (string, error) {
	alg, err := Lookup(algorithm)
	if err != nil {
		return "", err
	}
	h := alg.New()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)), nil
}
