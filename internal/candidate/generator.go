// ============================================================================
// Card Recovery - Candidate Generator
// ============================================================================
//
// Package: internal/candidate
// File: generator.go
// Purpose: Enumerates full card numbers prefix + zero-padded infix + suffix
//
// Candidate layout:
//   ┌──────────┬──────────────────┬──────────┐
//   │  prefix  │ infix (width W)  │  suffix  │
//   │  220220  │ 000042           │  5688    │
//   └──────────┴──────────────────┴──────────┘
//
// Sequence properties:
//   - Lazy: numbers are rendered on demand, nothing is materialized
//   - Finite and restartable: every call to All() starts from the range start
//   - Strictly ascending by index
//
// Hot path:
//   Workers call AppendNumber with a reused buffer so evaluating a candidate
//   allocates nothing. At() and All() are the convenient string forms.
//
// ============================================================================

package candidate

import (
	"iter"
	"strconv"

	"github.com/ChuLiYu/card-recovery/pkg/types"
)

// MaxInfixWidth is the widest infix whose range still fits in int64.
const MaxInfixWidth = 18

// Generator produces the candidates of one search space.
type Generator struct {
	prefix string
	suffix string
	width  int
	rng    types.Range
}

// NewGenerator validates the layout and returns a generator over rng.
// A zero rng selects the full space [0, 10^width).
//
// Returns an error wrapping types.ErrInvalidSpec when:
//   - width <= 0 or width > MaxInfixWidth
//   - rng is empty
//   - rng reaches outside [0, 10^width)
func NewGenerator(prefix, suffix string, width int, rng types.Range) (*Generator, error) {
	if width <= 0 {
		return nil, types.InvalidSpecf("infix width must be positive, got %d", width)
	}
	if width > MaxInfixWidth {
		return nil, types.InvalidSpecf("infix width %d exceeds maximum %d", width, MaxInfixWidth)
	}

	space := Space(width)
	if rng.IsZero() {
		rng = space
	}
	if rng.Len() == 0 {
		return nil, types.InvalidSpecf("infix range [%d, %d) is empty", rng.Start, rng.End)
	}
	if rng.Start < space.Start || rng.End > space.End {
		return nil, types.InvalidSpecf("infix range [%d, %d) outside [0, %d)", rng.Start, rng.End, space.End)
	}

	return &Generator{
		prefix: prefix,
		suffix: suffix,
		width:  width,
		rng:    rng,
	}, nil
}

// Space returns the full index space [0, 10^width) for a valid width.
func Space(width int) types.Range {
	end := int64(1)
	for i := 0; i < width; i++ {
		end *= 10
	}
	return types.Range{Start: 0, End: end}
}

// Len returns the exact number of candidates.
func (g *Generator) Len() int64 {
	return g.rng.Len()
}

// Range returns the index range this generator covers.
func (g *Generator) Range() types.Range {
	return g.rng
}

// NumberLen returns the length of every generated card number.
func (g *Generator) NumberLen() int {
	return len(g.prefix) + g.width + len(g.suffix)
}

// AppendNumber appends the card number for index to dst and returns the extended slice.
func (g *Generator) AppendNumber(dst []byte, index int64) []byte {
	dst = append(dst, g.prefix...)
	dst = appendPadded(dst, index, g.width)
	return append(dst, g.suffix...)
}

// At returns the candidate for index. The index is not range checked.
func (g *Generator) At(index int64) types.Candidate {
	buf := make([]byte, 0, g.NumberLen())
	return types.Candidate{
		Index:  index,
		Number: string(g.AppendNumber(buf, index)),
	}
}

// All yields every candidate in ascending index order.
func (g *Generator) All() iter.Seq[types.Candidate] {
	return g.Slice(g.rng)
}

// Slice yields the candidates of sub, clipped to the generator's range.
func (g *Generator) Slice(sub types.Range) iter.Seq[types.Candidate] {
	start := max(sub.Start, g.rng.Start)
	end := min(sub.End, g.rng.End)
	return func(yield func(types.Candidate) bool) {
		for i := start; i < end; i++ {
			if !yield(g.At(i)) {
				return
			}
		}
	}
}

// appendPadded writes n in decimal, left padded with zeros to width digits.
func appendPadded(dst []byte, n int64, width int) []byte {
	var digits [20]byte
	raw := strconv.AppendInt(digits[:0], n, 10)
	for i := len(raw); i < width; i++ {
		dst = append(dst, '0')
	}
	return append(dst, raw...)
}
