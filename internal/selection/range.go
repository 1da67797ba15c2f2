// Package selection turns textual row and column ranges into concrete,
// inclusive index spans over a table.
//
// A range is "full" (or empty), a single token meaning "from here to the
// end", or "<a>to<b>". Tokens are zero-based indices, "full", or names:
// header text for columns, first-cell labels for rows. A range whose start
// lies after its end is swapped.
package selection

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rangePattern = regexp.MustCompile(`^([\p{L}\p{N}_]+)to([\p{L}\p{N}_]+)$`)

// BoundKind says how a range endpoint is expressed
type BoundKind int

const (
	BoundFull BoundKind = iota
	BoundIndex
	BoundName
)

// Bound is one endpoint of a range
type Bound struct {
	Kind  BoundKind
	Index int
	Name  string
}

// Full is the open endpoint: the first element as a start, the last as an end
var Full = Bound{Kind: BoundFull}

// Index returns a zero-based positional endpoint
func Index(i int) Bound { return Bound{Kind: BoundIndex, Index: i} }

// Name returns an endpoint resolved by header or row label
func Name(s string) Bound { return Bound{Kind: BoundName, Name: s} }

func (b Bound) String() string {
	switch b.Kind {
	case BoundIndex:
		return strconv.Itoa(b.Index)
	case BoundName:
		return b.Name
	default:
		return "full"
	}
}

// RangeSpec is a parsed, unresolved range along one axis
type RangeSpec struct {
	Start Bound
	End   Bound

	// raw keeps the original token so that a name containing "to" can still
	// be resolved as a single token.
	raw   string
	split bool
}

// FullRange selects the whole axis
var FullRange = RangeSpec{Start: Full, End: Full}

// NewRange builds a spec from explicit endpoints
func NewRange(start, end Bound) RangeSpec {
	return RangeSpec{Start: start, End: end}
}

// ParseRangeSpec parses the range grammar. It never fails: unknown names are
// only detected when the spec is resolved against a table.
func ParseRangeSpec(raw string) RangeSpec {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "full") {
		return RangeSpec{Start: Full, End: Full, raw: raw}
	}

	if m := rangePattern.FindStringSubmatch(raw); m != nil {
		return RangeSpec{Start: parseBound(m[1]), End: parseBound(m[2]), raw: raw, split: true}
	}

	return RangeSpec{Start: parseBound(raw), End: Full, raw: raw}
}

func parseBound(tok string) Bound {
	if strings.EqualFold(tok, "full") {
		return Full
	}
	if isDigits(tok) {
		if n, err := strconv.Atoi(tok); err == nil {
			return Index(n)
		}
	}
	return Name(tok)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsFull reports whether the spec covers the whole axis
func (s RangeSpec) IsFull() bool {
	return s.Start.Kind == BoundFull && s.End.Kind == BoundFull
}

func (s RangeSpec) String() string {
	if s.raw != "" {
		return s.raw
	}
	if s.IsFull() {
		return "full"
	}
	return fmt.Sprintf("%sto%s", s.Start, s.End)
}
