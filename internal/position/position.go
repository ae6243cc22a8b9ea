// Package position provides site to line/column translation for the
// lattice engine. The core addresses text by code-point sites only;
// renderers that need human-readable positions build a LineIndex over the
// document text and translate on demand.
package position

import "fmt"

// Position is a human-readable location in source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number, in code points
	Site   int // 0-based code-point offset
}

// IsValid returns true if the position is valid.
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0 && p.Site >= 0
}

// String returns a string representation of the position.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before returns true if this position comes before other.
func (p Position) Before(other Position) bool {
	return p.Site < other.Site
}

// LineIndex maps sites to line/column pairs over one snapshot of text.
// The index does not track edits; rebuild it after a write.
type LineIndex struct {
	starts []int // site of each line start
	length int
}

// NewLineIndex builds an index over text.
func NewLineIndex(text string) *LineIndex {
	index := &LineIndex{starts: []int{0}}
	site := 0
	for _, r := range text {
		site++
		if r == '\n' {
			index.starts = append(index.starts, site)
		}
	}
	index.length = site
	return index
}

// LineCount returns the number of lines, at least 1.
func (x *LineIndex) LineCount() int {
	return len(x.starts)
}

// Length returns the indexed text length in sites.
func (x *LineIndex) Length() int {
	return x.length
}

// Locate translates a site into a position. Sites past the end clamp to
// the final position.
func (x *LineIndex) Locate(site int) Position {
	if site < 0 {
		site = 0
	}
	if site > x.length {
		site = x.length
	}

	lo, hi := 0, len(x.starts)
	for lo < hi {
		mid := (lo + hi) / 2
		if x.starts[mid] <= site {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	line := lo - 1
	return Position{
		Line:   line + 1,
		Column: site - x.starts[line] + 1,
		Site:   site,
	}
}

// LineStart returns the site of a 1-based line's first character.
func (x *LineIndex) LineStart(line int) (int, bool) {
	if line < 1 || line > len(x.starts) {
		return 0, false
	}
	return x.starts[line-1], true
}
