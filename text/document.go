// Package text models an editor buffer as a sequence of runes with a set of
// selections, and converts between rune offsets and line/byte positions.
package text

import (
	"slices"
	"strings"
	"unicode"
)

// Region is a half-open span of rune offsets. An empty region is a cursor.
type Region struct {
	Begin int
	End   int
}

// Point returns an empty region at pos
func Point(pos int) Region {
	return Region{Begin: pos, End: pos}
}

func (r Region) Empty() bool { return r.Begin == r.End }

func (r Region) Len() int { return r.End - r.Begin }

// Document is a buffer snapshot plus its selections, kept sorted by Begin.
// The first selection is the primary one.
type Document struct {
	runes []rune
	sels  []Region
}

// NewDocument creates a document with the given selections. With no
// selections the cursor is placed at offset 0.
func NewDocument(content string, sels ...Region) *Document {
	d := &Document{runes: []rune(content)}
	if len(sels) == 0 {
		sels = []Region{Point(0)}
	}
	d.SetSelections(sels)
	return d
}

func (d *Document) String() string { return string(d.runes) }

// Size returns the document length in runes
func (d *Document) Size() int { return len(d.runes) }

// Substr returns the text between begin and end, clamped to the document
func (d *Document) Substr(begin, end int) string {
	begin = d.clamp(begin)
	end = d.clamp(end)
	if end <= begin {
		return ""
	}
	return string(d.runes[begin:end])
}

// RuneAt returns the rune at pos and whether pos is inside the document
func (d *Document) RuneAt(pos int) (rune, bool) {
	if pos < 0 || pos >= len(d.runes) {
		return 0, false
	}
	return d.runes[pos], true
}

// Selections returns a copy of the selections in document order
func (d *Document) Selections() []Region {
	return slices.Clone(d.sels)
}

// Selection returns the i-th selection
func (d *Document) Selection(i int) Region {
	return d.sels[i]
}

func (d *Document) NumSelections() int { return len(d.sels) }

// SetSelections replaces the selections, normalising and sorting them
func (d *Document) SetSelections(sels []Region) {
	out := make([]Region, 0, len(sels))
	for _, s := range sels {
		if s.Begin > s.End {
			s.Begin, s.End = s.End, s.Begin
		}
		s.Begin = d.clamp(s.Begin)
		s.End = d.clamp(s.End)
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b Region) int { return a.Begin - b.Begin })
	d.sels = out
}

// ReplaceSelection moves selection i to r, keeping the other selections
func (d *Document) ReplaceSelection(i int, r Region) {
	d.sels[i] = Region{Begin: d.clamp(r.Begin), End: d.clamp(r.End)}
}

// Insert inserts s at pos. Selection endpoints at or after pos shift right.
// It returns the number of runes inserted.
func (d *Document) Insert(pos int, s string) int {
	pos = d.clamp(pos)
	ins := []rune(s)
	if len(ins) == 0 {
		return 0
	}
	d.runes = slices.Insert(d.runes, pos, ins...)
	n := len(ins)
	for i := range d.sels {
		if d.sels[i].Begin >= pos {
			d.sels[i].Begin += n
		}
		if d.sels[i].End >= pos {
			d.sels[i].End += n
		}
	}
	return n
}

// Erase removes the runes in r. Selection endpoints inside r collapse to
// r.Begin, endpoints after it shift left.
func (d *Document) Erase(r Region) {
	begin := d.clamp(r.Begin)
	end := d.clamp(r.End)
	if end <= begin {
		return
	}
	d.runes = slices.Delete(d.runes, begin, end)
	n := end - begin
	shift := func(p int) int {
		switch {
		case p >= end:
			return p - n
		case p > begin:
			return begin
		default:
			return p
		}
	}
	for i := range d.sels {
		d.sels[i].Begin = shift(d.sels[i].Begin)
		d.sels[i].End = shift(d.sels[i].End)
	}
}

// Lines splits the document on newlines
func (d *Document) Lines() []string {
	return strings.Split(string(d.runes), "\n")
}

func (d *Document) clamp(pos int) int {
	return max(0, min(pos, len(d.runes)))
}

// IsAlnum reports whether r is a letter or a digit in any script
func IsAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
