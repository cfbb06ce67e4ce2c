package engine

import "tabcomplete/text"

// agreementBound caps how many offsets are compared in each direction
const agreementBound = 30

// allSamePrefix reports whether every cursor has the same identifier
// characters immediately before it
func allSamePrefix(doc *text.Document, positions []int) bool {
	return allSame(doc, positions, -1, -1)
}

// allSameSuffix reports whether every cursor has the same identifier
// characters starting at it
func allSameSuffix(doc *text.Document, positions []int) bool {
	return allSame(doc, positions, 0, 1)
}

// allSame walks outward from start in steps of step and compares the
// alphanumeric character at that offset from every position. It succeeds
// when all positions reach a non-alphanumeric boundary together, or after
// agreementBound offsets.
func allSame(doc *text.Document, positions []int, start, step int) bool {
	if len(positions) <= 1 {
		return true
	}
	offset := start
	for checked := 1; ; checked++ {
		first, ok := alnumAt(doc, positions[0]+offset)
		for _, pos := range positions[1:] {
			r, ok2 := alnumAt(doc, pos+offset)
			if ok2 != ok || r != first {
				return false
			}
		}
		if !ok {
			return true
		}
		if checked >= agreementBound {
			return true
		}
		offset += step
	}
}

func alnumAt(doc *text.Document, i int) (rune, bool) {
	r, ok := doc.RuneAt(i)
	if !ok || !text.IsAlnum(r) {
		return 0, false
	}
	return r, true
}
