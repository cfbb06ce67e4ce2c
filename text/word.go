package text

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// wordSeparators split identifiers even where Unicode word segmentation
// would join them (e.g. "a.b" is a single UAX #29 word).
const wordSeparators = "./\\()\"'-:,;<>~!@#$%^&*|+=[]{}`?"

func isSeparator(r rune) bool {
	return strings.ContainsRune(wordSeparators, r)
}

func isWordSegment(s string) bool {
	for _, r := range s {
		if IsAlnum(r) || r == '_' {
			return true
		}
	}
	return false
}

// Word returns the word touching pos, preferring the one that ends at pos.
// When no word touches pos the empty region at pos is returned.
func (d *Document) Word(pos int) Region {
	pos = d.clamp(pos)

	lineStart := pos
	for lineStart > 0 && d.runes[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := pos
	for lineEnd < len(d.runes) && d.runes[lineEnd] != '\n' {
		lineEnd++
	}

	rest := string(d.runes[lineStart:lineEnd])
	offset := lineStart
	state := -1
	for len(rest) > 0 {
		var segment string
		segment, rest, state = uniseg.FirstWordInString(rest, state)
		begin := offset
		end := begin + utf8.RuneCountInString(segment)
		offset = end

		if begin > pos {
			break
		}
		if end < pos || !isWordSegment(segment) {
			continue
		}

		b := pos
		for b > begin && !isSeparator(d.runes[b-1]) {
			b--
		}
		e := pos
		for e < end && !isSeparator(d.runes[e]) {
			e++
		}
		if b < e {
			return Region{Begin: b, End: e}
		}
	}
	return Point(pos)
}
