package text

import "unicode/utf8"

// OffsetOf converts a 1-indexed row and 0-indexed byte column into a rune
// offset into lines joined by "\n". Out of range positions are clamped.
func OffsetOf(lines []string, row, col int) int {
	if len(lines) == 0 {
		return 0
	}
	row = max(1, min(row, len(lines)))
	offset := 0
	for i := 0; i < row-1; i++ {
		offset += utf8.RuneCountInString(lines[i]) + 1
	}
	line := lines[row-1]
	col = max(0, min(col, len(line)))
	return offset + utf8.RuneCountInString(line[:col])
}

// PositionOf converts a rune offset into a 1-indexed row and 0-indexed byte
// column.
func PositionOf(lines []string, offset int) (row, col int) {
	if len(lines) == 0 {
		return 1, 0
	}
	offset = max(0, offset)
	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		if offset <= n || i == len(lines)-1 {
			return i + 1, byteIndex(line, offset)
		}
		offset -= n + 1
	}
	return len(lines), len(lines[len(lines)-1])
}

// byteIndex returns the byte index of the n-th rune of s, or len(s)
func byteIndex(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
