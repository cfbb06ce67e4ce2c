package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Hunk replaces the old lines [Start, End) with Lines
type Hunk struct {
	Start int
	End   int
	Lines []string
}

// LineHunks returns the line-level edits turning oldLines into newLines,
// ordered by Start. Applying them from last to first keeps earlier line
// numbers valid.
func LineHunks(oldLines, newLines []string) []Hunk {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(joinTerminated(oldLines), joinTerminated(newLines))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lineArray)

	var hunks []Hunk
	var cur *Hunk
	line := 0
	flush := func() {
		if cur != nil {
			if cur.Lines == nil {
				cur.Lines = []string{}
			}
			hunks = append(hunks, *cur)
			cur = nil
		}
	}

	for _, diff := range diffs {
		lines := splitTerminated(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			line += len(lines)
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &Hunk{Start: line, End: line}
			}
			cur.End += len(lines)
			line += len(lines)
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &Hunk{Start: line, End: line}
			}
			cur.Lines = append(cur.Lines, lines...)
		}
	}
	flush()
	return hunks
}

// ApplyHunks applies hunks produced by LineHunks to lines
func ApplyHunks(lines []string, hunks []Hunk) []string {
	out := append([]string{}, lines...)
	for i := len(hunks) - 1; i >= 0; i-- {
		h := hunks[i]
		out = append(out[:h.Start], append(append([]string{}, h.Lines...), out[h.End:]...)...)
	}
	return out
}

func joinTerminated(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func splitTerminated(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
