package engine

import (
	"strconv"
	"strings"

	"tabcomplete/types"

	"github.com/mattn/go-runewidth"
)

// annotation is the key hint shown next to choice i
func annotation(i int) string {
	switch {
	case i <= 1:
		return "Tab" + strings.Repeat("+Tab", i)
	case i < MaxChoices:
		return "Tab+" + strconv.Itoa(i+1)
	default:
		return ""
	}
}

// detailColumn is where details start, measured from the annotation
const detailColumn = 9

// renderChoices builds the candidate list popup. Prefixes are padded to a
// common display width so annotations line up.
func renderChoices(choices []types.Candidate, userMessage []string, showDetail bool) *types.Popup {
	width := 0
	for _, c := range choices {
		width = max(width, runewidth.StringWidth(c.NewPrefix))
	}

	lines := make([]string, 0, len(choices)+len(userMessage))
	for i, c := range choices {
		ann := annotation(i)
		line := runewidth.FillRight(c.NewPrefix, width) + "  " + ann
		if showDetail && c.Detail != nil {
			pad := max(0, detailColumn-len(ann))
			line += strings.Repeat(" ", pad) + strings.ReplaceAll(*c.Detail, "\n", " ")
		}
		lines = append(lines, line)
	}
	lines = append(lines, userMessage...)

	return &types.Popup{Lines: lines, Links: findLinks(lines)}
}

// linkPatterns are tried in order; the first one found on a line wins
var linkPatterns = []struct {
	text string
	url  string
}{
	{"https://tabnine.com/semantic", "https://tabnine.com/semantic"},
	{"tabnine.com/semantic", "https://tabnine.com/semantic"},
	{"tabnine.com", "https://tabnine.com"},
}

func findLinks(lines []string) []types.Link {
	var links []types.Link
	for row, line := range lines {
		for _, p := range linkPatterns {
			if col := strings.Index(line, p.text); col >= 0 {
				links = append(links, types.Link{Line: row, Col: col, Text: p.text, URL: p.url})
				break
			}
		}
	}
	return links
}

// documentationPopup renders a candidate's documentation
func documentationPopup(doc *types.Documentation) *types.Popup {
	lines := strings.Split(doc.Value, "\n")
	return &types.Popup{
		Lines:    lines,
		Markdown: doc.IsMarkdown(),
		Links:    findLinks(lines),
	}
}
