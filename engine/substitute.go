package engine

import (
	"unicode/utf8"

	"tabcomplete/logger"
	"tabcomplete/metrics"
	"tabcomplete/text"
	"tabcomplete/types"
)

// substitution describes one candidate insertion relative to the primary
// cursor. Other cursors get the same edit shifted by their distance to it.
type substitution struct {
	RegionBegin  int
	RegionEnd    int
	Text         string
	NewCursorPos int
	// Prefix is the text after the cursor the candidate consumes
	Prefix string
	// OldPrefix is the suffix consumed by the previously inserted candidate,
	// restored before the new one is applied
	OldPrefix      *string
	Documentation  *types.Documentation
	ExpectedPrefix string
}

// applySubstitution edits doc at every selection and leaves each cursor at
// NewCursorPos within its substitution. It returns how many cursors had an
// unexpected prefix and were substituted from the start of their word.
func applySubstitution(doc *text.Document, s substitution) int {
	if doc.NumSelections() == 0 {
		return 0
	}

	offset := -doc.Selection(0).Begin
	norm := func(x int, sel text.Region) int {
		return offset + x + sel.Begin
	}

	observed := make([]string, doc.NumSelections())
	for i, sel := range doc.Selections() {
		observed[i] = doc.Substr(norm(s.RegionBegin, sel), sel.Begin)
	}

	if s.OldPrefix != nil {
		for i := range doc.NumSelections() {
			end := norm(s.RegionEnd, doc.Selection(i))
			doc.Insert(end, *s.OldPrefix)
			doc.ReplaceSelection(i, text.Point(end))
		}
	}

	offset = -doc.Selection(0).Begin
	region := text.Region{Begin: s.RegionBegin, End: s.RegionEnd + utf8.RuneCountInString(s.Prefix)}

	fallbacks := 0
	for i := range doc.NumSelections() {
		sel := doc.Selection(i)
		t := text.Region{Begin: norm(region.Begin, sel), End: norm(region.End, sel)}
		if observed[i] != s.ExpectedPrefix {
			wordBegin := doc.Word(sel.Begin).Begin
			logger.Warn("expected prefix %q but found %q, substituting from word start: %q",
				s.ExpectedPrefix, observed[i], doc.Substr(wordBegin, sel.Begin))
			t.Begin = wordBegin
			fallbacks++
		}
		doc.Erase(t)
		doc.Insert(t.Begin, s.Text)
		doc.ReplaceSelection(i, text.Point(t.Begin+s.NewCursorPos))
	}
	return fallbacks
}

// substitute applies s to the editor buffer and then shows the candidate's
// documentation, or hides the list when it has none
func (e *Engine) substitute(s substitution) {
	defer logger.Trace("engine.substitute")()

	doc := e.buffer.Document()
	if doc == nil {
		return
	}
	if n := applySubstitution(doc, s); n > 0 {
		metrics.SubstitutionFallbacks.Add(float64(n))
	}
	if err := e.buffer.Commit(); err != nil {
		logger.Error("commit substitution: %v", err)
		return
	}

	if s.Documentation == nil {
		e.hidePopup()
		return
	}
	e.showPopup(&e.guard, documentationPopup(s.Documentation), s.RegionBegin)
}
