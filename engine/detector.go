package engine

import (
	"tabcomplete/logger"
	"tabcomplete/text"
)

const (
	// AutocompleteCharLimit bounds the before/after windows
	AutocompleteCharLimit = 100000
	// MaxCursors is the most cursors a shared completion is requested for
	MaxCursors = 100
	// windowCompare is how many characters of the windows are compared to
	// tell typing apart from cursor movement
	windowCompare = 100
)

// beforeWindow returns up to limit runes before the primary cursor, whether
// the window reaches the start of the document, and the cursor offset
func beforeWindow(doc *text.Document, limit int) (before string, includesBeginning bool, location int) {
	location = doc.Selection(0).Begin
	begin := max(0, location-limit)
	return doc.Substr(begin, location), begin == 0, location
}

// afterWindow returns up to limit runes after the primary cursor and whether
// the window reaches the end of the document
func afterWindow(doc *text.Document, limit int) (after string, includesEnd bool) {
	location := doc.Selection(0).End
	end := min(doc.Size(), location+limit)
	return doc.Substr(location, end), end == doc.Size()
}

// onAnyEvent refreshes the windows around the primary cursor and decides
// whether the change looks like continued typing worth a completion request.
func (e *Engine) onAnyEvent() {
	defer logger.Trace("engine.onAnyEvent")()

	if e.guard.Held() {
		return
	}
	if err := e.buffer.Sync(); err != nil {
		logger.Error("sync buffer: %v", err)
		return
	}
	doc := e.buffer.Document()
	if doc == nil || doc.NumSelections() == 0 {
		return
	}

	newBefore, includesBeginning, location := beforeWindow(doc, AutocompleteCharLimit)
	newAfter, includesEnd := afterWindow(doc, AutocompleteCharLimit)
	e.regionIncludesBeginning = includesBeginning
	e.beforeBeginLocation = location
	e.regionIncludesEnd = includesEnd

	if newBefore == e.before && newAfter == e.after {
		return
	}

	e.autocompleting = e.shouldAutocomplete(doc, e.before, e.after, newBefore, newAfter)
	e.before = newBefore
	e.after = newAfter
	e.actionsSinceCompletion++

	if e.autocompleting {
		e.requestCompletion()
		return
	}
	if e.popupIsOurs {
		e.hidePopup()
		e.popupIsOurs = false
	}
	if e.actionsSinceCompletion >= 2 {
		e.clearChoices()
	}
}

// shouldAutocomplete is true when the last change was a single character
// typed forward at every cursor and nothing is selected.
func (e *Engine) shouldAutocomplete(doc *text.Document, oldBefore, oldAfter, newBefore, newAfter string) bool {
	if e.actionsSinceCompletion < 1 {
		return false
	}
	sels := doc.Selections()
	if len(sels) > MaxCursors {
		return false
	}
	positions := make([]int, len(sels))
	for i, sel := range sels {
		if !sel.Empty() {
			return false
		}
		positions[i] = sel.Begin
	}
	if !allSamePrefix(doc, positions) || !allSameSuffix(doc, positions) {
		return false
	}
	if newBefore == "" {
		return false
	}

	oldAfterRunes := []rune(oldAfter)
	newAfterRunes := []rune(newAfter)
	afterMoved := slice(newAfterRunes, 0, windowCompare) != slice(oldAfterRunes, 1, windowCompare+1)
	if !afterMoved && len(newAfterRunes) != 0 && !(len(sels) >= 2 && e.seenChanges) {
		return false
	}

	oldBeforeRunes := []rune(oldBefore)
	newBeforeRunes := []rune(newBefore)
	return slice(oldBeforeRunes, -windowCompare, len(oldBeforeRunes)) ==
		slice(newBeforeRunes, -(windowCompare+1), -1)
}

// slice returns r[i:j] where negative indices count from the end and
// out-of-range bounds are clamped.
func slice(r []rune, i, j int) string {
	n := len(r)
	norm := func(x int) int {
		if x < 0 {
			x = max(0, x+n)
		}
		return min(x, n)
	}
	i, j = norm(i), norm(j)
	if i >= j {
		return ""
	}
	return string(r[i:j])
}
