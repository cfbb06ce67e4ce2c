package engine

import (
	"unicode/utf8"

	"tabcomplete/logger"
	"tabcomplete/text"
)

// acceptChoice inserts the num-th (1-based) choice and ends the list
func (e *Engine) acceptChoice(num int) {
	idx := num - 1
	if idx < 0 || idx >= len(e.choices) {
		logger.Debug("accept %d: only %d choices", num, len(e.choices))
		return
	}
	e.insertCompletion(idx)
	e.clearChoices()
}

// cycle inserts the next (or previous) choice, wrapping around. The list
// stays available so repeated presses walk through it.
func (e *Engine) cycle(forward bool) {
	n := len(e.choices)
	if n == 0 {
		return
	}
	idx := e.tabIndex
	switch {
	case forward && (idx == noChoice || idx >= n-1):
		idx = 0
	case forward:
		idx++
	case idx == noChoice || idx <= 0:
		idx = n - 1
	default:
		idx--
	}
	e.insertCompletion(idx)
}

// insertCompletion replaces the substitute interval with choice idx. The
// consumed suffix is remembered so the next cycled choice can restore it.
func (e *Engine) insertCompletion(idx int) {
	defer logger.Trace("engine.insertCompletion")()

	// the session only advances once the document is current
	if err := e.buffer.Sync(); err != nil {
		logger.Error("sync buffer: %v", err)
		return
	}

	e.tabIndex = idx
	choice := e.choices[idx]
	a, b := e.substituteInterval.Begin, e.substituteInterval.End

	sub := choice.Substitution()
	e.substituteInterval = text.Region{Begin: a, End: a + utf8.RuneCountInString(sub)}
	e.actionsSinceCompletion = 0

	if e.shown != nil {
		e.tracker.TrackAccepted(e.shown)
		e.shown = nil
	}
	if len(e.choices) == 1 {
		e.clearChoices()
	}

	s := substitution{
		RegionBegin:    a,
		RegionEnd:      b,
		Text:           sub,
		NewCursorPos:   utf8.RuneCountInString(choice.NewPrefix),
		Prefix:         choice.OldSuffix,
		OldPrefix:      e.oldPrefix,
		ExpectedPrefix: e.expectedPrefix,
	}
	if e.config.Documentation {
		s.Documentation = choice.Documentation
	}

	e.expectedPrefix = choice.NewPrefix
	if s.Documentation != nil {
		e.popupIsOurs = false
	}
	consumed := choice.OldSuffix
	e.oldPrefix = &consumed

	e.substitute(s)
}
