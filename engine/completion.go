package engine

import (
	"time"
	"unicode/utf8"

	"tabcomplete/logger"
	"tabcomplete/metrics"
	"tabcomplete/text"
	"tabcomplete/types"

	"github.com/google/uuid"
)

// MaxChoices is the most candidates kept from a response
const MaxChoices = 9

// requestCompletion sends an Autocomplete request for the current windows on
// a background goroutine. With a request already in flight, one follow-up is
// queued instead.
func (e *Engine) requestCompletion() {
	if e.stopped {
		return
	}
	if e.state == statePendingCompletion {
		e.followUp = true
		return
	}

	req := e.buildRequest()
	e.state = statePendingCompletion
	e.requestSeq++
	seq := e.requestSeq
	ctx := e.mainCtx

	go func() {
		resp, err := e.client.Autocomplete(ctx, req)

		event := Event{Type: EventCompletionReady, Data: &completionResult{seq: seq, response: resp}}
		if err != nil {
			event = Event{Type: EventCompletionError, Data: err}
		}
		select {
		case e.eventChan <- event:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) buildRequest() *types.AutocompleteRequest {
	return &types.AutocompleteRequest{
		Before:                  e.before,
		After:                   e.after,
		Filename:                e.filename(),
		RegionIncludesBeginning: e.regionIncludesBeginning,
		RegionIncludesEnd:       e.regionIncludesEnd,
		MaxNumResults:           e.config.MaxNumResults,
	}
}

// filename is the buffer path, or a dummy path derived from the filetype for
// unsaved buffers
func (e *Engine) filename() string {
	if path := e.buffer.Path(); path != "" {
		return path
	}
	if e.syntax == nil {
		return ""
	}
	dummy, err := e.syntax.DummyFile(e.buffer.Filetype())
	if err != nil {
		logger.Debug("no dummy file: %v", err)
		return ""
	}
	return dummy
}

// settleRequest returns to idle. It reports true when the caller should
// drop the response: either a newer request was started for a follow-up, or
// the session no longer wants completions.
func (e *Engine) settleRequest() bool {
	e.state = stateIdle
	followUp := e.followUp
	e.followUp = false

	if !e.autocompleting {
		logger.Debug("completion no longer wanted, dropping response")
		return true
	}
	if followUp {
		logger.Debug("response superseded, requesting again")
		e.requestCompletion()
		return true
	}
	return false
}

func (e *Engine) handleCompletionError() {
	e.settleRequest()
}

func (e *Engine) handleCompletionReady(resp *types.AutocompleteResponse) {
	if e.settleRequest() || resp == nil {
		return
	}
	e.applyResponse(resp)
}

// applyResponse stores the candidates and shows them
func (e *Engine) applyResponse(resp *types.AutocompleteResponse) {
	e.disposeShown()
	e.tabIndex = noChoice
	e.oldPrefix = nil
	e.expectedPrefix = resp.OldPrefix

	limit := MaxChoices
	if e.config.MaxNumResults != nil {
		limit = max(0, min(limit, *e.config.MaxNumResults))
	}
	choices := resp.Results
	if len(choices) > limit {
		choices = choices[:limit]
	}
	e.choices = choices

	begin := max(0, e.beforeBeginLocation-utf8.RuneCountInString(e.expectedPrefix))
	e.substituteInterval = text.Region{Begin: begin, End: e.beforeBeginLocation}

	if len(e.choices) == 0 {
		if e.popupIsOurs {
			e.hidePopup()
		}
		return
	}

	e.showPopup(&e.guard, renderChoices(e.choices, resp.UserMessage, e.config.Detail), begin)
	e.popupIsOurs = true
	e.seenChanges = false

	e.shown = &metrics.CompletionMetrics{
		ID:      uuid.NewString(),
		Choices: len(e.choices),
		ShownAt: time.Now(),
	}
	e.tracker.TrackShown(e.shown)
}
