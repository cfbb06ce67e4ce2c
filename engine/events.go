package engine

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"

	"tabcomplete/logger"
)

// EventType represents the type of event in the engine
type EventType string

const (
	// Editor notifications
	EventModified          EventType = "modified"
	EventSelectionModified EventType = "selection_modified"
	EventActivated         EventType = "activated"

	// Key commands
	EventAccept        EventType = "accept"
	EventLeader        EventType = "leader"
	EventReverseLeader EventType = "reverse_leader"

	EventSettingsChanged EventType = "settings_changed"

	// Background results
	EventCompletionReady EventType = "completion_ready"
	EventCompletionError EventType = "completion_error"
)

// Event represents an event in the engine
type Event struct {
	Type EventType
	Data any
}

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = buildEventTypeMap()
	handlerMap = make(map[EventType]*eventHandler)
	for i := range eventHandlers {
		h := &eventHandlers[i]
		handlerMap[h.Event] = h
	}
}

func buildEventTypeMap() map[string]EventType {
	eventMap := make(map[string]EventType)

	allEventTypes := []EventType{
		EventModified,
		EventSelectionModified,
		EventActivated,
		EventAccept,
		EventLeader,
		EventReverseLeader,
		EventSettingsChanged,
		EventCompletionReady,
		EventCompletionError,
	}

	for _, eventType := range allEventTypes {
		eventMap[string(eventType)] = eventType
	}

	return eventMap
}

// EventTypeFromString converts a string to EventType
func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}

type eventHandler struct {
	Event  EventType
	Action func(*Engine, Event)
}

// eventHandlers routes user-facing events. The same handler runs whether or
// not a request is in flight; requestCompletion decides whether to send now
// or queue a follow-up.
//
//	                 eligible change
//	  +-------+  ---------------------->  +----------+
//	  | Idle  |                           | Pending  |
//	  +-------+  <----------------------  +----------+
//	             CompletionReady / Error
//
//	Pending + eligible change: one follow-up request is queued and the
//	in-flight response is dropped when it arrives.
var eventHandlers = []eventHandler{
	{EventModified, (*Engine).doModified},
	{EventSelectionModified, (*Engine).doSelectionModified},
	{EventActivated, (*Engine).doActivated},
	{EventAccept, (*Engine).doAccept},
	{EventLeader, (*Engine).doLeader},
	{EventReverseLeader, (*Engine).doReverseLeader},
	{EventSettingsChanged, (*Engine).doSettingsChanged},
}

var handlerMap map[EventType]*eventHandler

// dispatch finds and executes the handler for a user-facing event
func (e *Engine) dispatch(event Event) bool {
	h := handlerMap[event.Type]
	if h == nil {
		return false
	}
	h.Action(e, event)
	return true
}

// eventLoopRestarts tracks the number of event loop restarts for panic recovery
var eventLoopRestarts atomic.Int32

const maxEventLoopRestarts = 3

func (e *Engine) eventLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			restarts := eventLoopRestarts.Add(1)
			logger.Error("event loop panic [%d/%d]: %v\n%s",
				restarts, maxEventLoopRestarts, r, debug.Stack())

			if int(restarts) < maxEventLoopRestarts {
				e.eventLoop(ctx)
			} else {
				logger.Error("max event loop restarts reached, stopping engine")
				go e.Stop()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-e.eventChan:
			if !ok {
				return
			}

			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event handler panic recovered for event %v: %v", event.Type, r)
					}
				}()
				e.handleEvent(event)
			}()
		}
	}
}

func (e *Engine) handleEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}

	logger.Debug("handle event: %v (state=%s)", event.Type, e.state)

	if e.handleBackgroundEvent(event) {
		return
	}
	if !e.dispatch(event) {
		logger.Warn("unhandled event: %v", event.Type)
	}
}

// handleBackgroundEvent handles results posted by request goroutines
func (e *Engine) handleBackgroundEvent(event Event) bool {
	switch event.Type {
	case EventCompletionReady:
		result := event.Data.(*completionResult)
		if e.state != statePendingCompletion || result.seq != e.requestSeq {
			logger.Debug("dropping response for request %d", result.seq)
			return true
		}
		e.handleCompletionReady(result.response)
		return true

	case EventCompletionError:
		err, _ := event.Data.(error)
		if !errors.Is(err, context.Canceled) {
			logger.Debug("completion error: %v", err)
		}
		e.handleCompletionError()
		return true
	}
	return false
}

// Action functions

func (e *Engine) doModified(event Event) {
	e.seenChanges = true
	e.onAnyEvent()
}

func (e *Engine) doSelectionModified(event Event) {
	e.onAnyEvent()
}

func (e *Engine) doActivated(event Event) {
	e.onAnyEvent()
	e.prefetchCurrent()
}

func (e *Engine) doAccept(event Event) {
	num, _ := event.Data.(int)
	e.acceptChoice(num)
}

func (e *Engine) doLeader(event Event) {
	e.cycle(true)
}

func (e *Engine) doReverseLeader(event Event) {
	e.cycle(false)
}

func (e *Engine) doSettingsChanged(event Event) {
	if cfg, ok := event.Data.(Config); ok {
		e.config = cfg
	}
	e.resetSession()
}
