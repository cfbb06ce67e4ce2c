// Package engine holds the per-editor completion session: it watches editor
// events, decides when to ask the completion engine for candidates, renders
// them, and applies the chosen one at every cursor.
package engine

import (
	"context"
	"sync"

	"tabcomplete/logger"
	"tabcomplete/metrics"

	"golang.org/x/sync/singleflight"
)

// Options carries optional collaborators
type Options struct {
	Syntax  SyntaxResolver
	Tracker *metrics.Tracker
	// Prefetches is shared between sessions so a file opened in several
	// editors is only prefetched once at a time
	Prefetches *singleflight.Group
}

type Engine struct {
	client  Client
	buffer  Buffer
	syntax  SyntaxResolver
	tracker *metrics.Tracker
	config  Config

	mu        sync.Mutex
	state     state
	eventChan chan Event
	guard     eventGuard

	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once

	session
	requestSeq uint64
	followUp   bool
	shown      *metrics.CompletionMetrics

	prefetches *singleflight.Group
}

func NewEngine(client Client, buffer Buffer, config Config, opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		client:     client,
		buffer:     buffer,
		syntax:     opts.Syntax,
		tracker:    opts.Tracker,
		config:     config,
		state:      stateIdle,
		eventChan:  make(chan Event, 100),
		mainCtx:    ctx,
		mainCancel: cancel,
		session:    newSession(),
		prefetches: opts.Prefetches,
	}
	if e.tracker == nil {
		e.tracker = metrics.NewTracker()
	}
	if e.prefetches == nil {
		e.prefetches = &singleflight.Group{}
	}
	return e
}

// Start runs the event loop until ctx is done or Stop is called
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	context.AfterFunc(ctx, e.Stop)
	go e.eventLoop(e.mainCtx)
	logger.Info("engine started")
}

// Stop gracefully shuts down the engine
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		logger.Info("stopping engine...")
		e.stopped = true
		e.mainCancel()
		e.disposeShown()
		e.session = newSession()
		logger.Info("engine stopped")
	})
}

// HandleEvent queues an editor notification by name. Events arriving while
// the popup guard is held are dropped.
func (e *Engine) HandleEvent(name string) {
	eventType := EventTypeFromString(name)
	if eventType == "" {
		logger.Warn("unknown editor event %q", name)
		return
	}
	if e.guard.Held() {
		logger.Debug("ignoring %s while showing popup", name)
		return
	}
	e.post(Event{Type: eventType})
}

// HandleCommand queues a key command. num is the 1-based choice for accept.
func (e *Engine) HandleCommand(name string, num int) {
	switch eventType := EventTypeFromString(name); eventType {
	case EventAccept, EventLeader, EventReverseLeader:
		e.post(Event{Type: eventType, Data: num})
	default:
		logger.Warn("unknown command %q", name)
	}
}

// Reset applies new settings and clears the session
func (e *Engine) Reset(config Config) {
	e.post(Event{Type: EventSettingsChanged, Data: config})
}

func (e *Engine) post(event Event) {
	select {
	case e.eventChan <- event:
	case <-e.mainCtx.Done():
	}
}

// resetSession drops all completion state, hiding a popup we own
func (e *Engine) resetSession() {
	if e.popupIsOurs {
		e.hidePopup()
	}
	e.disposeShown()
	e.session = newSession()
	e.followUp = false
}

// clearChoices drops the candidate list and the cycling index with it
func (e *Engine) clearChoices() {
	e.disposeShown()
	e.choices = nil
	e.tabIndex = noChoice
}

func (e *Engine) disposeShown() {
	if e.shown != nil {
		e.tracker.TrackDisposed(e.shown)
		e.shown = nil
	}
}
