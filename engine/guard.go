package engine

import (
	"sync/atomic"

	"tabcomplete/logger"
	"tabcomplete/types"
)

// eventGuard suppresses editor events triggered by our own popup display
type eventGuard struct {
	held atomic.Int32
}

func (g *eventGuard) Held() bool {
	return g.held.Load() > 0
}

// acquire holds the guard until the returned release func is called
func (g *eventGuard) acquire() (release func()) {
	g.held.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			g.held.Add(-1)
		}
	}
}

// showPopup displays popup at anchor while holding g
func (e *Engine) showPopup(g *eventGuard, popup *types.Popup, anchor int) {
	release := g.acquire()
	defer release()

	if err := e.buffer.ShowPopup(popup, anchor); err != nil {
		logger.Error("show popup: %v", err)
	}
}

func (e *Engine) hidePopup() {
	if err := e.buffer.HidePopup(); err != nil {
		logger.Error("hide popup: %v", err)
	}
}
