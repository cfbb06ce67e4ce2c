package engine

import "tabcomplete/logger"

// Query keys the editor asks before routing a key press to us
const (
	QueryChoiceAvailable        = "choice_available"
	QueryLeaderAvailable        = "leader_available"
	QueryReverseLeaderAvailable = "reverse_leader_available"
)

// Query answers a key-binding context check synchronously.
//
// choice_available is true when choice operand exists and the visible popup
// is not ours. leader_available and reverse_leader_available compare the
// availability of cycling against operand != 0.
func (e *Engine) Query(key string, operand int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}

	switch key {
	case QueryChoiceAvailable:
		return !e.popupIsOurs && operand >= 1 && operand <= len(e.choices)
	case QueryLeaderAvailable:
		available := len(e.choices) > 0 && e.buffer.PopupVisible()
		return available == (operand != 0)
	case QueryReverseLeaderAvailable:
		return (len(e.choices) > 0) == (operand != 0)
	default:
		logger.Debug("unknown query %q", key)
		return false
	}
}
