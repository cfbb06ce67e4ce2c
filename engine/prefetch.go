package engine

import (
	"tabcomplete/logger"
)

// prefetchCurrent asks the engine to index the current file. Concurrent
// prefetches of the same path share one request. The engine client applies
// the configured request timeout; a session that stops only abandons the
// request.
func (e *Engine) prefetchCurrent() {
	path := e.buffer.Path()
	if path == "" {
		return
	}
	ctx := e.mainCtx

	go func() {
		_, err, shared := e.prefetches.Do(path, func() (any, error) {
			return nil, e.client.Prefetch(ctx, path)
		})
		if err != nil {
			logger.Debug("prefetch %s: %v", path, err)
			return
		}
		if shared {
			logger.Debug("prefetch %s shared with another session", path)
		}
	}()
}
