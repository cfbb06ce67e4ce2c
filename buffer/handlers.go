package buffer

import (
	"fmt"

	"tabcomplete/logger"

	"github.com/neovim/go-client/nvim"
)

// RPC method names the plugin calls
const (
	MethodEvent    = "tabcomplete_event"
	MethodCommand  = "tabcomplete_command"
	MethodQuery    = "tabcomplete_query"
	MethodSettings = "tabcomplete_settings"
)

// Session receives editor notifications
type Session interface {
	HandleEvent(name string)
	HandleCommand(name string, num int)
	Query(key string, operand int) bool
}

// RegisterHandlers routes editor events, key commands and context queries
// to s. Settings updates go to onSettings with the raw JSON payload.
func (b *NvimBuffer) RegisterHandlers(s Session, onSettings func(raw string)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	if err := b.client.RegisterHandler(MethodEvent, func(_ *nvim.Nvim, event string) {
		s.HandleEvent(event)
	}); err != nil {
		return err
	}

	if err := b.client.RegisterHandler(MethodCommand, func(_ *nvim.Nvim, command string, num int) {
		s.HandleCommand(command, num)
	}); err != nil {
		return err
	}

	if err := b.client.RegisterHandler(MethodQuery, func(_ *nvim.Nvim, key string, operand int) (bool, error) {
		return s.Query(key, operand), nil
	}); err != nil {
		return err
	}

	return b.client.RegisterHandler(MethodSettings, func(_ *nvim.Nvim, raw string) {
		logger.Debug("settings update from editor")
		if onSettings != nil {
			onSettings(raw)
		}
	})
}
