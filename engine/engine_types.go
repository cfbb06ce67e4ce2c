package engine

import (
	"context"

	"tabcomplete/text"
	"tabcomplete/types"
)

// Buffer defines the editor operations the engine needs.
// Implemented by buffer.NvimBuffer for Neovim integration.
type Buffer interface {
	// Sync refreshes Document from the editor
	Sync() error
	// Document is the snapshot taken by the last Sync; edits made to it are
	// pushed back by Commit
	Document() *text.Document
	Commit() error
	Path() string // empty for unsaved buffers
	Filetype() string
	ShowPopup(popup *types.Popup, anchor int) error
	HidePopup() error
	PopupVisible() bool
}

// Client talks to the completion engine process.
// Implemented by process.Manager.
type Client interface {
	Autocomplete(ctx context.Context, req *types.AutocompleteRequest) (*types.AutocompleteResponse, error)
	Prefetch(ctx context.Context, filename string) error
}

// SyntaxResolver maps a filetype to a dummy filename for unsaved buffers.
// Implemented by syntax.Resolver.
type SyntaxResolver interface {
	DummyFile(filetype string) (string, error)
}

// Config holds the user settings the session consults
type Config struct {
	MaxNumResults *int
	Documentation bool
	Detail        bool
}

type state int

const (
	stateIdle state = iota
	statePendingCompletion
)

// String returns a human-readable name for the state
func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case statePendingCompletion:
		return "PendingCompletion"
	default:
		return "Unknown"
	}
}

// noChoice marks tabIndex as unset
const noChoice = -1

// session is the per-editor completion state. It is reset on settings
// changes.
type session struct {
	before                  string
	after                   string
	regionIncludesBeginning bool
	regionIncludesEnd       bool
	beforeBeginLocation     int
	autocompleting          bool

	choices            []types.Candidate
	tabIndex           int
	substituteInterval text.Region

	actionsSinceCompletion int
	expectedPrefix         string
	oldPrefix              *string
	popupIsOurs            bool
	seenChanges            bool
}

func newSession() session {
	return session{
		actionsSinceCompletion: 1,
		tabIndex:               noChoice,
	}
}

// completionResult is the payload of EventCompletionReady
type completionResult struct {
	seq      uint64
	response *types.AutocompleteResponse
}
