package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tabcomplete/text"
	"tabcomplete/types"

	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

// mockBuffer implements the Buffer interface over an in-memory document
type mockBuffer struct {
	mu       sync.Mutex
	doc      *text.Document
	path     string
	filetype string

	popup        *types.Popup
	popupAnchor  int
	popupVisible bool

	// Track method calls
	syncCalls   int
	commitCalls int
	showCalls   int
	hideCalls   int

	// onShow runs inside ShowPopup, while the event guard is held
	onShow func()

	syncErr error
}

func newMockBuffer(content string, sels ...text.Region) *mockBuffer {
	return &mockBuffer{
		doc:      text.NewDocument(content, sels...),
		path:     "test.py",
		filetype: "python",
	}
}

func (b *mockBuffer) Sync() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncCalls++
	return b.syncErr
}

func (b *mockBuffer) Document() *text.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc
}

func (b *mockBuffer) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commitCalls++
	return nil
}

func (b *mockBuffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

func (b *mockBuffer) Filetype() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filetype
}

func (b *mockBuffer) ShowPopup(popup *types.Popup, anchor int) error {
	b.mu.Lock()
	b.showCalls++
	b.popup = popup
	b.popupAnchor = anchor
	b.popupVisible = true
	onShow := b.onShow
	b.mu.Unlock()

	if onShow != nil {
		onShow()
	}
	return nil
}

func (b *mockBuffer) HidePopup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hideCalls++
	b.popupVisible = false
	return nil
}

func (b *mockBuffer) PopupVisible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.popupVisible
}

// typeText inserts s at every cursor, as typing with multiple cursors does
func (b *mockBuffer) typeText(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.doc.NumSelections() {
		b.doc.Insert(b.doc.Selection(i).Begin, s)
	}
}

// setCursors moves every cursor to the given offsets
func (b *mockBuffer) setCursors(positions ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sels := make([]text.Region, len(positions))
	for i, p := range positions {
		sels[i] = text.Point(p)
	}
	b.doc.SetSelections(sels)
}

func (b *mockBuffer) content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc.String()
}

// mockClient implements the Client interface for testing
type mockClient struct {
	mu            sync.Mutex
	resp          *types.AutocompleteResponse
	err           error
	requests      []*types.AutocompleteRequest
	prefetched    []string
	prefetchBlock chan struct{}

	// prefetchDeadlines records whether each prefetch context had a deadline
	prefetchDeadlines []bool
}

func newMockClient(resp *types.AutocompleteResponse) *mockClient {
	return &mockClient{resp: resp}
}

func (c *mockClient) Autocomplete(ctx context.Context, req *types.AutocompleteRequest) (*types.AutocompleteResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func (c *mockClient) Prefetch(ctx context.Context, filename string) error {
	c.mu.Lock()
	c.prefetched = append(c.prefetched, filename)
	_, hasDeadline := ctx.Deadline()
	c.prefetchDeadlines = append(c.prefetchDeadlines, hasDeadline)
	block := c.prefetchBlock
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *mockClient) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *mockClient) lastRequest() *types.AutocompleteRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

func (c *mockClient) prefetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prefetched)
}

var errUnknownFiletype = errors.New("unknown filetype")

// mockSyntax implements SyntaxResolver
type mockSyntax map[string]string

func (m mockSyntax) DummyFile(filetype string) (string, error) {
	if f, ok := m[filetype]; ok {
		return f, nil
	}
	return "", errUnknownFiletype
}

// --- Helper functions ---

func createTestEngine(t *testing.T, buf *mockBuffer, client *mockClient, config Config) *Engine {
	t.Helper()
	eng := NewEngine(client, buf, config, Options{Syntax: mockSyntax{"python": "/tmp/fake/f.py"}})
	t.Cleanup(eng.Stop)
	return eng
}

// nextEvent waits for the event posted by a background request
func nextEvent(t *testing.T, eng *Engine) Event {
	t.Helper()
	select {
	case ev := <-eng.eventChan:
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for background event")
		return Event{}
	}
}

// settle delivers the next background event to the engine
func settle(t *testing.T, eng *Engine) {
	t.Helper()
	eng.handleEvent(nextEvent(t, eng))
}

// typeAndNotify types s and sends the matching modified event
func typeAndNotify(eng *Engine, buf *mockBuffer, s string) {
	buf.typeText(s)
	eng.handleEvent(Event{Type: EventModified})
}

func candidates(prefixes ...string) []types.Candidate {
	out := make([]types.Candidate, len(prefixes))
	for i, p := range prefixes {
		out[i] = types.Candidate{NewPrefix: p}
	}
	return out
}

func intPtr(n int) *int { return &n }
