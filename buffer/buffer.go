// Package buffer implements the editor side of a completion session over
// Neovim's msgpack-RPC API.
package buffer

import (
	"fmt"

	"tabcomplete/logger"
	"tabcomplete/text"
	"tabcomplete/types"

	"github.com/neovim/go-client/nvim"
)

// NvimBuffer tracks the current buffer of one Neovim connection. Its
// Document is the snapshot taken by the last Sync.
type NvimBuffer struct {
	client *nvim.Nvim

	id       nvim.Buffer
	window   nvim.Window
	lines    []string
	doc      *text.Document
	path     string
	filetype string

	popup nvim.Window // 0 when no popup is open
}

func New() *NvimBuffer {
	return &NvimBuffer{
		lines: []string{""},
		doc:   text.NewDocument(""),
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.client = n
}

func (b *NvimBuffer) Document() *text.Document { return b.doc }

func (b *NvimBuffer) Path() string { return b.path }

func (b *NvimBuffer) Filetype() string { return b.filetype }

// editorState is what the sync Lua snippet returns besides the text
type editorState struct {
	Filetype string `msgpack:"filetype"`
	// Visual holds {row, col} of the other end of a visual selection
	Visual []int `msgpack:"visual"`
	// Cursors holds {row, col} of additional cursors set by a multi-cursor
	// plugin in b:tabcomplete_cursors
	Cursors [][]int `msgpack:"cursors"`
}

const syncLua = `
local mode = vim.api.nvim_get_mode().mode
local visual = {}
if mode == 'v' or mode == 'V' or mode == '\22' then
	local pos = vim.fn.getpos('v')
	visual = { pos[2], pos[3] - 1 }
end
return {
	filetype = vim.bo.filetype,
	visual = visual,
	cursors = vim.b.tabcomplete_cursors or {},
}
`

// Sync reads the current buffer, cursors and filetype in one round trip
func (b *NvimBuffer) Sync() error {
	defer logger.Trace("buffer.Sync")()
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	batch := b.client.NewBatch()

	var id nvim.Buffer
	var window nvim.Window
	var path string
	var lines [][]byte
	var cursor [2]int
	var state editorState

	batch.CurrentBuffer(&id)
	batch.CurrentWindow(&window)
	batch.BufferName(nvim.Buffer(0), &path)
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.WindowCursor(nvim.Window(0), &cursor)
	batch.ExecLua(syncLua, &state, nil)

	if err := batch.Execute(); err != nil {
		logger.Error("error executing sync batch: %v", err)
		return err
	}

	linesStr := make([]string, len(lines))
	for i, line := range lines {
		linesStr[i] = string(line)
	}
	if len(linesStr) == 0 {
		linesStr = []string{""}
	}

	if b.id != id {
		logger.Debug("switched to buffer %d (%s)", id, path)
	}
	b.id = id
	b.window = window
	b.path = path
	b.filetype = state.Filetype
	b.lines = linesStr
	b.doc = buildDocument(linesStr, cursor, state)
	return nil
}

// buildDocument turns the editor positions into document selections. The
// primary cursor always comes from the window cursor.
func buildDocument(lines []string, cursor [2]int, state editorState) *text.Document {
	primary := text.Point(text.OffsetOf(lines, cursor[0], cursor[1]))
	if len(state.Visual) == 2 {
		other := text.OffsetOf(lines, state.Visual[0], state.Visual[1])
		// visual selections include the character under the far end
		primary = text.Region{Begin: min(primary.Begin, other), End: max(primary.Begin, other) + 1}
	}

	sels := []text.Region{primary}
	for _, c := range state.Cursors {
		if len(c) != 2 {
			continue
		}
		pos := text.OffsetOf(lines, c[0], c[1])
		if pos != primary.Begin {
			sels = append(sels, text.Point(pos))
		}
	}

	doc := text.NewDocument(joinLines(lines))
	doc.SetSelections(sels)
	return doc
}

// Commit pushes the document back: changed lines as minimal hunks, then the
// cursors
func (b *NvimBuffer) Commit() error {
	defer logger.Trace("buffer.Commit")()
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	newLines := b.doc.Lines()
	hunks := text.LineHunks(b.lines, newLines)

	batch := b.client.NewBatch()
	for i := len(hunks) - 1; i >= 0; i-- {
		h := hunks[i]
		batch.SetBufferLines(b.id, h.Start, h.End, true, toBytes(h.Lines))
	}

	sels := b.doc.Selections()
	if len(sels) > 0 {
		row, col := text.PositionOf(newLines, sels[0].Begin)
		batch.SetWindowCursor(b.window, [2]int{row, col})
	}
	batch.ExecLua(`
		local buf, cursors = ...
		vim.b[buf].tabcomplete_cursors = cursors
	`, nil, int(b.id), cursorPositions(newLines, sels))

	if err := batch.Execute(); err != nil {
		logger.Error("error committing %d hunks: %v", len(hunks), err)
		return err
	}
	logger.Debug("committed %d hunks", len(hunks))
	b.lines = newLines
	return nil
}

// cursorPositions returns {row, col} for every selection but the primary
func cursorPositions(lines []string, sels []text.Region) [][]int {
	out := [][]int{}
	for _, sel := range sels[min(1, len(sels)):] {
		row, col := text.PositionOf(lines, sel.Begin)
		out = append(out, []int{row, col})
	}
	return out
}

const showPopupLua = `
local lines, markdown, links, row, col, old = ...
if old ~= 0 and vim.api.nvim_win_is_valid(old) then
	vim.api.nvim_win_close(old, true)
end
local buf = vim.api.nvim_create_buf(false, true)
vim.api.nvim_buf_set_lines(buf, 0, -1, false, lines)
if markdown then
	vim.bo[buf].filetype = 'markdown'
end
local ns = vim.api.nvim_create_namespace('tabcomplete_links')
for _, link in ipairs(links) do
	vim.api.nvim_buf_add_highlight(buf, ns, 'Underlined', link.line, link.col, link.col + #link.text)
end
if #links > 0 then
	vim.keymap.set('n', '<CR>', function()
		local cur = vim.api.nvim_win_get_cursor(0)[1] - 1
		for _, link in ipairs(links) do
			if link.line == cur then
				vim.ui.open(link.url)
				return
			end
		end
	end, { buffer = buf })
end
local width = 1
for _, line in ipairs(lines) do
	width = math.max(width, vim.fn.strdisplaywidth(line))
end
return vim.api.nvim_open_win(buf, false, {
	relative = 'win',
	bufpos = { row - 1, col },
	row = 1,
	col = 0,
	width = width,
	height = math.max(1, #lines),
	style = 'minimal',
	border = 'rounded',
	focusable = #links > 0,
})
`

// ShowPopup opens a floating window below the anchor offset, replacing any
// popup we already show
func (b *NvimBuffer) ShowPopup(popup *types.Popup, anchor int) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	row, col := text.PositionOf(b.lines, anchor)

	var win int
	err := b.client.ExecLua(showPopupLua, &win,
		popup.Lines, popup.Markdown, luaLinks(popup.Links), row, col, int(b.popup))
	if err != nil {
		return err
	}
	b.popup = nvim.Window(win)
	return nil
}

func (b *NvimBuffer) HidePopup() error {
	if b.client == nil || b.popup == 0 {
		return nil
	}
	win := b.popup
	b.popup = 0
	return b.client.ExecLua(`
		local win = ...
		if vim.api.nvim_win_is_valid(win) then
			vim.api.nvim_win_close(win, true)
		end
	`, nil, int(win))
}

// PopupVisible reports whether our popup window is still open. The user may
// have closed it without us noticing.
func (b *NvimBuffer) PopupVisible() bool {
	if b.client == nil || b.popup == 0 {
		return false
	}
	valid, err := b.client.IsWindowValid(b.popup)
	if err != nil {
		logger.Debug("popup window check: %v", err)
		return false
	}
	return valid
}

// luaLinks converts links to tables with the field names the Lua side reads
func luaLinks(links []types.Link) []map[string]any {
	out := make([]map[string]any, len(links))
	for i, l := range links {
		out[i] = map[string]any{
			"line": l.Line,
			"col":  l.Col,
			"text": l.Text,
			"url":  l.URL,
		}
	}
	return out
}

func joinLines(lines []string) string {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	buf := make([]byte, 0, n)
	for i, l := range lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}

func toBytes(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}
