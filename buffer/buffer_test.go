package buffer

import (
	"testing"

	"tabcomplete/text"
	"tabcomplete/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDocument_PrimaryCursor(t *testing.T) {
	lines := []string{"héllo", "world"}

	doc := buildDocument(lines, [2]int{2, 3}, editorState{})

	assert.Equal(t, "héllo\nworld", doc.String())
	assert.Equal(t, []text.Region{text.Point(9)}, doc.Selections())
}

func TestBuildDocument_MultiByteColumn(t *testing.T) {
	lines := []string{"héllo"}

	// byte column 3 is after "hé"
	doc := buildDocument(lines, [2]int{1, 3}, editorState{})

	assert.Equal(t, []text.Region{text.Point(2)}, doc.Selections())
}

func TestBuildDocument_VisualSelection(t *testing.T) {
	lines := []string{"abcdef"}

	doc := buildDocument(lines, [2]int{1, 1}, editorState{Visual: []int{1, 3}})

	require.Equal(t, 1, doc.NumSelections())
	assert.Equal(t, text.Region{Begin: 1, End: 4}, doc.Selection(0))
	assert.False(t, doc.Selection(0).Empty())
}

func TestBuildDocument_ExtraCursors(t *testing.T) {
	lines := []string{"foo", "foo", "foo"}

	doc := buildDocument(lines, [2]int{2, 3}, editorState{
		Cursors: [][]int{{1, 3}, {3, 3}, {2, 3}, {1}},
	})

	// sorted by offset, the window cursor is not duplicated
	assert.Equal(t, []text.Region{text.Point(3), text.Point(7), text.Point(11)}, doc.Selections())
}

func TestCursorPositions(t *testing.T) {
	lines := []string{"foo", "bär"}
	sels := []text.Region{text.Point(1), text.Point(3), text.Point(6)}

	assert.Equal(t, [][]int{{1, 3}, {2, 3}}, cursorPositions(lines, sels))
	assert.Equal(t, [][]int{}, cursorPositions(lines, sels[:1]))
	assert.Equal(t, [][]int{}, cursorPositions(lines, nil))
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "", joinLines([]string{""}))
	assert.Equal(t, "a\nb\n", joinLines([]string{"a", "b", ""}))
	assert.Equal(t, "a", joinLines([]string{"a"}))
}

func TestLuaLinks(t *testing.T) {
	links := luaLinks([]types.Link{{Line: 1, Col: 4, Text: "tabnine.com", URL: "https://tabnine.com"}})

	assert.Equal(t, []map[string]any{{
		"line": 1,
		"col":  4,
		"text": "tabnine.com",
		"url":  "https://tabnine.com",
	}}, links)
}

func TestUnconnectedBuffer(t *testing.T) {
	b := New()

	assert.Error(t, b.Sync())
	assert.Error(t, b.Commit())
	assert.Error(t, b.ShowPopup(&types.Popup{}, 0))
	assert.NoError(t, b.HidePopup())
	assert.False(t, b.PopupVisible())
	assert.Error(t, b.RegisterHandlers(nil, nil))
	assert.Equal(t, "", b.Document().String())
}
