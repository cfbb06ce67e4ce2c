package engine

import (
	"errors"
	"testing"

	"tabcomplete/text"
	"tabcomplete/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cyclingEngine has two choices for "fo" ready at the cursor in "fo)"
func cyclingEngine(t *testing.T, config Config) (*Engine, *mockBuffer) {
	t.Helper()
	buf := newMockBuffer("fo)", text.Point(2))
	eng := createTestEngine(t, buf, newMockClient(nil), config)
	eng.choices = []types.Candidate{
		{NewPrefix: "foo(", OldSuffix: ")", NewSuffix: ")"},
		{NewPrefix: "format"},
	}
	eng.expectedPrefix = "fo"
	eng.substituteInterval = text.Region{Begin: 0, End: 2}
	eng.popupIsOurs = true
	return eng, buf
}

func TestAcceptChoice(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{})

	eng.handleEvent(Event{Type: EventAccept, Data: 1})

	assert.Equal(t, "foo()", buf.content())
	assert.Equal(t, []text.Region{text.Point(4)}, buf.doc.Selections())
	assert.Nil(t, eng.choices)
	assert.Equal(t, noChoice, eng.tabIndex)
	assert.Equal(t, 0, eng.actionsSinceCompletion)
	assert.Equal(t, "foo(", eng.expectedPrefix)
	require.NotNil(t, eng.oldPrefix)
	assert.Equal(t, ")", *eng.oldPrefix)
	assert.Equal(t, text.Region{Begin: 0, End: 5}, eng.substituteInterval)
	assert.Equal(t, 1, buf.commitCalls)
	assert.Equal(t, 1, buf.hideCalls)
}

func TestAcceptOutOfRange(t *testing.T) {
	for _, num := range []int{0, 3, -1} {
		eng, buf := cyclingEngine(t, Config{})

		eng.handleEvent(Event{Type: EventAccept, Data: num})

		assert.Equal(t, "fo)", buf.content(), "accept %d", num)
		assert.Len(t, eng.choices, 2)
		assert.Equal(t, 0, buf.commitCalls)
	}
}

func TestLeaderCyclesAndRestoresConsumedText(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{})

	eng.handleEvent(Event{Type: EventLeader})
	assert.Equal(t, "foo()", buf.content())
	assert.Equal(t, 0, eng.tabIndex)

	eng.handleEvent(Event{Type: EventLeader})
	assert.Equal(t, "format)", buf.content())
	assert.Equal(t, []text.Region{text.Point(6)}, buf.doc.Selections())
	assert.Equal(t, 1, eng.tabIndex)

	// wraps around
	eng.handleEvent(Event{Type: EventLeader})
	assert.Equal(t, "foo()", buf.content())
	assert.Equal(t, []text.Region{text.Point(4)}, buf.doc.Selections())
	assert.Equal(t, 0, eng.tabIndex)
	assert.Len(t, eng.choices, 2)
}

func TestSyncFailureLeavesCyclingUntouched(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{})
	buf.syncErr = errors.New("editor gone")

	eng.handleEvent(Event{Type: EventLeader})

	assert.Equal(t, "fo)", buf.content())
	assert.Equal(t, noChoice, eng.tabIndex)
	assert.Nil(t, eng.oldPrefix)
	assert.Equal(t, "fo", eng.expectedPrefix)
	assert.Equal(t, text.Region{Begin: 0, End: 2}, eng.substituteInterval)
	assert.Len(t, eng.choices, 2)
	assert.Equal(t, 0, buf.commitCalls)

	// once the editor answers again, cycling starts from the first choice
	buf.syncErr = nil
	eng.handleEvent(Event{Type: EventLeader})
	assert.Equal(t, "foo()", buf.content())
	assert.Equal(t, 0, eng.tabIndex)

	eng.handleEvent(Event{Type: EventLeader})
	assert.Equal(t, "format)", buf.content())
}

func TestReverseLeaderStartsAtLast(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{})

	eng.handleEvent(Event{Type: EventReverseLeader})
	assert.Equal(t, "format)", buf.content())
	assert.Equal(t, 1, eng.tabIndex)

	eng.handleEvent(Event{Type: EventReverseLeader})
	assert.Equal(t, "foo()", buf.content())
	assert.Equal(t, 0, eng.tabIndex)

	eng.handleEvent(Event{Type: EventReverseLeader})
	assert.Equal(t, "format)", buf.content())
}

func TestLeaderWithoutChoices(t *testing.T) {
	buf := newMockBuffer("fo", text.Point(2))
	eng := createTestEngine(t, buf, newMockClient(nil), Config{})

	eng.handleEvent(Event{Type: EventLeader})
	eng.handleEvent(Event{Type: EventReverseLeader})

	assert.Equal(t, "fo", buf.content())
	assert.Equal(t, 0, buf.commitCalls)
}

func TestSingleChoiceClearedOnInsert(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{})
	eng.choices = eng.choices[1:]

	eng.handleEvent(Event{Type: EventLeader})

	assert.Equal(t, "format)", buf.content())
	assert.Nil(t, eng.choices)
}

func TestAcceptShowsDocumentation(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{Documentation: true})
	eng.choices[0].Documentation = &types.Documentation{
		Kind:  types.DocumentationMarkdown,
		Value: "# foo\nsee tabnine.com",
	}

	eng.handleEvent(Event{Type: EventAccept, Data: 1})

	assert.False(t, eng.popupIsOurs)
	assert.Equal(t, 0, buf.hideCalls)
	require.NotNil(t, buf.popup)
	assert.True(t, buf.popup.Markdown)
	assert.Equal(t, []string{"# foo", "see tabnine.com"}, buf.popup.Lines)
	assert.Equal(t, 0, buf.popupAnchor)
	assert.Len(t, buf.popup.Links, 1)
}

func TestDocumentationIgnoredWhenDisabled(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{Documentation: false})
	eng.choices[0].Documentation = &types.Documentation{Value: "doc"}

	eng.handleEvent(Event{Type: EventAccept, Data: 1})

	assert.True(t, eng.popupIsOurs)
	assert.Equal(t, 1, buf.hideCalls)
	assert.Equal(t, 0, buf.showCalls)
}

func TestQueries(t *testing.T) {
	eng, buf := cyclingEngine(t, Config{})
	buf.popupVisible = true

	// our own list is showing, so number keys are not ours to take
	assert.False(t, eng.Query(QueryChoiceAvailable, 1))
	assert.True(t, eng.Query(QueryLeaderAvailable, 1))
	assert.False(t, eng.Query(QueryLeaderAvailable, 0))
	assert.True(t, eng.Query(QueryReverseLeaderAvailable, 1))
	assert.False(t, eng.Query(QueryReverseLeaderAvailable, 0))

	eng.popupIsOurs = false
	assert.True(t, eng.Query(QueryChoiceAvailable, 1))
	assert.True(t, eng.Query(QueryChoiceAvailable, 2))
	assert.False(t, eng.Query(QueryChoiceAvailable, 3))
	assert.False(t, eng.Query(QueryChoiceAvailable, 0))

	buf.popupVisible = false
	assert.False(t, eng.Query(QueryLeaderAvailable, 1))
	assert.True(t, eng.Query(QueryLeaderAvailable, 0))

	eng.choices = nil
	assert.False(t, eng.Query(QueryReverseLeaderAvailable, 1))
	assert.True(t, eng.Query(QueryReverseLeaderAvailable, 0))
	assert.False(t, eng.Query("bogus", 1))
}
