package engine

import (
	"strings"
	"testing"

	"tabcomplete/text"

	"github.com/stretchr/testify/assert"
)

func TestAllSame(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		positions []int
		prefix    bool
		suffix    bool
	}{
		{"single cursor", "foo", []int{3}, true, true},
		{"no cursors", "foo", nil, true, true},
		{"same identifier", "foo\nfoo", []int{3, 7}, true, true},
		{"different identifier", "foo\nbar", []int{3, 7}, false, true},
		{"one longer", "ab\nxab", []int{2, 6}, false, true},
		{"different suffix", "fo1\nfo2", []int{2, 6}, true, false},
		{"suffix only one side", "fo \nfox", []int{2, 6}, true, false},
		{"punctuation boundary", "x.foo y.foo", []int{5, 11}, true, true},
		{"unicode letters", "größe\ngröße", []int{5, 11}, true, true},
		{"unicode mismatch", "größe\ngrüße", []int{5, 11}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := text.NewDocument(tt.content)
			assert.Equal(t, tt.prefix, allSamePrefix(doc, tt.positions), "prefix")
			assert.Equal(t, tt.suffix, allSameSuffix(doc, tt.positions), "suffix")
		})
	}
}

func TestAllSameStopsAtBound(t *testing.T) {
	// identical for 35 characters, different beyond the bound
	line1 := "b" + strings.Repeat("a", 35)
	line2 := "c" + strings.Repeat("a", 35)
	doc := text.NewDocument(line1 + "\n" + line2)

	assert.True(t, allSamePrefix(doc, []int{36, 73}))
}

func TestAllSameWithinBoundDetectsMismatch(t *testing.T) {
	line1 := "b" + strings.Repeat("a", 20)
	line2 := "c" + strings.Repeat("a", 20)
	doc := text.NewDocument(line1 + "\n" + line2)

	assert.False(t, allSamePrefix(doc, []int{21, 43}))
}
