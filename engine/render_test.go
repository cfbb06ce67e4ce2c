package engine

import (
	"testing"

	"tabcomplete/types"

	"github.com/stretchr/testify/assert"
)

func TestAnnotation(t *testing.T) {
	tests := map[int]string{
		0:  "Tab",
		1:  "Tab+Tab",
		2:  "Tab+3",
		5:  "Tab+6",
		8:  "Tab+9",
		9:  "",
		12: "",
	}
	for i, want := range tests {
		assert.Equal(t, want, annotation(i), "annotation(%d)", i)
	}
}

func TestRenderChoices(t *testing.T) {
	choices := []types.Candidate{
		{NewPrefix: "ab", Detail: strPtr("x\ny")},
		{NewPrefix: "abcd"},
	}

	popup := renderChoices(choices, []string{"see tabnine.com/semantic"}, true)

	assert.Equal(t, []string{
		"ab    Tab      x y",
		"abcd  Tab+Tab",
		"see tabnine.com/semantic",
	}, popup.Lines)
	assert.False(t, popup.Markdown)
	assert.Equal(t, []types.Link{
		{Line: 2, Col: 4, Text: "tabnine.com/semantic", URL: "https://tabnine.com/semantic"},
	}, popup.Links)
}

func TestRenderChoicesWithoutDetail(t *testing.T) {
	choices := []types.Candidate{{NewPrefix: "ab", Detail: strPtr("hidden")}}

	popup := renderChoices(choices, nil, false)

	assert.Equal(t, []string{"ab  Tab"}, popup.Lines)
	assert.Empty(t, popup.Links)
}

func TestRenderChoicesPadsByDisplayWidth(t *testing.T) {
	choices := []types.Candidate{
		{NewPrefix: "日本"},
		{NewPrefix: "abc"},
	}

	popup := renderChoices(choices, nil, false)

	assert.Equal(t, []string{
		"日本  Tab",
		"abc   Tab+Tab",
	}, popup.Lines)
}

func TestFindLinks(t *testing.T) {
	lines := []string{
		"https://tabnine.com/semantic",
		"visit tabnine.com today",
		"nothing here",
		"tabnine.com and tabnine.com/semantic",
	}

	links := findLinks(lines)

	assert.Equal(t, []types.Link{
		{Line: 0, Col: 0, Text: "https://tabnine.com/semantic", URL: "https://tabnine.com/semantic"},
		{Line: 1, Col: 6, Text: "tabnine.com", URL: "https://tabnine.com"},
		{Line: 3, Col: 16, Text: "tabnine.com/semantic", URL: "https://tabnine.com/semantic"},
	}, links)
}

func TestDocumentationPopup(t *testing.T) {
	plain := documentationPopup(&types.Documentation{Value: "a\nb"})
	assert.Equal(t, []string{"a", "b"}, plain.Lines)
	assert.False(t, plain.Markdown)

	md := documentationPopup(&types.Documentation{Kind: types.DocumentationMarkdown, Value: "*x*"})
	assert.True(t, md.Markdown)
}
