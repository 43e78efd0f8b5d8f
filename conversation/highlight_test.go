package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyHighlightsLongestFirst(t *testing.T) {
	got := ApplyHighlights("The category of a cat.", []HighlightedSelection{
		{MessageID: "a1", Text: "cat", ChildMessageID: "c1"},
		{MessageID: "a1", Text: "category", ChildMessageID: "c2"},
	})

	assert.Equal(t,
		`The <mark data-child-id="c2">category</mark> of a <mark data-child-id="c1">cat</mark>.`,
		got)
	assert.Equal(t, 2, strings.Count(got, "<mark"))
}

func TestApplyHighlightsSkipsCode(t *testing.T) {
	content := "Call `foo` first.\n\n```go\nfoo()\n```\n"
	got := ApplyHighlights(content, []HighlightedSelection{{MessageID: "a1", Text: "foo", ChildMessageID: "c1"}})
	assert.Equal(t, content, got)

	mixed := "foo outside, `foo` inside"
	got = ApplyHighlights(mixed, []HighlightedSelection{{MessageID: "a1", Text: "foo", ChildMessageID: "c1"}})
	assert.Equal(t, "<mark data-child-id=\"c1\">foo</mark> outside, `foo` inside", got)
}

func TestApplyHighlightsSkipsUnclosedAndTildeFences(t *testing.T) {
	cat := []HighlightedSelection{{MessageID: "a1", Text: "cat", ChildMessageID: "c1"}}

	// an answer cut off mid block leaves the fence open to the end
	truncated := "Intro cat.\n\n```go\ncat := 1\n"
	assert.Equal(t, "Intro <mark data-child-id=\"c1\">cat</mark>.\n\n```go\ncat := 1\n", ApplyHighlights(truncated, cat))

	tilde := "~~~\ncat\n~~~\nA cat.\n"
	assert.Equal(t, "~~~\ncat\n~~~\nA <mark data-child-id=\"c1\">cat</mark>.\n", ApplyHighlights(tilde, cat))

	info := "```go\nx\n```\n"
	assert.Equal(t, info, ApplyHighlights(info, []HighlightedSelection{{MessageID: "a1", Text: "go", ChildMessageID: "c1"}}))

	html, err := RenderHTML(truncated, cat)
	require.NoError(t, err)
	assert.NotContains(t, html, "&lt;mark")
	assert.Contains(t, html, `<code class="language-go">cat := 1`)

	html, err = RenderHTML(tilde, cat)
	require.NoError(t, err)
	assert.NotContains(t, html, "&lt;mark")
	assert.Equal(t, 1, strings.Count(html, "<mark"))
}

func TestApplyHighlightsSkipsLinkSyntax(t *testing.T) {
	cat := []HighlightedSelection{{MessageID: "a1", Text: "cat", ChildMessageID: "c1"}}

	got := ApplyHighlights("[docs](https://example.com/cat) about cat", cat)
	assert.Equal(t, `[docs](https://example.com/cat) about <mark data-child-id="c1">cat</mark>`, got)

	got = ApplyHighlights("[the cat docs](https://example.com/cat)", cat)
	assert.Equal(t, `[the <mark data-child-id="c1">cat</mark> docs](https://example.com/cat)`, got)

	got = ApplyHighlights("A cat: https://example.com/cat and <https://example.org/cat>", cat)
	assert.Equal(t, `A <mark data-child-id="c1">cat</mark>: https://example.com/cat and <https://example.org/cat>`, got)

	got = ApplyHighlights(`A cat <span title="cat">x</span>`, cat)
	assert.Equal(t, `A <mark data-child-id="c1">cat</mark> <span title="cat">x</span>`, got)

	html, err := RenderHTML("[docs](https://example.com/cat) about cat", cat)
	require.NoError(t, err)
	assert.Contains(t, html, `<a href="https://example.com/cat">docs</a>`)
	assert.Contains(t, html, `about <mark data-child-id="c1">cat</mark>`)
}

func TestApplyHighlightsEveryOccurrence(t *testing.T) {
	got := ApplyHighlights("X is X is", []HighlightedSelection{{MessageID: "a1", Text: "X is", ChildMessageID: "a2-pending"}})
	assert.Equal(t, 2, strings.Count(got, `<mark data-child-id="a2-pending">X is</mark>`))
}

func TestApplyHighlightsEscapesChildID(t *testing.T) {
	got := ApplyHighlights("hello", []HighlightedSelection{{MessageID: "a1", Text: "hello", ChildMessageID: `x"><script>`}})
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "&#34;")
}

func TestApplyHighlightsNoop(t *testing.T) {
	assert.Equal(t, "text", ApplyHighlights("text", nil))
	assert.Equal(t, "text", ApplyHighlights("text", []HighlightedSelection{{Text: ""}}))
	assert.Equal(t, "text", ApplyHighlights("text", []HighlightedSelection{{Text: "absent"}}))
}

func TestHighlightsFor(t *testing.T) {
	hs := []HighlightedSelection{
		{MessageID: "a1", Text: "x", ChildMessageID: "c1"},
		{MessageID: "a2", Text: "y", ChildMessageID: "c2"},
		{MessageID: "a1", Text: "z", ChildMessageID: "c3"},
	}
	got := HighlightsFor(hs, "a1")
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ChildMessageID)
	assert.Equal(t, "c3", got[1].ChildMessageID)
	assert.Empty(t, HighlightsFor(hs, "a9"))
}

func TestCheckSelection(t *testing.T) {
	content := "X is a letter. Use `x := 1` in code.\n\n```\nonly here\n```\n"

	_, err := CheckSelection(content, Selection{Text: "   ", Anchor: -1})
	assert.ErrorIs(t, err, ErrEmptySelection)

	text, err := CheckSelection(content, Selection{Text: "  X is ", Anchor: -1})
	require.NoError(t, err)
	assert.Equal(t, "X is", text)

	_, err = CheckSelection(content, Selection{Text: "only here", Anchor: -1})
	assert.ErrorIs(t, err, ErrSelectionInCode)

	anchor := strings.Index(content, "x := 1")
	_, err = CheckSelection(content, Selection{Text: "x := 1", Anchor: anchor})
	assert.ErrorIs(t, err, ErrSelectionInCode)

	_, err = CheckSelection(content, Selection{Text: "letter", Anchor: strings.Index(content, "letter")})
	assert.NoError(t, err)

	// Rendered text that is not verbatim markdown is still allowed.
	_, err = CheckSelection(content, Selection{Text: "rendered only", Anchor: -1})
	assert.NoError(t, err)
}

func TestInCode(t *testing.T) {
	content := "a `b` c\n```\nd\n```\ne"
	assert.False(t, InCode(content, strings.Index(content, "a")))
	assert.True(t, InCode(content, strings.Index(content, "b")))
	assert.True(t, InCode(content, strings.Index(content, "d")))
	assert.False(t, InCode(content, strings.LastIndex(content, "e")))

	open := "text\n\n~~~\nopen to the end"
	assert.True(t, InCode(open, strings.Index(open, "end")))
	assert.False(t, InCode(open, strings.Index(open, "text")))
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("X is **bold**.", []HighlightedSelection{{MessageID: "a1", Text: "X is", ChildMessageID: "c1"}})
	require.NoError(t, err)
	assert.Contains(t, html, `<mark data-child-id="c1">X is</mark>`)
	assert.Contains(t, html, "<strong>bold</strong>")

	html, err = RenderHTML("```\nX is\n```\n", []HighlightedSelection{{MessageID: "a1", Text: "X is", ChildMessageID: "c1"}})
	require.NoError(t, err)
	assert.NotContains(t, html, "<mark")
	assert.Contains(t, html, "<code>X is")
}
