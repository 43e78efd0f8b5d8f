package conversation

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML must pass through so the <mark> wrappers survive rendering.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderHTML renders answer markdown with its highlights applied.
func RenderHTML(content string, highlights []HighlightedSelection) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(ApplyHighlights(content, highlights)), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}
