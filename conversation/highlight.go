package conversation

import (
	"bytes"
	"errors"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	ErrEmptySelection  = errors.New("selection is empty")
	ErrSelectionInCode = errors.New("selection is inside code")
)

// HighlightedSelection links a span of one answer to the answer it spawned.
// It lives for the session only and is never persisted.
type HighlightedSelection struct {
	MessageID      string `json:"message_id"`
	Text           string `json:"text"`
	ChildMessageID string `json:"child_message_id"`
}

// Selection is text the user picked inside a rendered answer. Anchor is the
// byte offset of the selection start in the answer's markdown, or -1 when the
// client does not know it.
type Selection struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	Anchor    int    `json:"anchor"`
}

type span struct {
	start, end int
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// sourceSpans holds the byte ranges of content that goldmark reads as code,
// and the ranges that are link or HTML syntax rather than visible text.
type sourceSpans struct {
	code   []span
	markup []span
}

func (s *sourceSpans) protected() []span {
	return append(append([]span(nil), s.code...), s.markup...)
}

// scanSpans parses content with the renderer's parser and records the source
// ranges of code and markup. The tree is only read.
func scanSpans(content string) *sourceSpans {
	w := &spanWalker{src: []byte(content), out: &sourceSpans{}, image: -1}
	doc := markdown.Parser().Parse(text.NewReader(w.src))
	_ = ast.Walk(doc, w.visit)
	return w.out
}

type spanWalker struct {
	src []byte
	out *sourceSpans
	// cursor is the end of the last inline segment seen, in document order.
	cursor int
	image  int
}

func (w *spanWalker) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := n.(type) {
	case *ast.FencedCodeBlock:
		if entering {
			w.fenced(n)
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			if s, ok := linesSpan(n.Lines()); ok {
				s.start = lineStart(w.src, s.start)
				w.out.code = append(w.out.code, s)
			}
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock:
		if entering {
			if s, ok := linesSpan(n.Lines()); ok {
				if n.HasClosure() && n.ClosureLine.Stop > s.end {
					s.end = n.ClosureLine.Stop
				}
				w.out.markup = append(w.out.markup, s)
			}
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeSpan:
		if entering {
			w.codeSpan(n)
		}
		return ast.WalkSkipChildren, nil
	case *ast.RawHTML:
		if entering {
			if s, ok := linesSpan(n.Segments); ok {
				w.out.markup = append(w.out.markup, s)
				w.cursor = s.end
			}
		}
	case *ast.AutoLink:
		if entering {
			w.autoLink(n)
		}
	case *ast.Text:
		if entering {
			w.cursor = n.Segment.Stop
		}
	case *ast.Image:
		if entering {
			if i := bytes.Index(w.src[w.cursor:], []byte("![")); i >= 0 {
				w.image = w.cursor + i
			}
		} else {
			w.linkTail(w.image)
			w.image = -1
		}
	case *ast.Link:
		if !entering {
			w.linkTail(-1)
		}
	}
	return ast.WalkContinue, nil
}

// fenced covers the opening fence line through the closing fence, or to the
// end of content when the fence is never closed.
func (w *spanWalker) fenced(n *ast.FencedCodeBlock) {
	start, from := -1, -1
	lines := n.Lines()
	if n.Info != nil {
		start = lineStart(w.src, n.Info.Segment.Start)
		from = lineEnd(w.src, n.Info.Segment.Start)
	}
	if lines.Len() > 0 {
		if first := lineStart(w.src, lines.At(0).Start); start < 0 && first > 0 {
			start = lineStart(w.src, first-1)
		}
		from = lines.At(lines.Len() - 1).Stop
	}
	if start < 0 {
		return
	}
	w.out.code = append(w.out.code, span{start, closingFence(w.src, from)})
}

func (w *spanWalker) codeSpan(n *ast.CodeSpan) {
	start, end := -1, -1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			if start < 0 {
				start = t.Segment.Start
			}
			end = t.Segment.Stop
		}
	}
	if start < 0 {
		return
	}
	// widen over the stripped padding space and the backtick run
	if s := skipBack(w.src, start, ' '); s > 0 && w.src[s-1] == '`' {
		start = skipBack(w.src, s, '`')
	}
	if e := skipForward(w.src, end, ' '); e < len(w.src) && w.src[e] == '`' {
		end = skipForward(w.src, e, '`')
	}
	w.out.code = append(w.out.code, span{start, end})
	w.cursor = end
}

func (w *spanWalker) autoLink(n *ast.AutoLink) {
	label := n.Label(w.src)
	i := bytes.Index(w.src[w.cursor:], label)
	if len(label) == 0 || i < 0 {
		return
	}
	start, end := w.cursor+i, w.cursor+i+len(label)
	if start > 0 && w.src[start-1] == '<' && end < len(w.src) && w.src[end] == '>' {
		start, end = start-1, end+1
	}
	w.out.markup = append(w.out.markup, span{start, end})
	w.cursor = end
}

// linkTail covers "](destination)" or "][ref]" after a link label. A start
// of -1 keeps the label itself highlightable.
func (w *spanWalker) linkTail(start int) {
	i := bytes.IndexByte(w.src[w.cursor:], ']')
	if i < 0 {
		return
	}
	bracket := w.cursor + i
	end := bracket + 1
	if end < len(w.src) {
		switch w.src[end] {
		case '(':
			end = matchClose(w.src, end, '(', ')')
		case '[':
			end = matchClose(w.src, end, '[', ']')
		}
	}
	if start < 0 {
		start = bracket
	}
	w.out.markup = append(w.out.markup, span{start, end})
	w.cursor = end
}

func linesSpan(lines *text.Segments) (span, bool) {
	if lines == nil || lines.Len() == 0 {
		return span{}, false
	}
	return span{lines.At(0).Start, lines.At(lines.Len() - 1).Stop}, true
}

// closingFence returns the end of the fence line starting at from, or from
// itself when that line is not a fence.
func closingFence(src []byte, from int) int {
	if from >= len(src) {
		return len(src)
	}
	end := lineEnd(src, from)
	line := bytes.TrimLeft(src[from:end], " \t>")
	if bytes.HasPrefix(line, []byte("```")) || bytes.HasPrefix(line, []byte("~~~")) {
		return end
	}
	return from
}

func lineStart(src []byte, i int) int {
	return bytes.LastIndexByte(src[:i], '\n') + 1
}

func lineEnd(src []byte, i int) int {
	if j := bytes.IndexByte(src[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(src)
}

func skipBack(src []byte, i int, c byte) int {
	for i > 0 && src[i-1] == c {
		i--
	}
	return i
}

func skipForward(src []byte, i int, c byte) int {
	for i < len(src) && src[i] == c {
		i++
	}
	return i
}

// matchClose returns the index just past the bracket closing the one at open.
func matchClose(src []byte, open int, left, right byte) int {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case left:
			depth++
		case right:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(src)
}

// InCode reports whether offset falls inside a fenced block or inline code span.
func InCode(content string, offset int) bool {
	for _, s := range scanSpans(content).code {
		if offset >= s.start && offset < s.end {
			return true
		}
	}
	return false
}

// CheckSelection trims the selected text and decides whether elaboration may
// be offered for it. With a known anchor the anchor decides; otherwise the
// selection is refused only when every occurrence of it sits inside code.
func CheckSelection(content string, sel Selection) (string, error) {
	text := strings.TrimSpace(sel.Text)
	if text == "" {
		return "", ErrEmptySelection
	}
	if sel.Anchor >= 0 && sel.Anchor < len(content) {
		if InCode(content, sel.Anchor) {
			return "", ErrSelectionInCode
		}
		return text, nil
	}

	code := scanSpans(content).code
	found := false
	for from := 0; from <= len(content); {
		i := strings.Index(content[from:], text)
		if i < 0 {
			break
		}
		found = true
		occ := span{from + i, from + i + len(text)}
		if !overlapsAny(occ, code) {
			return text, nil
		}
		from = occ.start + 1
	}
	if found {
		return "", ErrSelectionInCode
	}
	// Rendered text may not appear verbatim in the markdown; allow it.
	return text, nil
}

// HighlightsFor returns the highlights recorded against one answer.
func HighlightsFor(highlights []HighlightedSelection, messageID string) []HighlightedSelection {
	var out []HighlightedSelection
	for _, h := range highlights {
		if h.MessageID == messageID {
			out = append(out, h)
		}
	}
	return out
}

type claim struct {
	span
	childID string
}

// ApplyHighlights wraps every occurrence of each highlight's text in a
// <mark data-child-id> tag. Code, link destinations and raw HTML are never
// touched. Longer texts claim their
// occurrences first and a shorter text is not wrapped inside a claimed span.
func ApplyHighlights(content string, highlights []HighlightedSelection) string {
	if len(highlights) == 0 || content == "" {
		return content
	}

	sorted := make([]HighlightedSelection, 0, len(highlights))
	for _, h := range highlights {
		if h.Text != "" {
			sorted = append(sorted, h)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i].Text) > utf8.RuneCountInString(sorted[j].Text)
	})

	protected := scanSpans(content).protected()
	var claims []claim
	for _, h := range sorted {
		for from := 0; from < len(content); {
			i := strings.Index(content[from:], h.Text)
			if i < 0 {
				break
			}
			occ := span{from + i, from + i + len(h.Text)}
			if overlapsAny(occ, protected) || overlapsClaim(occ, claims) {
				from = occ.start + 1
				continue
			}
			claims = append(claims, claim{span: occ, childID: h.ChildMessageID})
			from = occ.end
		}
	}
	if len(claims) == 0 {
		return content
	}

	sort.Slice(claims, func(i, j int) bool { return claims[i].start < claims[j].start })
	var b strings.Builder
	b.Grow(len(content) + len(claims)*48)
	prev := 0
	for _, c := range claims {
		b.WriteString(content[prev:c.start])
		b.WriteString(`<mark data-child-id="`)
		b.WriteString(html.EscapeString(c.childID))
		b.WriteString(`">`)
		b.WriteString(content[c.start:c.end])
		b.WriteString(`</mark>`)
		prev = c.end
	}
	b.WriteString(content[prev:])
	return b.String()
}

func overlapsAny(s span, spans []span) bool {
	for _, o := range spans {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

func overlapsClaim(s span, claims []claim) bool {
	for _, c := range claims {
		if s.overlaps(c.span) {
			return true
		}
	}
	return false
}
