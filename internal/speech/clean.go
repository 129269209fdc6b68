package speech

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// MinTextLength is the shortest text worth sending to the synthesizer.
const MinTextLength = 2

var (
	xpMarkerRe   = regexp.MustCompile(`\[XP: \d+\]`)
	emojiRe      = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}\x{1F900}-\x{1F9FF}\x{1F1E0}-\x{1F1FF}]`)
	unspeakRe    = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\s\p{Z}]`)
	whitespaceRe = regexp.MustCompile(`[\s\p{Z}]+`)

	markdown = goldmark.New()
)

// CleanText strips what the voice model cannot or should not read aloud:
// XP markers, emoji and symbols. Letters of every script are kept. Line
// breaks become sentence stops so the reading keeps its rhythm.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = xpMarkerRe.ReplaceAllString(s, "")
	s = emojiRe.ReplaceAllString(s, "")
	s = unspeakRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\n", ". ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// PlainText renders markdown to the text a listener would hear. Emphasis
// and link syntax disappear, block boundaries become line breaks.
func PlainText(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Kind() != ast.KindList {
				newline(&b)
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

func newline(b *strings.Builder) {
	s := b.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	b.WriteByte('\n')
}

// Speakable reports whether text still has something to say after cleaning.
func Speakable(s string) bool {
	return len([]rune(CleanText(s))) >= MinTextLength
}
