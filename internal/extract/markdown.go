package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownToText flattens markdown page content to plain text, block by block.
func MarkdownToText(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	md := goldmark.New()
	reader := text.NewReader([]byte(src))
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if txt := nodeText(node, reader.Source()); txt != "" {
			blocks = append(blocks, txt)
		}
	}
	return strings.Join(blocks, "\n")
}

func nodeText(n ast.Node, source []byte) string {
	if fenced, ok := n.(*ast.FencedCodeBlock); ok {
		var sb strings.Builder
		for i := 0; i < fenced.Lines().Len(); i++ {
			line := fenced.Lines().At(i)
			sb.Write(line.Value(source))
		}
		return strings.TrimSpace(sb.String())
	}
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).SoftLineBreak() || node.(*ast.Text).HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// PlainText routes page content through the right extractor.
func PlainText(content string) string {
	if LooksLikeHTML(content) {
		return HTMLToText(content)
	}
	return MarkdownToText(content)
}
