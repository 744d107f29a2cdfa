package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var tagPattern = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

// LooksLikeHTML reports whether content carries markup worth stripping.
// Pages written in plain text or markdown go through the markdown path.
func LooksLikeHTML(content string) bool {
	return tagPattern.MatchString(content)
}

// HTMLToText strips markup from editor-produced page content. Script, style
// and noscript subtrees are dropped entirely; the remaining text nodes are
// joined line by line with blank lines removed.
func HTMLToText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte('\n')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}
	return normalizeLines(b.String())
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
