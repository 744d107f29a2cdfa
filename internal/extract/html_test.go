package extract_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/extract"
)

func TestLooksLikeHTML(t *testing.T) {
	require.True(t, extract.LooksLikeHTML("<p>hello</p>"))
	require.True(t, extract.LooksLikeHTML(`<div class="note">x</div>`))
	require.False(t, extract.LooksLikeHTML("plain text page"))
	require.False(t, extract.LooksLikeHTML("a < b and b > c"))
	require.False(t, extract.LooksLikeHTML("# markdown heading"))
}

func TestHTMLToTextStripsMarkup(t *testing.T) {
	content := `<html><body>
		<script>var ignored = 1;</script>
		<style>p { color: red; }</style>
		<h1>Title</h1>
		<p>First paragraph</p>
		<div><span>Nested</span> text</div>
	</body></html>`

	got := extract.HTMLToText(content)
	require.NotContains(t, got, "ignored")
	require.NotContains(t, got, "color")
	require.Contains(t, got, "Title")
	require.Contains(t, got, "First paragraph")
	require.Contains(t, got, "Nested")
}

func TestHTMLToTextNoBlankLines(t *testing.T) {
	got := extract.HTMLToText("<p>one</p>\n\n\n<p>two</p>")
	require.Equal(t, "one\ntwo", got)
}

func TestHTMLToTextEmpty(t *testing.T) {
	require.Equal(t, "", extract.HTMLToText(""))
	require.Equal(t, "", extract.HTMLToText("   \n\t "))
}

func TestMarkdownToText(t *testing.T) {
	src := "# Title\n\nA paragraph with **bold** text.\n\n```go\ncode line\n```\n"
	got := extract.MarkdownToText(src)
	require.Contains(t, got, "Title")
	require.Contains(t, got, "A paragraph with")
	require.Contains(t, got, "bold")
	require.Contains(t, got, "code line")
	require.NotContains(t, got, "# ")
	require.NotContains(t, got, "```")
}

func TestPlainTextRouting(t *testing.T) {
	require.Equal(t, "hello", extract.PlainText("<p>hello</p>"))
	require.Equal(t, "Heading", extract.PlainText("# Heading"))
	require.Equal(t, "", extract.PlainText(""))
}
