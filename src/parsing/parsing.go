// Package parsing turns author and visitor text into HTML that is safe to put in
// an email: markdown for newsletters, linkified plain text for form messages.
package parsing

import (
	"bytes"
	"html"
	"html/template"
	"strings"

	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/util"
	"mvdan.cc/xurls/v2"
)

// NewsletterMarkdown renders newsletter issues. Raw HTML in the source is
// dropped, and code is highlighted with inline styles since mail clients
// strip stylesheets.
var NewsletterMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
		emailHighlighting,
	),
)

var emailHighlighting = highlighting.NewHighlighting(
	highlighting.WithStyle("friendly"),
	highlighting.WithFormatOptions(
		chromahtml.WithClasses(false),
		chromahtml.WithPreWrapper(nopPreWrapper{}),
	),
	highlighting.WithWrapperRenderer(func(w util.BufWriter, context highlighting.CodeBlockContext, entering bool) {
		if entering {
			w.WriteString(`<pre style="padding:12px;border-radius:6px;background:#f6f3ee;overflow-x:auto;font-size:13px;">`)
		} else {
			w.WriteString(`</pre>`)
		}
	}),
)

// The wrapper renderer above writes the <pre>; chroma must not add its own.
type nopPreWrapper struct{}

var _ chromahtml.PreWrapper = nopPreWrapper{}

func (nopPreWrapper) Start(code bool, styleAttr string) string { return "" }
func (nopPreWrapper) End(code bool) string                     { return "" }

func ParseMarkdown(source string, md goldmark.Markdown) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

var urlRegex = xurls.Strict()

// LinkifyText escapes plain text, turns URLs into links, and keeps line breaks.
func LinkifyText(text string) template.HTML {
	var b strings.Builder
	last := 0
	for _, loc := range urlRegex.FindAllStringIndex(text, -1) {
		b.WriteString(escapeWithBreaks(text[last:loc[0]]))
		url := text[loc[0]:loc[1]]
		if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
			b.WriteString(`<a href="`)
			b.WriteString(html.EscapeString(url))
			b.WriteString(`" rel="nofollow">`)
			b.WriteString(html.EscapeString(url))
			b.WriteString(`</a>`)
		} else {
			b.WriteString(html.EscapeString(url))
		}
		last = loc[1]
	}
	b.WriteString(escapeWithBreaks(text[last:]))
	return template.HTML(b.String())
}

func escapeWithBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
}
