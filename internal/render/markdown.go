package render

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
)

// markdownEscaper backslash-escapes characters that would otherwise be read
// as Markdown syntax inside requirement text.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`#`, `\#`, `<`, `\<`, `>`, `\>`, `|`, `\|`, `!`, `\!`,
)

// Markdown renders the document as Markdown with the same blocks as the DOCX
// and PDF outputs. It is used for previews and is never committed.
func Markdown(doc Document) []byte {
	if doc.Title == "" {
		doc.Title = DefaultTitle
	}
	doc.GeneratedAt = doc.GeneratedAt.UTC()

	var b strings.Builder
	for _, l := range documentLines(doc) {
		switch l.Style {
		case StyleTitle:
			b.WriteString("# " + markdownEscaper.Replace(l.Text) + "\n\n")
		case StyleHeading:
			b.WriteString("## " + markdownEscaper.Replace(l.Text) + "\n\n")
		case StyleSpacer:
		default:
			b.WriteString(markdownEscaper.Replace(l.Text) + "\n\n")
		}
	}
	return []byte(b.String())
}

// HTML renders the Markdown preview to an HTML fragment. Raw HTML in
// requirement text is not passed through.
func HTML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(Markdown(doc), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
