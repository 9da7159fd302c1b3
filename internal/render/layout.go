package render

import (
	"math"
	"strings"
	"unicode/utf8"
)

// PDFOptions controls the PDF page layout. Units are millimetres.
type PDFOptions struct {
	// TopMargin is the baseline of the first line of every page.
	TopMargin float64
	// LineHeight is the vertical advance per line.
	LineHeight float64
	// PageThreshold is the lowest baseline a line may start at.
	PageThreshold float64
	// WrapWidth is the maximum line length in runes; 0 disables wrapping.
	WrapWidth int
}

// DefaultPDFOptions matches an A4 portrait page.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		TopMargin:     20,
		LineHeight:    6,
		PageThreshold: 280,
		WrapWidth:     90,
	}
}

func (o PDFOptions) withDefaults() PDFOptions {
	def := DefaultPDFOptions()
	if o.TopMargin <= 0 {
		o.TopMargin = def.TopMargin
	}
	if o.LineHeight <= 0 {
		o.LineHeight = def.LineHeight
	}
	if o.PageThreshold <= o.TopMargin {
		o.PageThreshold = def.PageThreshold
	}
	if o.WrapWidth < 0 {
		o.WrapWidth = 0
	}
	return o
}

// LinesPerPage is how many lines fit between the top margin and the threshold.
func (o PDFOptions) LinesPerPage() int {
	o = o.withDefaults()
	// 1e-9 absorbs quotients like 0.6/0.2 = 2.9999999999999996.
	return int(math.Floor((o.PageThreshold-o.TopMargin)/o.LineHeight+1e-9)) + 1
}

// PlacedLine is a line positioned on a page.
type PlacedLine struct {
	Line
	Y float64
}

// Page is one laid-out page.
type Page struct {
	Lines []PlacedLine
}

// Layout assigns lines to pages, LinesPerPage lines per page. Baselines are
// computed from the line's index on its page so rounding never drifts.
func Layout(lines []Line, opts PDFOptions) []Page {
	opts = opts.withDefaults()
	if len(lines) == 0 {
		return nil
	}

	per := opts.LinesPerPage()
	pages := make([]Page, 0, (len(lines)+per-1)/per)
	for start := 0; start < len(lines); start += per {
		end := min(start+per, len(lines))
		page := Page{Lines: make([]PlacedLine, 0, end-start)}
		for i, l := range lines[start:end] {
			page.Lines = append(page.Lines, PlacedLine{Line: l, Y: opts.TopMargin + float64(i)*opts.LineHeight})
		}
		pages = append(pages, page)
	}
	return pages
}

// WrapLines splits lines longer than width runes at word boundaries.
// Continuation lines keep the style of the line they came from.
func WrapLines(lines []Line, width int) []Line {
	if width <= 0 {
		return lines
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		for _, text := range wrapText(l.Text, width) {
			out = append(out, Line{Text: text, Style: l.Style})
		}
	}
	return out
}

func wrapText(s string, width int) []string {
	if utf8.RuneCountInString(s) <= width {
		return []string{s}
	}

	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		out = append(out, cur.String())
		cur.Reset()
		n = 0
	}
	for _, word := range strings.Fields(s) {
		for utf8.RuneCountInString(word) > width {
			if n > 0 {
				flush()
			}
			r := []rune(word)
			out = append(out, string(r[:width]))
			word = string(r[width:])
		}
		wl := utf8.RuneCountInString(word)
		if n > 0 && n+1+wl > width {
			flush()
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(word)
		n += wl
	}
	if n > 0 {
		flush()
	}
	return out
}
