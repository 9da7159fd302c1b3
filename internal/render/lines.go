package render

import (
	"fmt"
	"strconv"
	"time"
)

// LineStyle distinguishes title, heading and body lines.
type LineStyle int

const (
	StyleBody LineStyle = iota
	StyleTitle
	StyleHeading
	StyleSpacer
)

// Line is one logical line of a text document.
type Line struct {
	Text  string
	Style LineStyle
}

// titleBlock is the leading block shared by DOCX, PDF and Markdown.
func titleBlock(doc Document) []Line {
	lines := []Line{{Text: doc.Title, Style: StyleTitle}}
	if doc.ProjectID != "" {
		lines = append(lines, Line{Text: "Project: " + doc.ProjectID})
	}
	lines = append(lines,
		Line{Text: "Generated: " + doc.GeneratedAt.Format(time.RFC3339)},
		Line{Style: StyleSpacer},
	)
	return lines
}

// itemBlock renders one requirement as its heading and four summary lines.
// n is the 1-based position in the document.
func itemBlock(n int, it Item) []Line {
	return []Line{
		{Text: fmt.Sprintf("%d. %s [REQ-%d]", n, it.Feature, n), Style: StyleHeading},
		{Text: fmt.Sprintf("Type: %s | Priority: %s | MoSCoW: %s", orDash(string(it.Kind)), priorityLabel(it.PriorityRank), it.MoSCoW.Label())},
		{Text: "Description: " + orDash(it.Description)},
		{Text: "Source Input ID: " + orNA(it.SourceInputID)},
		{Text: "Notes: " + orNA(it.Notes)},
		{Style: StyleSpacer},
	}
}

// documentLines is the full line sequence of a text document.
func documentLines(doc Document) []Line {
	lines := titleBlock(doc)
	for i, it := range doc.Items {
		lines = append(lines, itemBlock(i+1, it)...)
	}
	return lines
}

func priorityLabel(rank int) string {
	if rank <= 0 {
		return "P-"
	}
	return "P" + strconv.Itoa(rank)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
