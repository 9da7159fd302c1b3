// Package render turns requirement items into export documents.
//
// Rendering is pure: the output depends only on the Document (including its
// GeneratedAt timestamp) and the Options, so identical inputs give
// byte-identical artifacts.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// Format is an export document format.
type Format string

const (
	FormatDocx     Format = "docx"
	FormatPDF      Format = "pdf"
	FormatJiraJSON Format = "jira_json"
)

// Formats lists the supported export formats.
var Formats = []Format{FormatDocx, FormatPDF, FormatJiraJSON}

// ParseFormat validates a format name (case-insensitive).
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.NewUnsupportedFormat(s)
}

// Extension is the file extension used when storing the format.
func (f Format) Extension() string {
	switch f {
	case FormatDocx:
		return "docx"
	case FormatPDF:
		return "pdf"
	case FormatJiraJSON:
		return "json"
	default:
		return "bin"
	}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	case FormatJiraJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// DefaultTitle heads every document.
const DefaultTitle = "Requirements Document"

// Item is one requirement as it appears in a document.
type Item struct {
	Feature      string
	Description  string
	Kind         requirement.Kind
	PriorityRank int
	MoSCoW       requirement.MoSCoW

	// SourceRequirementID is the logical requirement id, or REQ-<n> for batch records.
	SourceRequirementID string
	SourceVersionNumber int
	SourceInputID       string
	Notes               string
}

// Document is the input of Render.
type Document struct {
	ProjectID   string
	Title       string
	GeneratedAt time.Time
	Items       []Item
}

// Options tunes rendering.
type Options struct {
	// AllowEmpty renders a document without items instead of failing.
	AllowEmpty bool

	PDF PDFOptions
}

// Artifact is a rendered document.
type Artifact struct {
	ProjectID   string
	Format      Format
	GeneratedAt time.Time
	Bytes       []byte

	// Pages is set for paginated formats.
	Pages int
}

// Render produces the document in the requested format.
func Render(doc Document, format Format, opts Options) (*Artifact, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if len(doc.Items) == 0 && !opts.AllowEmpty {
		return nil, errors.NewEmptyInput(doc.ProjectID)
	}
	if doc.Title == "" {
		doc.Title = DefaultTitle
	}
	doc.GeneratedAt = doc.GeneratedAt.UTC()

	art := &Artifact{
		ProjectID:   doc.ProjectID,
		Format:      format,
		GeneratedAt: doc.GeneratedAt,
	}

	var err error
	switch format {
	case FormatDocx:
		art.Bytes, err = renderDocx(doc)
	case FormatPDF:
		art.Bytes, art.Pages, err = renderPDF(doc, opts.PDF)
	case FormatJiraJSON:
		art.Bytes, err = renderJira(doc)
	}
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("render %s: %w", format, err))
	}
	return art, nil
}

// ItemsFromRecords converts batch records into items in order. Records have
// no logical id, so each gets REQ-<position> and version 1.
func ItemsFromRecords(records []requirement.Record) []Item {
	items := make([]Item, 0, len(records))
	for i, r := range records {
		items = append(items, Item{
			Feature:             r.Feature,
			Description:         r.Description,
			Kind:                r.Kind,
			PriorityRank:        r.PriorityRank,
			MoSCoW:              r.MoSCoW,
			SourceRequirementID: fmt.Sprintf("REQ-%d", i+1),
			SourceVersionNumber: 1,
			Notes:               clarification(r.Question, r.Answer),
		})
	}
	return items
}

// VersionedRequirement is a logical requirement reduced to one version.
type VersionedRequirement struct {
	RequirementID string
	Version       requirement.Version
}

// ItemsFromVersions converts the chosen version of each requirement into items in order.
func ItemsFromVersions(reqs []VersionedRequirement) []Item {
	items := make([]Item, 0, len(reqs))
	for _, r := range reqs {
		v := r.Version
		it := Item{
			Feature:             v.Feature,
			Description:         deref(v.Description),
			Kind:                v.Kind,
			SourceRequirementID: r.RequirementID,
			SourceVersionNumber: v.Number,
			SourceInputID:       deref(v.SourceInputID),
			Notes:               deref(v.Notes),
		}
		if v.Priority != nil {
			it.PriorityRank = *v.Priority
		}
		if v.MoSCoW != nil {
			it.MoSCoW = *v.MoSCoW
		}
		items = append(items, it)
	}
	return items
}

func clarification(question, answer string) string {
	switch {
	case question != "" && answer != "":
		return "Q: " + question + " A: " + answer
	case question != "":
		return "Q: " + question
	case answer != "":
		return "A: " + answer
	default:
		return ""
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
