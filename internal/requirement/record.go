package requirement

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one flat requirement of a batch, as produced by extraction.
// PriorityRank is 0 when the record carries no priority.
type Record struct {
	Feature      string `json:"feature"`
	Description  string `json:"description,omitempty"`
	Kind         Kind   `json:"type"`
	PriorityRank int    `json:"priority,omitempty"`
	MoSCoW       MoSCoW `json:"moscow"`
	Question     string `json:"question,omitempty"`
	Answer       string `json:"answer,omitempty"`
}

// Batch is the set of flat records stored for a project.
type Batch struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"projectId"`
	OwnerUserID string   `json:"ownerUserId"`
	Records     []Record `json:"requirements"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

// RawRecord is the loose wire shape accepted from the extraction process and
// from API callers. Priority may be a JSON number or a numeric string.
type RawRecord struct {
	Feature     string          `json:"feature"`
	Description string          `json:"description,omitempty"`
	Priority    json.RawMessage `json:"priority,omitempty"`
	Type        string          `json:"type"`
	MoSCoW      string          `json:"moscow"`
	Question    string          `json:"question,omitempty"`
	Answer      string          `json:"answer,omitempty"`
}

// FieldError reports which field of a raw record is invalid.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Reason
}

// Normalize converts a raw record into a Record. feature, type and moscow
// are required; priority, when present, must be an integer from 1 to 5.
func Normalize(raw RawRecord) (Record, error) {
	rec := Record{
		Feature:     strings.TrimSpace(raw.Feature),
		Description: strings.TrimSpace(raw.Description),
		Question:    strings.TrimSpace(raw.Question),
		Answer:      strings.TrimSpace(raw.Answer),
	}
	if rec.Feature == "" {
		return Record{}, &FieldError{Field: "feature", Reason: "is required"}
	}

	kind, err := ParseKind(raw.Type)
	if err != nil {
		return Record{}, err
	}
	if kind == "" {
		return Record{}, &FieldError{Field: "type", Reason: "is required"}
	}
	rec.Kind = kind

	m, err := ParseMoSCoW(raw.MoSCoW)
	if err != nil {
		return Record{}, err
	}
	if m == "" {
		return Record{}, &FieldError{Field: "moscow", Reason: "is required"}
	}
	rec.MoSCoW = m

	rank, err := parsePriority(raw.Priority)
	if err != nil {
		return Record{}, err
	}
	rec.PriorityRank = rank

	return rec, nil
}

// ParseKind accepts F/NF in any case. Empty input yields an empty kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "F", "FUNCTIONAL":
		return KindFunctional, nil
	case "NF", "NONFUNCTIONAL", "NON-FUNCTIONAL":
		return KindNonFunctional, nil
	default:
		return "", &FieldError{Field: "type", Reason: "must be F or NF"}
	}
}

// ParseMoSCoW accepts M/S/C/W in any case. Empty input yields an empty bucket.
func ParseMoSCoW(s string) (MoSCoW, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "M":
		return MustHave, nil
	case "S":
		return ShouldHave, nil
	case "C":
		return CouldHave, nil
	case "W":
		return WontHave, nil
	default:
		return "", &FieldError{Field: "moscow", Reason: "must be one of M, S, C, W"}
	}
}

// ValidPriority reports whether rank is within 1..5.
func ValidPriority(rank int) bool {
	return rank >= 1 && rank <= 5
}

func parsePriority(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, &FieldError{Field: "priority", Reason: "must be a number from 1 to 5"}
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, nil
		}
	} else {
		text = string(raw)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int(f)) || !ValidPriority(int(f)) {
		return 0, &FieldError{Field: "priority", Reason: "must be a number from 1 to 5"}
	}
	return int(f), nil
}
