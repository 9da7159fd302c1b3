package requirement

import (
	"regexp"
	"strings"
)

// projectIDPattern keeps project ids usable as a single directory name.
var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidProjectID reports whether id can key requirements, batches and
// history directories.
func ValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id) && !strings.Contains(id, "..")
}

// ValidateDraft checks a version draft and normalizes its enums in place.
func ValidateDraft(d *Draft) error {
	d.Feature = strings.TrimSpace(d.Feature)
	if d.Feature == "" {
		return &FieldError{Field: "feature", Reason: "is required"}
	}

	kind, err := ParseKind(string(d.Kind))
	if err != nil {
		return err
	}
	d.Kind = kind

	if d.MoSCoW != nil {
		m, err := ParseMoSCoW(string(*d.MoSCoW))
		if err != nil {
			return err
		}
		if m == "" {
			d.MoSCoW = nil
		} else {
			d.MoSCoW = &m
		}
	}

	if d.Priority != nil && !ValidPriority(*d.Priority) {
		return &FieldError{Field: "priority", Reason: "must be a number from 1 to 5"}
	}

	switch d.Status {
	case "":
		d.Status = StatusDraft
	case StatusDraft, StatusApproved, StatusDeprecated:
	default:
		return &FieldError{Field: "status", Reason: "must be draft, approved or deprecated"}
	}

	return nil
}
