package render

import (
	"bytes"
	"encoding/json"
)

// jiraIssue is one entry of the Jira import file. Field order is the
// serialization order.
type jiraIssue struct {
	Summary             string `json:"summary"`
	Description         string `json:"description"`
	IssueType           string `json:"issueType"`
	Priority            string `json:"priority"`
	MoSCoW              string `json:"moscow"`
	SourceRequirementID string `json:"sourceRequirementId"`
	SourceVersionNumber int    `json:"sourceVersionNumber"`
	SourceInputID       string `json:"sourceInputId"`
	Notes               string `json:"notes"`
	Status              string `json:"status"`
}

func renderJira(doc Document) ([]byte, error) {
	issues := make([]jiraIssue, 0, len(doc.Items))
	for _, it := range doc.Items {
		issues = append(issues, jiraIssue{
			Summary:             it.Feature,
			Description:         it.Description,
			IssueType:           it.Kind.IssueType(),
			Priority:            priorityLabel(it.PriorityRank),
			MoSCoW:              orDash(string(it.MoSCoW)),
			SourceRequirementID: it.SourceRequirementID,
			SourceVersionNumber: it.SourceVersionNumber,
			SourceInputID:       orNA(it.SourceInputID),
			Notes:               orNA(it.Notes),
			Status:              "To Do",
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(issues); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
