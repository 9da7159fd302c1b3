package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// ListInput contains parameters for the ListForProject operation.
type ListInput struct {
	ProjectID string
	Limit     int // default: 20, max: 100
	Offset    int // default: 0
}

// ListOutput contains the result of the ListForProject operation.
type ListOutput struct {
	Items      []RequirementView `json:"items"`
	Pagination Pagination        `json:"pagination"`
	Sort       string            `json:"sort"`
}

// ListForProject returns one page of a project's logical requirements with
// their full histories. Requirements are selected by project id only.
func ListForProject(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	projectID, err := validProject(input.ProjectID)
	if err != nil {
		return nil, err
	}
	limit, offset := clampPage(input.Limit, input.Offset)

	reqs, total, err := db.ListRequirementsByProject(ctx, database, projectID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]RequirementView, 0, len(reqs))
	for i := range reqs {
		items = append(items, viewRequirement(&reqs[i]))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "id_asc",
	}, nil
}

// ListVersionsOutput contains the result of the ListVersions operation.
type ListVersionsOutput struct {
	RequirementID string                `json:"requirementId"`
	Versions      []requirement.Version `json:"versions"`
}

// ListVersions returns a requirement's history in insertion order.
func ListVersions(ctx context.Context, database *sql.DB, requirementID string) (*ListVersionsOutput, error) {
	id := strings.TrimSpace(requirementID)
	if id == "" {
		return nil, errors.NewInvalidRequest("requirement id is required")
	}

	r, err := db.GetRequirement(ctx, database, id)
	if err != nil {
		return nil, err
	}
	return &ListVersionsOutput{RequirementID: r.ID, Versions: r.Versions}, nil
}
