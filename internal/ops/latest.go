package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/render"
)

// GetLatestVersion returns the version whose number equals the requirement's
// latest version number.
//
// Errors: NotFoundError when the requirement does not exist,
// EmptyHistoryError when it exists without any version.
func GetLatestVersion(ctx context.Context, database *sql.DB, requirementID string) (*VersionOutput, error) {
	id := strings.TrimSpace(requirementID)
	if id == "" {
		return nil, errors.NewInvalidRequest("requirement id is required")
	}

	exists, err := db.RequirementExists(ctx, database, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewNotFound("requirement", id)
	}

	v, err := db.GetLatestVersion(ctx, database, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewEmptyHistory(id)
	}
	if err != nil {
		return nil, err
	}
	return &VersionOutput{RequirementID: id, Version: *v}, nil
}

// LatestRequirementsOutput contains the result of LatestRequirementsForProject.
type LatestRequirementsOutput struct {
	ProjectID string          `json:"projectId"`
	Items     []VersionOutput `json:"items"`
}

// LatestRequirementsForProject returns the latest version of every
// requirement in a project, ordered by requirement id. Requirements without
// versions are left out.
func LatestRequirementsForProject(ctx context.Context, database *sql.DB, projectID string) (*LatestRequirementsOutput, error) {
	projectID, err := validProject(projectID)
	if err != nil {
		return nil, err
	}

	latest, err := db.LatestVersionsByProject(ctx, database, projectID)
	if err != nil {
		return nil, err
	}

	out := &LatestRequirementsOutput{ProjectID: projectID, Items: make([]VersionOutput, 0, len(latest))}
	for _, l := range latest {
		out.Items = append(out.Items, VersionOutput{RequirementID: l.RequirementID, Version: l.Version})
	}
	return out, nil
}

func versionedItems(out *LatestRequirementsOutput) []render.Item {
	reqs := make([]render.VersionedRequirement, 0, len(out.Items))
	for _, it := range out.Items {
		reqs = append(reqs, render.VersionedRequirement{RequirementID: it.RequirementID, Version: it.Version})
	}
	return render.ItemsFromVersions(reqs)
}
