package ops

import (
	"context"
	"database/sql"

	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// RequirementView is a logical requirement as returned to callers.
type RequirementView struct {
	ID                  string                `json:"id"`
	ProjectID           string                `json:"projectId"`
	LatestVersionNumber int                   `json:"latestVersionNumber"`
	Versions            []requirement.Version `json:"versions"`
	CreatedAt           int64                 `json:"createdAt"`
	UpdatedAt           int64                 `json:"updatedAt"`
}

func viewRequirement(r *requirement.Requirement) RequirementView {
	versions := r.Versions
	if versions == nil {
		versions = []requirement.Version{}
	}
	return RequirementView{
		ID:                  r.ID,
		ProjectID:           r.ProjectID,
		LatestVersionNumber: r.LatestVersionNumber(),
		Versions:            versions,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// CreateRequirementInput contains parameters for the CreateRequirement operation.
type CreateRequirementInput struct {
	ProjectID string
	Draft     requirement.Draft
}

// CreateRequirement creates a logical requirement whose history starts with
// the draft as version 1.
func CreateRequirement(ctx context.Context, database *sql.DB, env *Env, input CreateRequirementInput) (*RequirementView, error) {
	projectID, err := validProject(input.ProjectID)
	if err != nil {
		return nil, err
	}

	draft := input.Draft
	draft.AuthorID = cleanOptionalString(draft.AuthorID)
	if err := requirement.ValidateDraft(&draft); err != nil {
		return nil, asError(err)
	}

	now := env.now()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	r := &requirement.Requirement{
		ID:        id,
		ProjectID: projectID,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}
	first := draft.ToVersion(1, now.Unix())

	err = db.WithImmediateTx(ctx, database, func(q db.Querier) error {
		if err := db.InsertRequirement(ctx, q, r); err != nil {
			return err
		}
		return db.InsertVersion(ctx, q, r.ID, first)
	})
	if err != nil {
		return nil, asError(err)
	}

	r.Versions = []requirement.Version{first}
	env.metrics().RecordVersionAppend()
	env.log().Info("requirement created", "project_id", projectID, "requirement_id", r.ID)

	view := viewRequirement(r)
	return &view, nil
}
