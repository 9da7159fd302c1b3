package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// AppendVersionInput contains parameters for the AppendVersion operation.
// There is no version number: it is always derived.
type AppendVersionInput struct {
	RequirementID string
	Draft         requirement.Draft
}

// VersionOutput is one version of a logical requirement.
type VersionOutput struct {
	RequirementID string              `json:"requirementId"`
	Version       requirement.Version `json:"version"`
}

// AppendVersion adds a version numbered one above the current maximum.
//
// Appends to the same requirement are serialized twice over: by an in-process
// keyed lock, and by a BEGIN IMMEDIATE transaction that holds the database
// write lock between reading the maximum and inserting. The composite primary
// key (requirement_id, version_number) rejects anything that slips past both.
func AppendVersion(ctx context.Context, database *sql.DB, env *Env, input AppendVersionInput) (*VersionOutput, error) {
	id := strings.TrimSpace(input.RequirementID)
	if id == "" {
		return nil, errors.NewInvalidRequest("requirement id is required")
	}

	draft := input.Draft
	draft.AuthorID = cleanOptionalString(draft.AuthorID)
	if err := requirement.ValidateDraft(&draft); err != nil {
		return nil, asError(err)
	}

	release, err := env.appendLocks().Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	var v requirement.Version
	err = db.WithImmediateTx(ctx, database, func(q db.Querier) error {
		exists, err := db.RequirementExists(ctx, q, id)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NewNotFound("requirement", id)
		}

		latest, err := db.MaxVersionNumber(ctx, q, id)
		if err != nil {
			return err
		}
		v = draft.ToVersion(latest+1, env.now().Unix())
		return db.InsertVersion(ctx, q, id, v)
	})
	if err != nil {
		return nil, asError(err)
	}

	env.metrics().RecordVersionAppend()
	env.log().Debug("version appended", "requirement_id", id, "version", v.Number)

	return &VersionOutput{RequirementID: id, Version: v}, nil
}
