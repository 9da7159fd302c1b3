package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// StoreBatchInput contains parameters for the StoreBatch operation.
type StoreBatchInput struct {
	ProjectID   string
	OwnerUserID string
	Records     []requirement.RawRecord

	// Policy overrides the configured batch_policy when set.
	Policy string
}

// NormalizeRecords validates raw records in order. The first invalid record
// is reported with its index.
func NormalizeRecords(raw []requirement.RawRecord) ([]requirement.Record, error) {
	records := make([]requirement.Record, 0, len(raw))
	for i, r := range raw {
		rec, err := requirement.Normalize(r)
		if err != nil {
			return nil, errors.NewRecordValidation(i, err.Error())
		}
		records = append(records, rec)
	}
	return records, nil
}

// StoreBatch validates records at the boundary and persists them as the
// project's batch. With policy "replace" the records replace the current
// batch; with "append" they are added after the existing records.
func StoreBatch(ctx context.Context, database *sql.DB, cfg *config.Config, env *Env, input StoreBatchInput) (*requirement.Batch, error) {
	projectID, err := validProject(input.ProjectID)
	if err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(input.OwnerUserID)
	if owner == "" {
		return nil, errors.NewValidation("ownerUserId is required")
	}

	policy := input.Policy
	if policy == "" {
		policy = cfg.BatchPolicy
	}
	if policy == "" {
		policy = config.BatchPolicyReplace
	}
	if policy != config.BatchPolicyReplace && policy != config.BatchPolicyAppend {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("policy must be one of: %s, %s", config.BatchPolicyReplace, config.BatchPolicyAppend))
	}

	records, err := NormalizeRecords(input.Records)
	if err != nil {
		return nil, err
	}

	now := env.now()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var stored *requirement.Batch
	err = db.WithImmediateTx(ctx, database, func(q db.Querier) error {
		if policy == config.BatchPolicyAppend {
			existing, err := db.GetBatch(ctx, q, projectID)
			switch {
			case errors.Is(err, errors.ErrNotFound):
			case err != nil:
				return err
			default:
				records = append(existing.Records, records...)
			}
		}

		b := &requirement.Batch{
			ID:          id,
			ProjectID:   projectID,
			OwnerUserID: owner,
			Records:     records,
			CreatedAt:   now.Unix(),
			UpdatedAt:   now.Unix(),
		}
		if err := db.UpsertBatch(ctx, q, b); err != nil {
			return err
		}

		var err error
		stored, err = db.GetBatch(ctx, q, projectID)
		return err
	})
	if err != nil {
		return nil, asError(err)
	}

	env.metrics().RecordBatch(policy)
	env.log().Info("batch stored", "project_id", projectID, "policy", policy, "records", len(stored.Records))
	return stored, nil
}

// GetBatch returns the project's batch.
//
// Errors: NotFoundError when the project has no batch.
func GetBatch(ctx context.Context, database *sql.DB, projectID string) (*requirement.Batch, error) {
	projectID, err := validProject(projectID)
	if err != nil {
		return nil, err
	}
	return db.GetBatch(ctx, database, projectID)
}
