package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/extract"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// ExtractInput contains parameters for the Extract operation.
type ExtractInput struct {
	ProjectID string
	UserID    string
	Files     []string
	Prompt    string
}

// Extract runs the extraction collaborator and stores its records as the
// project's batch under the configured policy.
//
// Errors: ExtractionFailedError when the collaborator is missing, fails, or
// returns records that do not validate.
func Extract(ctx context.Context, database *sql.DB, cfg *config.Config, env *Env, input ExtractInput) (*requirement.Batch, error) {
	projectID, err := validProject(input.ProjectID)
	if err != nil {
		return nil, err
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.NewValidation("userId is required")
	}
	if err := validFiles(input.Files); err != nil {
		return nil, err
	}
	if env == nil || env.Extractor == nil {
		return nil, errors.NewExtractionFailed("extractor not configured", nil)
	}

	raw, err := env.Extractor.Run(ctx, extract.Request{
		ProjectID: projectID,
		UserID:    userID,
		Files:     input.Files,
		Prompt:    input.Prompt,
	})
	if err != nil {
		env.metrics().RecordExtraction("failed")
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewExtractionFailed("extraction process failed", err)
	}

	// Bad records here are the collaborator's fault, not the caller's.
	if _, err := NormalizeRecords(raw); err != nil {
		env.metrics().RecordExtraction("failed")
		env.log().Error("extractor returned invalid records", "project_id", projectID, "error", err)
		return nil, errors.NewExtractionFailed(fmt.Sprintf("extraction output failed validation: %s", validationMessage(err)), err)
	}

	b, err := StoreBatch(ctx, database, cfg, env, StoreBatchInput{
		ProjectID:   projectID,
		OwnerUserID: userID,
		Records:     raw,
	})
	if err != nil {
		env.metrics().RecordExtraction("failed")
		return nil, err
	}
	env.metrics().RecordExtraction("ok")
	return b, nil
}

// validFiles rejects file arguments the extractor could read as flags.
func validFiles(files []string) error {
	for i, f := range files {
		if strings.TrimSpace(f) == "" {
			return errors.NewValidation(fmt.Sprintf("files[%d] is empty", i))
		}
		if strings.HasPrefix(f, "-") {
			return errors.NewValidation(fmt.Sprintf("files[%d] must not start with '-'", i))
		}
	}
	return nil
}

func validationMessage(err error) string {
	if e, ok := errors.As(err); ok {
		return e.Message
	}
	return err.Error()
}
