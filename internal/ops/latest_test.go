package ops

import (
	"testing"

	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

func TestGetLatestVersion_NotFoundVersusEmptyHistory(t *testing.T) {
	ctx := t.Context()
	database, _ := setupDB(t)

	_, err := GetLatestVersion(ctx, database, "missing")
	assertCode(t, err, errors.ErrNotFound)

	// A requirement row without versions can only come from outside the
	// operations layer, e.g. a partially restored database.
	bare := &requirement.Requirement{ID: "01HBARE", ProjectID: "p1", CreatedAt: 1, UpdatedAt: 1}
	if err := db.InsertRequirement(ctx, database, bare); err != nil {
		t.Fatalf("InsertRequirement failed: %v", err)
	}
	_, err = GetLatestVersion(ctx, database, bare.ID)
	assertCode(t, err, errors.ErrEmptyHistory)

	_, err = GetLatestVersion(ctx, database, "  ")
	assertCode(t, err, errors.ErrInvalidRequest)
}

func TestLatestRequirementsForProject(t *testing.T) {
	ctx := t.Context()
	database, _ := setupDB(t)
	env := testEnv()

	a, err := CreateRequirement(ctx, database, env, CreateRequirementInput{
		ProjectID: "p1", Draft: requirement.Draft{Feature: "A v1"},
	})
	if err != nil {
		t.Fatalf("CreateRequirement failed: %v", err)
	}
	if _, err := AppendVersion(ctx, database, env, AppendVersionInput{
		RequirementID: a.ID, Draft: requirement.Draft{Feature: "A v2", Status: requirement.StatusApproved},
	}); err != nil {
		t.Fatalf("AppendVersion failed: %v", err)
	}
	if _, err := CreateRequirement(ctx, database, env, CreateRequirementInput{
		ProjectID: "p1", Draft: requirement.Draft{Feature: "B v1"},
	}); err != nil {
		t.Fatalf("CreateRequirement failed: %v", err)
	}
	if _, err := CreateRequirement(ctx, database, env, CreateRequirementInput{
		ProjectID: "other", Draft: requirement.Draft{Feature: "C v1"},
	}); err != nil {
		t.Fatalf("CreateRequirement failed: %v", err)
	}

	out, err := LatestRequirementsForProject(ctx, database, "p1")
	if err != nil {
		t.Fatalf("LatestRequirementsForProject failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}

	byFeature := map[string]VersionOutput{}
	for _, it := range out.Items {
		byFeature[it.Version.Feature] = it
	}
	if got, ok := byFeature["A v2"]; !ok || got.Version.Number != 2 || got.RequirementID != a.ID {
		t.Errorf("A latest = %+v, want version 2 of %s", got, a.ID)
	}
	if _, ok := byFeature["B v1"]; !ok {
		t.Error("B v1 missing")
	}

	items := versionedItems(out)
	if len(items) != 2 || items[0].SourceRequirementID != out.Items[0].RequirementID {
		t.Errorf("versionedItems = %+v", items)
	}
}
