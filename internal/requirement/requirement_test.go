package requirement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestVersion_AnyStorageOrder(t *testing.T) {
	orders := [][]int{
		{1, 2, 3}, {1, 3, 2}, {2, 1, 3}, {2, 3, 1}, {3, 1, 2}, {3, 2, 1},
	}
	for _, order := range orders {
		versions := make([]Version, 0, len(order))
		for _, n := range order {
			versions = append(versions, Version{Number: n, Feature: "f"})
		}
		r := &Requirement{ID: "r1", ProjectID: "p1", Versions: versions}

		assert.Equal(t, 3, r.LatestVersionNumber(), "order %v", order)
		latest, ok := r.Latest()
		require.True(t, ok)
		assert.Equal(t, 3, latest.Number, "order %v", order)
	}
}

func TestLatestVersion_Empty(t *testing.T) {
	r := &Requirement{ID: "r1", ProjectID: "p1"}
	assert.Equal(t, 0, r.LatestVersionNumber())
	_, ok := r.Latest()
	assert.False(t, ok)
}

func TestDraftToVersion_DefaultsStatus(t *testing.T) {
	v := Draft{Feature: "Login"}.ToVersion(1, 100)
	assert.Equal(t, 1, v.Number)
	assert.Equal(t, int64(100), v.CreatedAt)
	assert.Equal(t, StatusDraft, v.Status)
}

func TestKindIssueType(t *testing.T) {
	assert.Equal(t, "Story", KindFunctional.IssueType())
	assert.Equal(t, "Task", KindNonFunctional.IssueType())
}

func TestMoSCoWLabel(t *testing.T) {
	assert.Equal(t, "Must", MustHave.Label())
	assert.Equal(t, "Won't", WontHave.Label())
	assert.Equal(t, "-", MoSCoW("").Label())
}

func rawFromJSON(t *testing.T, s string) RawRecord {
	t.Helper()
	var raw RawRecord
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestNormalize_PriorityUnion(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int
	}{
		{"number", `{"feature":"a","type":"F","moscow":"M","priority":3}`, 3},
		{"string", `{"feature":"a","type":"F","moscow":"M","priority":"4"}`, 4},
		{"padded string", `{"feature":"a","type":"F","moscow":"M","priority":" 2 "}`, 2},
		{"float integral", `{"feature":"a","type":"F","moscow":"M","priority":5.0}`, 5},
		{"missing", `{"feature":"a","type":"F","moscow":"M"}`, 0},
		{"null", `{"feature":"a","type":"F","moscow":"M","priority":null}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize(rawFromJSON(t, tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.PriorityRank)
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"missing feature", `{"feature":"  ","type":"F","moscow":"M"}`, "feature"},
		{"missing type", `{"feature":"a","moscow":"M"}`, "type"},
		{"bad type", `{"feature":"a","type":"X","moscow":"M"}`, "type"},
		{"missing moscow", `{"feature":"a","type":"F"}`, "moscow"},
		{"bad moscow", `{"feature":"a","type":"F","moscow":"Z"}`, "moscow"},
		{"priority too high", `{"feature":"a","type":"F","moscow":"M","priority":6}`, "priority"},
		{"priority zero", `{"feature":"a","type":"F","moscow":"M","priority":0}`, "priority"},
		{"priority fraction", `{"feature":"a","type":"F","moscow":"M","priority":2.5}`, "priority"},
		{"priority text", `{"feature":"a","type":"F","moscow":"M","priority":"high"}`, "priority"},
		{"priority bool", `{"feature":"a","type":"F","moscow":"M","priority":true}`, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(rawFromJSON(t, tt.json))
			require.Error(t, err)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestNormalize_CaseInsensitiveEnums(t *testing.T) {
	rec, err := Normalize(RawRecord{Feature: " Export ", Type: "nf", MoSCoW: "s"})
	require.NoError(t, err)
	assert.Equal(t, "Export", rec.Feature)
	assert.Equal(t, KindNonFunctional, rec.Kind)
	assert.Equal(t, ShouldHave, rec.MoSCoW)
}

func TestValidProjectID(t *testing.T) {
	valid := []string{"p1", "01HZX3", "proj-a_b.c"}
	invalid := []string{"", ".", "..", "../etc", "a/b", "a..b", "-lead", " p1", string(make([]byte, 200))}
	for _, id := range valid {
		assert.True(t, ValidProjectID(id), id)
	}
	for _, id := range invalid {
		assert.False(t, ValidProjectID(id), id)
	}
}

func TestValidateDraft(t *testing.T) {
	m := MoSCoW("c")
	p := 2
	d := Draft{Feature: " Search ", Kind: "f", MoSCoW: &m, Priority: &p}
	require.NoError(t, ValidateDraft(&d))
	assert.Equal(t, "Search", d.Feature)
	assert.Equal(t, KindFunctional, d.Kind)
	assert.Equal(t, CouldHave, *d.MoSCoW)
	assert.Equal(t, StatusDraft, d.Status)

	bad := 9
	assert.Error(t, ValidateDraft(&Draft{Feature: "x", Priority: &bad}))
	assert.Error(t, ValidateDraft(&Draft{Feature: ""}))
	assert.Error(t, ValidateDraft(&Draft{Feature: "x", Status: "archived"}))
}
