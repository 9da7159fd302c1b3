package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrUniqueConstraint is returned when an insert violates a UNIQUE or PRIMARY KEY constraint.
var ErrUniqueConstraint = &errors.Error{
	Code:    errors.ErrConflict,
	Status:  409,
	Message: "unique constraint violation",
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports primary key violations as "UNIQUE constraint failed" too.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// InsertProject stores a new project.
func InsertProject(ctx context.Context, q Querier, p *requirement.Project) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, owner_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.OwnerUserID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetProject retrieves a project by id.
func GetProject(ctx context.Context, q Querier, id string) (*requirement.Project, error) {
	var p requirement.Project
	err := q.QueryRowContext(ctx, `
		SELECT id, name, description, owner_user_id, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.OwnerUserID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("project", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &p, nil
}

// ListProjectsByOwner returns the projects of one owner, newest first, and the total count.
func ListProjectsByOwner(ctx context.Context, q Querier, ownerUserID string, limit, offset int) ([]requirement.Project, int, error) {
	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_user_id = ?`, ownerUserID,
	).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, description, owner_user_id, created_at, updated_at
		FROM projects
		WHERE owner_user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, ownerUserID, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	projects := []requirement.Project{}
	for rows.Next() {
		var p requirement.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerUserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return projects, total, nil
}

// ---------------------------------------------------------------------------
// Requirements and versions
// ---------------------------------------------------------------------------

const versionColumns = `
	version_number, author_id, created_at, feature, description,
	kind, priority, moscow, notes, status, source_input_id`

// InsertRequirement stores a logical requirement row. Versions are inserted
// separately with InsertVersion.
func InsertRequirement(ctx context.Context, q Querier, r *requirement.Requirement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO requirements (id, project_id, latest_version_number, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
	`, r.ID, r.ProjectID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// InsertVersion appends one version row and refreshes the listing helper
// column latest_version_number. Call inside a transaction.
func InsertVersion(ctx context.Context, q Querier, requirementID string, v requirement.Version) error {
	var moscow sql.NullString
	if v.MoSCoW != nil {
		moscow = sql.NullString{String: string(*v.MoSCoW), Valid: true}
	}
	var kind sql.NullString
	if v.Kind != "" {
		kind = sql.NullString{String: string(v.Kind), Valid: true}
	}
	var priority sql.NullInt64
	if v.Priority != nil {
		priority = sql.NullInt64{Int64: int64(*v.Priority), Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO requirement_versions (
			requirement_id, version_number, author_id, created_at, feature, description,
			kind, priority, moscow, notes, status, source_input_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		requirementID, v.Number, toNullString(v.AuthorID), v.CreatedAt, v.Feature, toNullString(v.Description),
		kind, priority, moscow, toNullString(v.Notes), string(v.Status), toNullString(v.SourceInputID),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE requirements
		SET latest_version_number = (
			SELECT MAX(version_number) FROM requirement_versions WHERE requirement_id = ?
		), updated_at = ?
		WHERE id = ?
	`, requirementID, v.CreatedAt, requirementID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RequirementExists reports whether a logical requirement row exists.
func RequirementExists(ctx context.Context, q Querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM requirements WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// MaxVersionNumber returns the highest stored version number of a requirement, or 0.
func MaxVersionNumber(ctx context.Context, q Querier, requirementID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_number), 0) FROM requirement_versions WHERE requirement_id = ?
	`, requirementID).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// GetRequirement loads a logical requirement with its full history.
func GetRequirement(ctx context.Context, q Querier, id string) (*requirement.Requirement, error) {
	var r requirement.Requirement
	err := q.QueryRowContext(ctx, `
		SELECT id, project_id, created_at, updated_at FROM requirements WHERE id = ?
	`, id).Scan(&r.ID, &r.ProjectID, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("requirement", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	versions, err := ListVersions(ctx, q, id)
	if err != nil {
		return nil, err
	}
	r.Versions = versions
	return &r, nil
}

// ListVersions returns the versions of a requirement in insertion order.
func ListVersions(ctx context.Context, q Querier, requirementID string) ([]requirement.Version, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT`+versionColumns+`
		FROM requirement_versions
		WHERE requirement_id = ?
		ORDER BY rowid
	`, requirementID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	versions := []requirement.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return versions, nil
}

// ListRequirementsByProject returns one page of a project's requirements,
// ordered by id, each with its full history, and the total count.
func ListRequirementsByProject(ctx context.Context, q Querier, projectID string, limit, offset int) ([]requirement.Requirement, int, error) {
	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requirements WHERE project_id = ?`, projectID,
	).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, project_id, created_at, updated_at
		FROM requirements
		WHERE project_id = ?
		ORDER BY id
		LIMIT ? OFFSET ?
	`, projectID, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	reqs := []requirement.Requirement{}
	for rows.Next() {
		var r requirement.Requirement
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			rows.Close()
			return nil, 0, errors.NewInternal(err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, errors.NewInternal(err)
	}
	// Close before issuing more queries: a *sql.Conn runs one statement at a time.
	rows.Close()

	for i := range reqs {
		versions, err := ListVersions(ctx, q, reqs[i].ID)
		if err != nil {
			return nil, 0, err
		}
		reqs[i].Versions = versions
	}
	return reqs, total, nil
}

// LatestVersion pairs a requirement id with its highest-numbered version.
type LatestVersion struct {
	RequirementID string
	Version       requirement.Version
}

// LatestVersionsByProject returns the latest version of every requirement of
// a project, ordered by requirement id, using the latest_version_number
// column kept by InsertVersion. Requirements without versions are skipped.
func LatestVersionsByProject(ctx context.Context, q Querier, projectID string) ([]LatestVersion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT v.requirement_id,`+prefixed("v", versionColumns)+`
		FROM requirements r
		JOIN requirement_versions v
			ON v.requirement_id = r.id AND v.version_number = r.latest_version_number
		WHERE r.project_id = ? AND r.latest_version_number > 0
		ORDER BY r.id
	`, projectID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []LatestVersion{}
	for rows.Next() {
		var id string
		v, err := scanVersion(rows, &id)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, LatestVersion{RequirementID: id, Version: *v})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// GetLatestVersion returns the highest-numbered version of a requirement.
// Returns sql.ErrNoRows (unwrapped) when the requirement has no versions.
func GetLatestVersion(ctx context.Context, q Querier, requirementID string) (*requirement.Version, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT`+versionColumns+`
		FROM requirement_versions
		WHERE requirement_id = ?
		ORDER BY version_number DESC
		LIMIT 1
	`, requirementID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		return nil, sql.ErrNoRows
	}
	v, err := scanVersion(rows)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return v, nil
}

// scanVersion scans the versionColumns of the current row. lead receives any
// columns selected before them.
func scanVersion(rows *sql.Rows, lead ...any) (*requirement.Version, error) {
	var (
		v        requirement.Version
		authorID sql.NullString
		desc     sql.NullString
		kind     sql.NullString
		priority sql.NullInt64
		moscow   sql.NullString
		notes    sql.NullString
		status   string
		sourceID sql.NullString
	)

	dest := append(lead,
		&v.Number, &authorID, &v.CreatedAt, &v.Feature, &desc,
		&kind, &priority, &moscow, &notes, &status, &sourceID,
	)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	v.AuthorID = fromNullString(authorID)
	v.Description = fromNullString(desc)
	v.Notes = fromNullString(notes)
	v.SourceInputID = fromNullString(sourceID)
	v.Status = requirement.Status(status)
	if kind.Valid {
		v.Kind = requirement.Kind(kind.String)
	}
	if priority.Valid {
		p := int(priority.Int64)
		v.Priority = &p
	}
	if moscow.Valid {
		m := requirement.MoSCoW(moscow.String)
		v.MoSCoW = &m
	}
	return &v, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = " " + alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}

// ---------------------------------------------------------------------------
// Batches
// ---------------------------------------------------------------------------

// UpsertBatch writes the project's batch, replacing records and owner when one
// already exists. The batch id and created_at of an existing row are kept.
func UpsertBatch(ctx context.Context, q Querier, b *requirement.Batch) error {
	data, err := json.Marshal(b.Records)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO batches (project_id, id, owner_user_id, records_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			owner_user_id = excluded.owner_user_id,
			records_json  = excluded.records_json,
			updated_at    = excluded.updated_at
	`, b.ProjectID, b.ID, b.OwnerUserID, string(data), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetBatch retrieves the batch of a project.
func GetBatch(ctx context.Context, q Querier, projectID string) (*requirement.Batch, error) {
	var (
		b    requirement.Batch
		data string
	)
	err := q.QueryRowContext(ctx, `
		SELECT project_id, id, owner_user_id, records_json, created_at, updated_at
		FROM batches WHERE project_id = ?
	`, projectID).Scan(&b.ProjectID, &b.ID, &b.OwnerUserID, &data, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("batch", projectID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	b.Records = []requirement.Record{}
	if err := json.Unmarshal([]byte(data), &b.Records); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &b, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
