package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// CreateProjectInput contains parameters for the CreateProject operation.
type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerUserID string `json:"ownerUserId"`
}

// CreateProject registers a project for an owner.
func CreateProject(ctx context.Context, database *sql.DB, env *Env, input CreateProjectInput) (*requirement.Project, error) {
	name := strings.TrimSpace(input.Name)
	desc := strings.TrimSpace(input.Description)
	owner := strings.TrimSpace(input.OwnerUserID)
	switch {
	case name == "":
		return nil, errors.NewValidation("name is required")
	case desc == "":
		return nil, errors.NewValidation("description is required")
	case owner == "":
		return nil, errors.NewValidation("ownerUserId is required")
	}

	now := env.now()
	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	p := &requirement.Project{
		ID:          id,
		Name:        name,
		Description: desc,
		OwnerUserID: owner,
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
	}
	if err := db.InsertProject(ctx, database, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjectsInput contains parameters for the ListProjects operation.
type ListProjectsInput struct {
	OwnerUserID string
	Limit       int // default: 20, max: 100
	Offset      int
}

// ListProjectsOutput contains the result of the ListProjects operation.
type ListProjectsOutput struct {
	Items      []requirement.Project `json:"items"`
	Pagination Pagination            `json:"pagination"`
}

// ListProjects returns the projects of one owner, newest first.
func ListProjects(ctx context.Context, database *sql.DB, input ListProjectsInput) (*ListProjectsOutput, error) {
	owner := strings.TrimSpace(input.OwnerUserID)
	if owner == "" {
		return nil, errors.NewInvalidRequest("owner is required")
	}
	limit, offset := clampPage(input.Limit, input.Offset)

	projects, total, err := db.ListProjectsByOwner(ctx, database, owner, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListProjectsOutput{
		Items: projects,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(projects) < total,
			Total:   total,
		},
	}, nil
}
