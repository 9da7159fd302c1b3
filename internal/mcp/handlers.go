package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/ops"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, env *ops.Env) *Handlers {
	if env == nil {
		env = &ops.Env{}
	}
	return &Handlers{db: db, cfg: cfg, env: env}
}

// Request types for each tool

// ProjectListRequest represents the arguments for project_list.
type ProjectListRequest struct {
	OwnerUserID string `json:"ownerUserId"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// RequirementCreateRequest represents the arguments for requirement_create.
type RequirementCreateRequest struct {
	ProjectID string `json:"projectId"`
	requirement.Draft
}

// RequirementAppendRequest represents the arguments for requirement_append.
type RequirementAppendRequest struct {
	RequirementID string `json:"requirementId"`
	requirement.Draft
}

// RequirementRef identifies one logical requirement.
type RequirementRef struct {
	RequirementID string `json:"requirementId"`
}

// ProjectRef identifies one project.
type ProjectRef struct {
	ProjectID string `json:"projectId"`
}

// RequirementListRequest represents the arguments for requirement_list.
type RequirementListRequest struct {
	ProjectID string `json:"projectId"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// BatchStoreRequest represents the arguments for batch_store.
type BatchStoreRequest struct {
	ProjectID    string                  `json:"projectId"`
	OwnerUserID  string                  `json:"ownerUserId"`
	Requirements []requirement.RawRecord `json:"requirements"`
	Policy       string                  `json:"policy,omitempty"`
}

// DocumentExportRequest represents the arguments for document_export.
type DocumentExportRequest struct {
	ProjectID        string `json:"projectId"`
	Format           string `json:"format"`
	RequestingUserID string `json:"requestingUserId,omitempty"`
	Source           string `json:"source,omitempty"`
}

// Handler implementations

// HandleProjectCreate handles the project_create tool call.
func (h *Handlers) HandleProjectCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ops.CreateProjectInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateProject(ctx, h.db, h.env, input)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProjectList handles the project_list tool call.
func (h *Handlers) HandleProjectList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListProjects(ctx, h.db, ops.ListProjectsInput{
		OwnerUserID: input.OwnerUserID,
		Limit:       input.Limit,
		Offset:      input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRequirementCreate handles the requirement_create tool call.
func (h *Handlers) HandleRequirementCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RequirementCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateRequirement(ctx, h.db, h.env, ops.CreateRequirementInput{
		ProjectID: input.ProjectID,
		Draft:     input.Draft,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRequirementAppend handles the requirement_append tool call.
func (h *Handlers) HandleRequirementAppend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RequirementAppendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AppendVersion(ctx, h.db, h.env, ops.AppendVersionInput{
		RequirementID: input.RequirementID,
		Draft:         input.Draft,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRequirementLatest handles the requirement_latest tool call.
func (h *Handlers) HandleRequirementLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RequirementRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetLatestVersion(ctx, h.db, input.RequirementID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRequirementList handles the requirement_list tool call.
func (h *Handlers) HandleRequirementList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RequirementListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListForProject(ctx, h.db, ops.ListInput{
		ProjectID: input.ProjectID,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRequirementVersions handles the requirement_versions tool call.
func (h *Handlers) HandleRequirementVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RequirementRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListVersions(ctx, h.db, input.RequirementID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBatchStore handles the batch_store tool call.
func (h *Handlers) HandleBatchStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BatchStoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Requirements == nil {
		return errorResult(errors.NewInvalidRequest("requirements is required")), nil
	}

	result, err := ops.StoreBatch(ctx, h.db, h.cfg, h.env, ops.StoreBatchInput{
		ProjectID:   input.ProjectID,
		OwnerUserID: input.OwnerUserID,
		Records:     input.Requirements,
		Policy:      input.Policy,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBatchGet handles the batch_get tool call.
func (h *Handlers) HandleBatchGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetBatch(ctx, h.db, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDocumentExport handles the document_export tool call.
func (h *Handlers) HandleDocumentExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DocumentExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, h.env, ops.ExportInput{
		ProjectID:        input.ProjectID,
		Format:           input.Format,
		RequestingUserID: input.RequestingUserID,
		Source:           input.Source,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExportList handles the export_list tool call.
func (h *Handlers) HandleExportList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRef](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListExports(h.env, input.ProjectID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal errors carry neither their message nor details.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if e, ok := errors.As(err); ok && e.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"status":  e.Status,
		}
		if e.Details != nil {
			errorObj["details"] = e.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
