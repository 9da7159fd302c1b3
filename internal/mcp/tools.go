package mcp

import "github.com/mark3labs/mcp-go/mcp"

var recordItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"feature":     map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"priority":    map[string]any{"type": []string{"integer", "string"}},
		"type":        map[string]any{"type": "string", "enum": []string{"F", "NF"}},
		"moscow":      map[string]any{"type": "string", "enum": []string{"M", "S", "C", "W"}},
		"question":    map[string]any{"type": "string"},
		"answer":      map[string]any{"type": "string"},
	},
	"required": []string{"feature", "type", "moscow"},
}

func draftOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("feature", mcp.Required(), mcp.Description("Short feature title")),
		mcp.WithString("description", mcp.Description("Longer description")),
		mcp.WithString("type", mcp.Enum("F", "NF"), mcp.Description("F (functional) or NF (non-functional)")),
		mcp.WithNumber("priority", mcp.Description("Priority rank, 1 (highest) to 5")),
		mcp.WithString("moscow", mcp.Enum("M", "S", "C", "W"), mcp.Description("MoSCoW bucket")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
		mcp.WithString("status", mcp.Enum("draft", "approved", "deprecated")),
		mcp.WithString("userId", mcp.Description("Author of this version")),
		mcp.WithString("sourceInputId", mcp.Description("Identifier of the input the version came from")),
	}
}

var projectCreateToolDef = mcp.NewTool("project_create",
	mcp.WithDescription("Create a project that owns requirements, batches and exports."),
	mcp.WithString("name", mcp.Required()),
	mcp.WithString("description", mcp.Required()),
	mcp.WithString("ownerUserId", mcp.Required()),
)

var projectListToolDef = mcp.NewTool("project_list",
	mcp.WithDescription("List the projects of one owner, oldest first."),
	mcp.WithString("ownerUserId", mcp.Required()),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset"),
)

var requirementCreateToolDef = mcp.NewTool("requirement_create",
	append([]mcp.ToolOption{
		mcp.WithDescription("Create a logical requirement in a project. Its first version is numbered 1."),
		mcp.WithString("projectId", mcp.Required()),
	}, draftOptions()...)...,
)

var requirementAppendToolDef = mcp.NewTool("requirement_append",
	append([]mcp.ToolOption{
		mcp.WithDescription("Append a new immutable version to a requirement. The store assigns the number."),
		mcp.WithString("requirementId", mcp.Required()),
	}, draftOptions()...)...,
)

var requirementLatestToolDef = mcp.NewTool("requirement_latest",
	mcp.WithDescription("Return the highest-numbered version of a requirement."),
	mcp.WithString("requirementId", mcp.Required()),
)

var requirementListToolDef = mcp.NewTool("requirement_list",
	mcp.WithDescription("List the logical requirements of a project with their versions."),
	mcp.WithString("projectId", mcp.Required()),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset"),
)

var requirementVersionsToolDef = mcp.NewTool("requirement_versions",
	mcp.WithDescription("Return every version of a requirement in ascending order."),
	mcp.WithString("requirementId", mcp.Required()),
)

var batchStoreToolDef = mcp.NewTool("batch_store",
	mcp.WithDescription("Store the extracted requirement batch of a project."),
	mcp.WithString("projectId", mcp.Required()),
	mcp.WithString("ownerUserId", mcp.Required()),
	mcp.WithArray("requirements", mcp.Required(), mcp.Items(recordItems)),
	mcp.WithString("policy", mcp.Enum("replace", "append"), mcp.Description("Overrides the configured batch policy")),
)

var batchGetToolDef = mcp.NewTool("batch_get",
	mcp.WithDescription("Return the stored requirement batch of a project."),
	mcp.WithString("projectId", mcp.Required()),
)

var documentExportToolDef = mcp.NewTool("document_export",
	mcp.WithDescription("Render the project's requirements as docx, pdf or jira_json and commit the file to the export history."),
	mcp.WithString("projectId", mcp.Required()),
	mcp.WithString("format", mcp.Required(), mcp.Enum("docx", "pdf", "jira_json")),
	mcp.WithString("requestingUserId", mcp.Description("Recorded as the commit author")),
	mcp.WithString("source", mcp.Enum("batch", "versions"), mcp.Description("Document source (default batch)")),
)

var exportListToolDef = mcp.NewTool("export_list",
	mcp.WithDescription("List the documents stored for a project."),
	mcp.WithString("projectId", mcp.Required()),
)
