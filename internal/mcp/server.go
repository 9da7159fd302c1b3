package mcp

import (
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"project_create": {
		def:     projectCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectCreate },
	},
	"project_list": {
		def:     projectListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectList },
	},
	"requirement_create": {
		def:     requirementCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRequirementCreate },
	},
	"requirement_append": {
		def:     requirementAppendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRequirementAppend },
	},
	"requirement_latest": {
		def:     requirementLatestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRequirementLatest },
	},
	"requirement_list": {
		def:     requirementListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRequirementList },
	},
	"requirement_versions": {
		def:     requirementVersionsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRequirementVersions },
	},
	"batch_store": {
		def:     batchStoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBatchStore },
	},
	"batch_get": {
		def:     batchGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBatchGet },
	},
	"document_export": {
		def:     documentExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDocumentExport },
	},
	"export_list": {
		def:     exportListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportList },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the GenEx tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"genex",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(db, cfg, env)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, env *ops.Env, version string) error {
	s := NewServer(db, cfg, env, version)
	return server.ServeStdio(s)
}
