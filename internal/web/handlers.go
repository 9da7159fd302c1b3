package web

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/logger"
	"github.com/M0hit1029/GenEx/internal/ops"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// Handlers contains HTTP route handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	env      *ops.Env
	log      *logger.Logger
	renderer *Renderer
	limiter  *rate.Limiter
	version  string
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(fmt.Errorf("database ping: %w", err)))
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": h.version})
}

// --- Projects ---

// HandleCreateProject handles POST /projects.
func (h *Handlers) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	var input ops.CreateProjectInput
	if !h.decode(w, r, &input) {
		return
	}
	out, err := ops.CreateProject(r.Context(), h.db, h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, out)
}

// HandleListProjects handles GET /projects?owner=.
func (h *Handlers) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListProjects(r.Context(), h.db, ops.ListProjectsInput{
		OwnerUserID: r.URL.Query().Get("owner"),
		Limit:       parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:      parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// --- Requirements ---

// HandleCreateRequirement handles POST /projects/{projectId}/requirements.
func (h *Handlers) HandleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	var draft requirement.Draft
	if !h.decode(w, r, &draft) {
		return
	}
	out, err := ops.CreateRequirement(r.Context(), h.db, h.env, ops.CreateRequirementInput{
		ProjectID: r.PathValue("projectId"),
		Draft:     draft,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, out)
}

// HandleListRequirements handles GET /projects/{projectId}/requirements.
func (h *Handlers) HandleListRequirements(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListForProject(r.Context(), h.db, ops.ListInput{
		ProjectID: r.PathValue("projectId"),
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleLatestRequirements handles GET /projects/{projectId}/requirements/latest.
func (h *Handlers) HandleLatestRequirements(w http.ResponseWriter, r *http.Request) {
	out, err := ops.LatestRequirementsForProject(r.Context(), h.db, r.PathValue("projectId"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleAppendVersion handles POST /requirements/{id}/versions.
func (h *Handlers) HandleAppendVersion(w http.ResponseWriter, r *http.Request) {
	var draft requirement.Draft
	if !h.decode(w, r, &draft) {
		return
	}
	out, err := ops.AppendVersion(r.Context(), h.db, h.env, ops.AppendVersionInput{
		RequirementID: r.PathValue("id"),
		Draft:         draft,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, out)
}

// HandleListVersions handles GET /requirements/{id}/versions.
func (h *Handlers) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListVersions(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleLatestVersion handles GET /requirements/{id}/latest.
func (h *Handlers) HandleLatestVersion(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetLatestVersion(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// --- Batches ---

type storeBatchRequest struct {
	OwnerUserID  string                  `json:"ownerUserId"`
	Requirements []requirement.RawRecord `json:"requirements"`
	Policy       string                  `json:"policy,omitempty"`
}

// HandleStoreBatch handles PUT /projects/{projectId}/batch.
func (h *Handlers) HandleStoreBatch(w http.ResponseWriter, r *http.Request) {
	var req storeBatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Requirements == nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("requirements is required"))
		return
	}
	out, err := ops.StoreBatch(r.Context(), h.db, h.cfg, h.env, ops.StoreBatchInput{
		ProjectID:   r.PathValue("projectId"),
		OwnerUserID: req.OwnerUserID,
		Records:     req.Requirements,
		Policy:      req.Policy,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleGetBatch handles GET /projects/{projectId}/batch.
func (h *Handlers) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	out, err := ops.GetBatch(r.Context(), h.db, r.PathValue("projectId"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

type extractRequest struct {
	UserID string   `json:"userId"`
	Files  []string `json:"files"`
	Prompt string   `json:"prompt"`
}

// HandleExtract handles POST /projects/{projectId}/extract.
func (h *Handlers) HandleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := ops.Extract(r.Context(), h.db, h.cfg, h.env, ops.ExtractInput{
		ProjectID: r.PathValue("projectId"),
		UserID:    req.UserID,
		Files:     req.Files,
		Prompt:    req.Prompt,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// --- Exports ---

type exportRequest struct {
	Format           string `json:"format"`
	RequestingUserID string `json:"requestingUserId,omitempty"`
	Source           string `json:"source,omitempty"`
}

// HandleExport handles POST /projects/{projectId}/export. A failed push
// still answers 200 with pushStatus "failed" and a warning.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		h.renderer.renderError(w, r, errors.NewRateLimited())
		return
	}

	var req exportRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := ops.Export(r.Context(), h.db, h.cfg, h.env, ops.ExportInput{
		ProjectID:        r.PathValue("projectId"),
		Format:           req.Format,
		RequestingUserID: req.RequestingUserID,
		Source:           req.Source,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleListExports handles GET /projects/{projectId}/exports.
func (h *Handlers) HandleListExports(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ListExports(h.env, r.PathValue("projectId"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleDownloadExport handles GET /projects/{projectId}/exports/{filename}.
func (h *Handlers) HandleDownloadExport(w http.ResponseWriter, r *http.Request) {
	out, err := ops.ReadExport(h.env, r.PathValue("projectId"), r.PathValue("filename"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Bytes)
}

// HandlePreview handles GET /projects/{projectId}/preview.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = ops.SourceBatch
	}
	body, err := ops.Preview(r.Context(), h.db, h.cfg, h.env, ops.PreviewInput{
		ProjectID: r.PathValue("projectId"),
		Source:    source,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	projectID := r.PathValue("projectId")
	h.renderer.renderPageStatus(w, http.StatusOK, "preview", PreviewPageData{
		PageData: PageData{
			Title:     "Preview",
			Version:   h.version,
			ProjectID: projectID,
		},
		Source: source,
		// goldmark output of escaped Markdown; raw HTML is never passed through.
		Body: template.HTML(body),
	})
}

// decode reads a JSON body into v. On failure it writes the error response
// and returns false.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case stderrors.As(err, &maxErr):
			h.renderer.renderError(w, r, errors.NewInvalidRequest("request body too large"))
		case stderrors.Is(err, io.EOF):
			h.renderer.renderError(w, r, errors.NewInvalidRequest("request body is required"))
		default:
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON: "+err.Error()))
		}
		return false
	}
	if dec.More() {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("request body must be a single JSON object"))
		return false
	}
	return true
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
