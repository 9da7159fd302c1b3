package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/logger"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title     string
	Version   string
	ProjectID string
}

// PreviewPageData is the template data for the document preview.
type PreviewPageData struct {
	PageData
	Source string
	Body   template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	log       *logger.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, log *logger.Logger) *Renderer {
	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"preview": "preview.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		log:       log,
	}
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.log.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// publicError converts any error into what a caller may see. Internal
// failures keep their cause in the log only.
func publicError(err error) errorBody {
	e, ok := errors.As(err)
	if !ok {
		e = errors.NewInternal(err)
	}
	body := errorBody{
		Code:    string(e.Code),
		Message: e.Message,
		Status:  e.Status,
		Details: e.Details,
	}
	if e.Code == errors.ErrInternal {
		body.Message = "internal error"
		body.Details = nil
	}
	return body
}

// renderError writes an error response. Browsers asking for HTML get the
// error page; everyone else gets the JSON envelope.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	body := publicError(err)

	kv := []interface{}{
		"code", body.Code,
		"path", req.URL.Path,
		"request_id", RequestIDFrom(req.Context()),
		"error", err,
	}
	if e, ok := errors.As(err); ok && e.Cause() != nil {
		kv = append(kv, "cause", e.Cause())
	}
	if body.Status >= 500 {
		r.log.Error("request failed", kv...)
	} else {
		r.log.Debug("request rejected", kv...)
	}

	accept := req.Header.Get("Accept")
	if strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json") {
		r.renderPageStatus(w, body.Status, "error", ErrorPageData{
			PageData: PageData{
				Title:   fmt.Sprintf("Error %d", body.Status),
				Version: r.version,
			},
			StatusCode: body.Status,
			Message:    body.Message,
		})
		return
	}

	renderJSON(w, body.Status, map[string]any{"error": body})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
