package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/history"
	"github.com/M0hit1029/GenEx/internal/render"
)

// Export sources.
const (
	SourceBatch    = "batch"
	SourceVersions = "versions"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	ProjectID        string
	Format           string
	RequestingUserID string
	Source           string // batch (default) or versions
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	ProjectID       string             `json:"projectId"`
	Format          render.Format      `json:"format"`
	Filename        string             `json:"filename"`
	CommitReference string             `json:"commitReference"`
	PushStatus      history.PushStatus `json:"pushStatus"`
	Warning         string             `json:"warning,omitempty"`
	GeneratedAt     time.Time          `json:"generatedAt"`
	Items           int                `json:"items"`
	Pages           int                `json:"pages,omitempty"`
}

func parseSource(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", SourceBatch:
		return SourceBatch, nil
	case SourceVersions:
		return SourceVersions, nil
	default:
		return "", errors.NewInvalidRequest(fmt.Sprintf("source must be one of: %s, %s", SourceBatch, SourceVersions))
	}
}

// loadItems collects the document items of a project. A project without a
// batch, or without versioned requirements, yields no items.
func loadItems(ctx context.Context, database *sql.DB, projectID, source string) ([]render.Item, error) {
	if source == SourceVersions {
		latest, err := LatestRequirementsForProject(ctx, database, projectID)
		if err != nil {
			return nil, err
		}
		return versionedItems(latest), nil
	}

	b, err := db.GetBatch(ctx, database, projectID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return render.ItemsFromRecords(b.Records), nil
}

func renderOptions(cfg *config.Config) render.Options {
	pdf := render.DefaultPDFOptions()
	if cfg.PDFLineWrap > 0 {
		pdf.WrapWidth = cfg.PDFLineWrap
	}
	return render.Options{
		AllowEmpty: cfg.EmptyExport == config.EmptyExportRender,
		PDF:        pdf,
	}
}

// Export renders a project's requirements and records the document in the
// export history.
//
// The pipeline is bounded by export_timeout_seconds. When the deadline passes
// the caller gets ExportTimeoutError; a commit that already landed stays in
// the history. A failed push is not an error: PushStatus is "failed" and
// Warning is set.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, env *Env, input ExportInput) (*ExportOutput, error) {
	projectID, err := validProject(input.ProjectID)
	if err != nil {
		return nil, err
	}
	format, err := render.ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}
	source, err := parseSource(input.Source)
	if err != nil {
		return nil, err
	}
	if env == nil || env.History == nil {
		return nil, errors.NewInternal(stderrors.New("export history is not configured"))
	}

	start := time.Now()
	log := env.log().With("project_id", projectID, "format", string(format))

	tctx := ctx
	if cfg.ExportTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.ExportTimeoutSeconds)*time.Second)
		defer cancel()
	}

	release, err := env.History.LockProject(tctx, projectID)
	if err != nil {
		return nil, timeoutError(ctx, tctx, projectID, err)
	}
	defer release()

	items, err := loadItems(tctx, database, projectID, source)
	if err != nil {
		return nil, timeoutError(ctx, tctx, projectID, err)
	}

	art, err := render.Render(render.Document{
		ProjectID:   projectID,
		Title:       render.DefaultTitle,
		GeneratedAt: env.now(),
		Items:       items,
	}, format, renderOptions(cfg))
	if err != nil {
		return nil, err
	}

	res, err := env.History.Save(tctx, art, input.RequestingUserID)
	if err != nil {
		err = timeoutError(ctx, tctx, projectID, err)
		if errors.Is(err, errors.ErrExportTimeout) {
			log.Warn("export timed out", "elapsed", time.Since(start).String())
		}
		return nil, err
	}

	env.metrics().RecordExport(string(format), string(res.PushStatus), time.Since(start).Seconds())
	log.Info("export complete",
		"file", res.Filename,
		"commit", res.CommitReference,
		"push_status", string(res.PushStatus),
		"items", len(items))

	return &ExportOutput{
		ProjectID:       projectID,
		Format:          format,
		Filename:        res.Filename,
		CommitReference: res.CommitReference,
		PushStatus:      res.PushStatus,
		Warning:         res.Warning,
		GeneratedAt:     art.GeneratedAt,
		Items:           len(items),
		Pages:           art.Pages,
	}, nil
}

// timeoutError reports ExportTimeoutError when the export deadline, and not
// the caller's own context, ended the pipeline.
func timeoutError(ctx, tctx context.Context, projectID string, err error) error {
	if ctx.Err() == nil && stderrors.Is(tctx.Err(), context.DeadlineExceeded) {
		return errors.NewExportTimeout(projectID)
	}
	return err
}

// PreviewInput contains parameters for the Preview operation.
type PreviewInput struct {
	ProjectID string
	Source    string
}

// Preview renders the requirements document as an HTML fragment. Nothing is
// written to the export history.
func Preview(ctx context.Context, database *sql.DB, cfg *config.Config, env *Env, input PreviewInput) ([]byte, error) {
	projectID, err := validProject(input.ProjectID)
	if err != nil {
		return nil, err
	}
	source, err := parseSource(input.Source)
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, database, projectID, source)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && cfg.EmptyExport != config.EmptyExportRender {
		return nil, errors.NewEmptyInput(projectID)
	}

	html, err := render.HTML(render.Document{
		ProjectID:   projectID,
		Title:       render.DefaultTitle,
		GeneratedAt: env.now(),
		Items:       items,
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return html, nil
}

// ListExportsOutput contains the result of the ListExports operation.
type ListExportsOutput struct {
	ProjectID string                 `json:"projectId"`
	Items     []history.ArtifactInfo `json:"items"`
}

// ListExports returns the documents stored for a project, oldest first.
func ListExports(env *Env, projectID string) (*ListExportsOutput, error) {
	projectID, err := validProject(projectID)
	if err != nil {
		return nil, err
	}
	if env == nil || env.History == nil {
		return nil, errors.NewInternal(stderrors.New("export history is not configured"))
	}
	items, err := env.History.ListArtifacts(projectID)
	if err != nil {
		return nil, err
	}
	return &ListExportsOutput{ProjectID: projectID, Items: items}, nil
}

// StoredExport is one stored document.
type StoredExport struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// ReadExport returns a stored document for download.
func ReadExport(env *Env, projectID, filename string) (*StoredExport, error) {
	projectID, err := validProject(projectID)
	if err != nil {
		return nil, err
	}
	if env == nil || env.History == nil {
		return nil, errors.NewInternal(stderrors.New("export history is not configured"))
	}
	data, err := env.History.ReadArtifact(projectID, filename)
	if err != nil {
		return nil, err
	}
	return &StoredExport{
		Filename:    filename,
		ContentType: contentTypeFor(filename),
		Bytes:       data,
	}, nil
}

func contentTypeFor(filename string) string {
	for _, f := range render.Formats {
		if strings.HasSuffix(filename, "."+f.Extension()) {
			return f.ContentType()
		}
	}
	return "application/octet-stream"
}
