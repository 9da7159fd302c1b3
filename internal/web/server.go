// Package web serves the GenEx JSON API and the document preview pages.
package web

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/logger"
	"github.com/M0hit1029/GenEx/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 20

// NewHandler builds the routed, middleware-wrapped handler. It is separate
// from NewServer so tests can drive it with httptest.
func NewHandler(database *sql.DB, cfg *config.Config, env *ops.Env, version string) http.Handler {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	if env == nil {
		env = &ops.Env{}
	}
	log := env.Log
	if log == nil {
		log = logger.NewNop()
	}

	h := &Handlers{
		db:       database,
		cfg:      cfg,
		env:      env,
		log:      log,
		renderer: NewRenderer(templateSub, version, log),
		limiter:  newExportLimiter(cfg),
		version:  version,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HandleHealth)
	if env.Metrics != nil {
		mux.Handle("GET /metrics", env.Metrics.Handler())
	}

	mux.HandleFunc("POST /projects", h.HandleCreateProject)
	mux.HandleFunc("GET /projects", h.HandleListProjects)

	mux.HandleFunc("POST /projects/{projectId}/requirements", h.HandleCreateRequirement)
	mux.HandleFunc("GET /projects/{projectId}/requirements", h.HandleListRequirements)
	mux.HandleFunc("GET /projects/{projectId}/requirements/latest", h.HandleLatestRequirements)
	mux.HandleFunc("POST /requirements/{id}/versions", h.HandleAppendVersion)
	mux.HandleFunc("GET /requirements/{id}/versions", h.HandleListVersions)
	mux.HandleFunc("GET /requirements/{id}/latest", h.HandleLatestVersion)

	mux.HandleFunc("PUT /projects/{projectId}/batch", h.HandleStoreBatch)
	mux.HandleFunc("GET /projects/{projectId}/batch", h.HandleGetBatch)
	mux.HandleFunc("POST /projects/{projectId}/extract", h.HandleExtract)

	mux.HandleFunc("POST /projects/{projectId}/export", h.HandleExport)
	mux.HandleFunc("GET /projects/{projectId}/exports", h.HandleListExports)
	mux.HandleFunc("GET /projects/{projectId}/exports/{filename}", h.HandleDownloadExport)
	mux.HandleFunc("GET /projects/{projectId}/preview", h.HandlePreview)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	var handler http.Handler = securityHeaders(mux)
	handler = observe(handler, log, env.Metrics)
	handler = requestID(handler)
	return handler
}

// NewServer creates the HTTP server for `genex serve`.
func NewServer(database *sql.DB, cfg *config.Config, env *ops.Env, version string) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewHandler(database, cfg, env, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newExportLimiter returns nil when limiting is disabled.
func newExportLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.ExportRatePerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.ExportRatePerSecond), max(cfg.ExportBurst, 1))
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log *logger.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info("genex listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		// Exports may be mid-push; give them the push timeout's worth of grace.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
