package web

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/db"
	"github.com/M0hit1029/GenEx/internal/history"
	"github.com/M0hit1029/GenEx/internal/metrics"
	"github.com/M0hit1029/GenEx/internal/ops"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

const threeRecords = `{"ownerUserId":"u1","requirements":[
	{"feature":"Login","description":"Users sign in","priority":1,"type":"F","moscow":"M"},
	{"feature":"Fast pages","priority":"2","type":"NF","moscow":"S"},
	{"feature":"Dark mode","priority":4,"type":"F","moscow":"C","question":"Default?","answer":"Follow OS"}
]}`

type testServer struct {
	handler http.Handler
	db      *sql.DB
	cfg     *config.Config
	env     *ops.Env
}

func setupTest(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	env := &ops.Env{
		History: history.New(history.Options{
			Root:        filepath.Join(t.TempDir(), "history"),
			PushTimeout: 5 * time.Second,
		}),
		Metrics: metrics.New(),
		Now:     func() time.Time { return testNow },
	}
	return &testServer{
		handler: NewHandler(database, cfg, env, "test"),
		db:      database,
		cfg:     cfg,
		env:     env,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Status  int            `json:"status"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestHealth(t *testing.T) {
	s := setupTest(t, nil)
	rec := s.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestMiddleware_HeadersAndRequestID(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	rec = s.do(t, http.MethodGet, "/healthz", "", RequestIDHeader, "trace-42")
	assert.Equal(t, "trace-42", rec.Header().Get(RequestIDHeader))

	rec = s.do(t, http.MethodGet, "/healthz", "", RequestIDHeader, "bad id with spaces")
	assert.NotEqual(t, "bad id with spaces", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTest(t, nil)
	s.do(t, http.MethodGet, "/healthz", "")

	rec := s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "genex_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="GET /healthz"`)
}

func TestProjects_CreateAndList(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodPost, "/projects", `{"name":"Portal","description":"Customer portal","ownerUserId":"u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]any](t, rec)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "Portal", created["name"])

	rec = s.do(t, http.MethodGet, "/projects?owner=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ops.ListProjectsOutput](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Portal", list.Items[0].Name)

	rec = s.do(t, http.MethodGet, "/projects", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Error.Code)
}

func TestRequirements_CreateAppendLatest(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodPost, "/projects/p1/requirements", `{"feature":"Login","type":"F","priority":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[ops.RequirementView](t, rec)
	assert.Equal(t, 1, created.LatestVersionNumber)

	rec = s.do(t, http.MethodPost, "/requirements/"+created.ID+"/versions", `{"feature":"Login with SSO","type":"F"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appended := decodeBody[ops.VersionOutput](t, rec)
	assert.Equal(t, 2, appended.Version.Number)

	rec = s.do(t, http.MethodGet, "/requirements/"+created.ID+"/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decodeBody[ops.VersionOutput](t, rec)
	assert.Equal(t, "Login with SSO", latest.Version.Feature)

	rec = s.do(t, http.MethodGet, "/requirements/"+created.ID+"/versions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decodeBody[ops.ListVersionsOutput](t, rec)
	require.Len(t, versions.Versions, 2)
	assert.Equal(t, 1, versions.Versions[0].Number)

	rec = s.do(t, http.MethodGet, "/projects/p1/requirements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ops.ListOutput](t, rec)
	assert.Equal(t, 1, list.Pagination.Total)
	assert.Equal(t, "id_asc", list.Sort)

	rec = s.do(t, http.MethodGet, "/projects/p1/requirements/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	latestAll := decodeBody[ops.LatestRequirementsOutput](t, rec)
	require.Len(t, latestAll.Items, 1)
	assert.Equal(t, 2, latestAll.Items[0].Version.Number)
}

func TestAppendVersion_Errors(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodPost, "/requirements/01NOPE/versions", `{"feature":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)

	// Version numbers are assigned by the store only.
	rec = s.do(t, http.MethodPost, "/requirements/01NOPE/versions", `{"feature":"x","versionNumber":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/requirements/01NOPE/versions", `{"feature":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/requirements/01NOPE/versions", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body is required", decodeError(t, rec).Error.Message)

	rec = s.do(t, http.MethodPost, "/requirements/01NOPE/versions", `{"feature":"a"}{"feature":"b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatch_StoreAndGet(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodGet, "/projects/p1/batch", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/projects/p1/batch", threeRecords)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/projects/p1/batch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "p1", body["projectId"])
	assert.Equal(t, "u1", body["ownerUserId"])
	records, ok := body["requirements"].([]any)
	require.True(t, ok)
	assert.Len(t, records, 3)
}

func TestBatch_ValidationDetails(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodPut, "/projects/p1/batch",
		`{"ownerUserId":"u1","requirements":[{"feature":"ok","type":"F","moscow":"M"},{"feature":"bad","type":"X","moscow":"M"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "VALIDATION", env.Error.Code)
	assert.NotEmpty(t, env.Error.Details)

	rec = s.do(t, http.MethodPut, "/projects/p1/batch", `{"ownerUserId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Error.Code)
}

func TestExtract_NotConfigured(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodPost, "/projects/p1/extract", `{"userId":"u1","files":["notes.txt"]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTRACTION_FAILED", decodeError(t, rec).Error.Code)
}

func TestExtract_RejectsFlagLikeFiles(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodPost, "/projects/p1/extract", `{"userId":"u1","files":["--config=/tmp/x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION", body.Error.Code)
	assert.Contains(t, body.Error.Message, "files[0]")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	s := setupTest(t, nil)
	s.env.History = nil

	rec := s.do(t, http.MethodGet, "/projects/p1/exports", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "INTERNAL", env.Error.Code)
	assert.Equal(t, "internal error", env.Error.Message)
	assert.Nil(t, env.Error.Details)
	assert.NotContains(t, rec.Body.String(), "history")
}

func TestErrorPage_ForBrowsers(t *testing.T) {
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodGet, "/projects/p1/preview", "", "Accept", "text/html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<h1>404</h1>")
}

func TestPreview(t *testing.T) {
	s := setupTest(t, nil)
	rec := s.do(t, http.MethodPut, "/projects/p1/batch", threeRecords)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/projects/p1/preview", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Requirements Document</h1>")
	assert.Contains(t, body, "Dark mode")
	assert.Contains(t, body, "Project p1")
	assert.Contains(t, body, `class="active">Batch`)

	rec = s.do(t, http.MethodGet, "/projects/p1/preview?source=drafts", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatic(t *testing.T) {
	s := setupTest(t, nil)
	rec := s.do(t, http.MethodGet, "/static/style.css", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func TestExport_RateLimited(t *testing.T) {
	s := setupTest(t, func(cfg *config.Config) {
		cfg.ExportRatePerSecond = 0.001
		cfg.ExportBurst = 1
	})

	rec := s.do(t, http.MethodPost, "/projects/p1/export", `{"format":"xlsx"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decodeError(t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, "/projects/p1/export", `{"format":"pdf"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Error.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestExport_CommitListDownload(t *testing.T) {
	requireGit(t)
	s := setupTest(t, nil)

	rec := s.do(t, http.MethodPost, "/projects/p1/export", `{"format":"jira_json"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "EMPTY_INPUT", decodeError(t, rec).Error.Code)

	rec = s.do(t, http.MethodPut, "/projects/p1/batch", threeRecords)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/projects/p1/export", `{"format":"jira_json","requestingUserId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[ops.ExportOutput](t, rec)
	assert.Equal(t, history.PushSkipped, out.PushStatus)
	assert.Equal(t, "requirements_p1_20260314T092653589Z.json", out.Filename)
	assert.Len(t, out.CommitReference, 40)
	assert.Equal(t, 3, out.Items)

	rec = s.do(t, http.MethodGet, "/projects/p1/exports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ops.ListExportsOutput](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, out.Filename, list.Items[0].Filename)

	rec = s.do(t, http.MethodGet, "/projects/p1/exports/"+out.Filename, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=`+out.Filename, rec.Header().Get("Content-Disposition"))

	var issues []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issues))
	require.Len(t, issues, 3)
	assert.Equal(t, "Story", issues[0]["issueType"])

	rec = s.do(t, http.MethodGet, "/projects/p1/exports/requirements_p1_20200101T000000000Z.pdf", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport_PushFailureIsWarning(t *testing.T) {
	requireGit(t)
	s := setupTest(t, nil)
	s.env.History = history.New(history.Options{
		Root:        filepath.Join(t.TempDir(), "history"),
		RemoteURL:   "file://" + filepath.ToSlash(filepath.Join(t.TempDir(), "missing.git")),
		PushTimeout: 5 * time.Second,
	})

	rec := s.do(t, http.MethodPut, "/projects/p1/batch", threeRecords)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/projects/p1/export", `{"format":"docx"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[ops.ExportOutput](t, rec)
	assert.Equal(t, history.PushFailed, out.PushStatus)
	assert.NotEmpty(t, out.Warning)
	assert.NotEmpty(t, out.CommitReference)
}

func TestUnknownRoute(t *testing.T) {
	s := setupTest(t, nil)
	rec := s.do(t, http.MethodDelete, "/projects/p1/batch", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
