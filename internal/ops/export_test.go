package ops

import (
	"encoding/json"
	"net"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/M0hit1029/GenEx/internal/config"
	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/history"
	"github.com/M0hit1029/GenEx/internal/metrics"
	"github.com/M0hit1029/GenEx/internal/requirement"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func exportEnv(t *testing.T, remote string) *Env {
	t.Helper()
	env := testEnv()
	env.History = history.New(history.Options{
		Root:        filepath.Join(t.TempDir(), "history"),
		RemoteURL:   remote,
		PushTimeout: 10 * time.Second,
	})
	env.Metrics = metrics.New()
	return env
}

func TestExport_ThreeRecordJira(t *testing.T) {
	requireGit(t)
	ctx := t.Context()
	database, cfg := setupDB(t)
	env := exportEnv(t, "")

	if _, err := StoreBatch(ctx, database, cfg, env, StoreBatchInput{
		ProjectID: "p1", OwnerUserID: "u1", Records: rawRecords(t, threeRecords),
	}); err != nil {
		t.Fatalf("StoreBatch failed: %v", err)
	}

	out, err := Export(ctx, database, cfg, env, ExportInput{
		ProjectID: "p1", Format: "jira_json", RequestingUserID: "u1",
	})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if out.PushStatus != history.PushSkipped {
		t.Errorf("PushStatus = %q, want skipped", out.PushStatus)
	}
	if out.Warning != "" {
		t.Errorf("Warning = %q, want empty", out.Warning)
	}
	if len(out.CommitReference) != 40 {
		t.Errorf("CommitReference = %q, want a full hash", out.CommitReference)
	}
	if out.Filename != "requirements_p1_20260314T092653589Z.json" {
		t.Errorf("Filename = %q", out.Filename)
	}
	if !out.GeneratedAt.Equal(testNow) || out.Items != 3 {
		t.Errorf("GeneratedAt = %v, Items = %d", out.GeneratedAt, out.Items)
	}

	stored, err := ReadExport(env, "p1", out.Filename)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	if stored.ContentType != "application/json" {
		t.Errorf("ContentType = %q", stored.ContentType)
	}

	var issues []map[string]any
	if err := json.Unmarshal(stored.Bytes, &issues); err != nil {
		t.Fatalf("stored artifact is not JSON: %v", err)
	}
	wantTypes := []string{"Story", "Task", "Story"}
	wantPriorities := []string{"P1", "P2", "P4"}
	for i, issue := range issues {
		if issue["issueType"] != wantTypes[i] || issue["priority"] != wantPriorities[i] {
			t.Errorf("issue %d = %v, want %s %s", i, issue, wantTypes[i], wantPriorities[i])
		}
	}

	list, err := ListExports(env, "p1")
	if err != nil {
		t.Fatalf("ListExports failed: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Filename != out.Filename {
		t.Errorf("ListExports = %+v", list.Items)
	}

	if got := testutil.ToFloat64(env.Metrics.ExportsTotal.WithLabelValues("jira_json", "skipped")); got != 1 {
		t.Errorf("exports metric = %v, want 1", got)
	}
}

func TestExport_PushFailedStillSucceeds(t *testing.T) {
	requireGit(t)
	ctx := t.Context()
	database, cfg := setupDB(t)
	env := exportEnv(t, "file://"+filepath.ToSlash(filepath.Join(t.TempDir(), "missing.git")))

	if _, err := StoreBatch(ctx, database, cfg, env, StoreBatchInput{
		ProjectID: "p1", OwnerUserID: "u1", Records: rawRecords(t, threeRecords),
	}); err != nil {
		t.Fatalf("StoreBatch failed: %v", err)
	}

	for _, format := range []string{"docx", "pdf"} {
		out, err := Export(ctx, database, cfg, env, ExportInput{ProjectID: "p1", Format: format})
		if err != nil {
			t.Fatalf("Export(%s) failed: %v", format, err)
		}
		if out.PushStatus != history.PushFailed || out.Warning == "" {
			t.Errorf("%s: PushStatus = %q, Warning = %q", format, out.PushStatus, out.Warning)
		}
		if out.CommitReference == "" {
			t.Errorf("%s: CommitReference empty after failed push", format)
		}
	}
}

func TestExport_FromVersions(t *testing.T) {
	requireGit(t)
	ctx := t.Context()
	database, cfg := setupDB(t)
	env := exportEnv(t, "")

	created, err := CreateRequirement(ctx, database, env, CreateRequirementInput{
		ProjectID: "p1",
		Draft:     requirement.Draft{Feature: "Old wording", Kind: requirement.KindFunctional},
	})
	if err != nil {
		t.Fatalf("CreateRequirement failed: %v", err)
	}
	if _, err := AppendVersion(ctx, database, env, AppendVersionInput{
		RequirementID: created.ID,
		Draft:         requirement.Draft{Feature: "New wording", Kind: requirement.KindNonFunctional, Priority: intPtr(3)},
	}); err != nil {
		t.Fatalf("AppendVersion failed: %v", err)
	}

	out, err := Export(ctx, database, cfg, env, ExportInput{ProjectID: "p1", Format: "jira_json", Source: "versions"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	stored, err := ReadExport(env, "p1", out.Filename)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	body := string(stored.Bytes)
	if !strings.Contains(body, `"New wording"`) || strings.Contains(body, "Old wording") {
		t.Errorf("export should carry only the latest version:\n%s", body)
	}
	if !strings.Contains(body, `"sourceVersionNumber": 2`) || !strings.Contains(body, created.ID) {
		t.Errorf("export should reference %s version 2:\n%s", created.ID, body)
	}
}

func TestExport_EmptyProject(t *testing.T) {
	requireGit(t)
	ctx := t.Context()
	database, cfg := setupDB(t)
	env := exportEnv(t, "")

	_, err := Export(ctx, database, cfg, env, ExportInput{ProjectID: "p1", Format: "pdf"})
	assertCode(t, err, errors.ErrEmptyInput)

	cfg.EmptyExport = config.EmptyExportRender
	out, err := Export(ctx, database, cfg, env, ExportInput{ProjectID: "p1", Format: "jira_json"})
	if err != nil {
		t.Fatalf("Export with empty_export=render failed: %v", err)
	}
	stored, err := ReadExport(env, "p1", out.Filename)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	if strings.TrimSpace(string(stored.Bytes)) != "[]" {
		t.Errorf("empty Jira export = %q, want []", stored.Bytes)
	}
}

func TestExport_InputErrors(t *testing.T) {
	database, cfg := setupDB(t)
	env := exportEnv(t, "")

	_, err := Export(t.Context(), database, cfg, env, ExportInput{ProjectID: "p1", Format: "xlsx"})
	assertCode(t, err, errors.ErrUnsupportedFormat)

	_, err = Export(t.Context(), database, cfg, env, ExportInput{ProjectID: "../p1", Format: "pdf"})
	assertCode(t, err, errors.ErrValidation)

	_, err = Export(t.Context(), database, cfg, env, ExportInput{ProjectID: "p1", Format: "pdf", Source: "drafts"})
	assertCode(t, err, errors.ErrInvalidRequest)

	_, err = Export(t.Context(), database, cfg, testEnv(), ExportInput{ProjectID: "p1", Format: "pdf"})
	assertCode(t, err, errors.ErrInternal)
}

func TestExport_Timeout(t *testing.T) {
	database, cfg := setupDB(t)
	cfg.ExportTimeoutSeconds = 1
	env := exportEnv(t, "")

	// Another export of the same project holds the lock past the deadline.
	release, err := env.History.LockProject(t.Context(), "p1")
	if err != nil {
		t.Fatalf("LockProject failed: %v", err)
	}
	defer release()

	_, err = Export(t.Context(), database, cfg, env, ExportInput{ProjectID: "p1", Format: "pdf"})
	assertCode(t, err, errors.ErrExportTimeout)
}

// silentRemote returns an http remote that accepts connections and never
// answers them.
func silentRemote(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return "http://" + ln.Addr().String() + "/repo.git"
}

func TestExport_DeadlineDuringPushReportsFailedPush(t *testing.T) {
	requireGit(t)
	ctx := t.Context()
	database, cfg := setupDB(t)
	cfg.ExportTimeoutSeconds = 1
	env := exportEnv(t, silentRemote(t))

	if _, err := StoreBatch(ctx, database, cfg, env, StoreBatchInput{
		ProjectID: "p1", OwnerUserID: "u1", Records: rawRecords(t, threeRecords),
	}); err != nil {
		t.Fatalf("StoreBatch failed: %v", err)
	}

	start := time.Now()
	out, err := Export(ctx, database, cfg, env, ExportInput{ProjectID: "p1", Format: "jira_json"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Errorf("Export took %v with a 1s deadline", elapsed)
	}
	if out.PushStatus != history.PushFailed || out.Warning != history.PushWarning {
		t.Errorf("PushStatus = %q, Warning = %q", out.PushStatus, out.Warning)
	}
	if len(out.CommitReference) != 40 {
		t.Errorf("CommitReference = %q, want the local commit", out.CommitReference)
	}

	// The project lock was released.
	release, err := env.History.LockProject(ctx, "p1")
	if err != nil {
		t.Fatalf("LockProject after export: %v", err)
	}
	release()
}

func TestPreview(t *testing.T) {
	ctx := t.Context()
	database, cfg := setupDB(t)
	env := testEnv()

	_, err := Preview(ctx, database, cfg, env, PreviewInput{ProjectID: "p1"})
	assertCode(t, err, errors.ErrEmptyInput)

	if _, err := StoreBatch(ctx, database, cfg, env, StoreBatchInput{
		ProjectID: "p1", OwnerUserID: "u1", Records: rawRecords(t, threeRecords),
	}); err != nil {
		t.Fatalf("StoreBatch failed: %v", err)
	}

	html, err := Preview(ctx, database, cfg, env, PreviewInput{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	for _, want := range []string{"<h1>Requirements Document</h1>", "Login", "Fast pages", "Dark mode"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("preview missing %q:\n%s", want, html)
		}
	}
}

func TestReadExport_ContentTypes(t *testing.T) {
	tests := map[string]string{
		"requirements_p1_20260314T092653589Z.docx":   "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"requirements_p1_20260314T092653589Z-2.pdf":  "application/pdf",
		"requirements_p1_20260314T092653589Z.json":   "application/json",
		"requirements_p1_20260314T092653589Z.binary": "application/octet-stream",
	}
	for name, want := range tests {
		if got := contentTypeFor(name); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
