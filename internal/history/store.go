// Package history records rendered documents in a git repository, one
// directory per project, and optionally pushes each commit to a remote.
package history

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/keylock"
	"github.com/M0hit1029/GenEx/internal/logger"
	"github.com/M0hit1029/GenEx/internal/render"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// PushStatus reports what happened to the remote after a commit.
type PushStatus string

const (
	PushPushed  PushStatus = "pushed"
	PushSkipped PushStatus = "skipped"
	PushFailed  PushStatus = "failed"
)

// SystemAuthor is the commit author when no user is known.
const SystemAuthor = "Automated Export"

// PushWarning is returned with a failed push. The commit is kept locally.
const PushWarning = "document committed locally but push to the remote failed"

// Options configures a Store.
type Options struct {
	Root        string
	RemoteURL   string
	Branch      string
	AuthorEmail string
	PushTimeout time.Duration
	Log         *logger.Logger
}

// Store is the git-backed export history.
type Store struct {
	root        string
	remoteURL   string
	branch      string
	authorEmail string
	pushTimeout time.Duration
	log         *logger.Logger

	projects *keylock.Registry
	// index guards the repository-wide git index during stage and commit.
	index keylock.Mutex
	// push serializes pushes so concurrent exports do not race on the remote ref.
	push keylock.Mutex
	// ready guards repository initialization.
	ready keylock.Mutex
}

// New creates a Store. The repository is created lazily on the first save.
func New(opts Options) *Store {
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "genex@localhost"
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = 30 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	return &Store{
		root:        filepath.Clean(opts.Root),
		remoteURL:   strings.TrimSpace(opts.RemoteURL),
		branch:      opts.Branch,
		authorEmail: opts.AuthorEmail,
		pushTimeout: opts.PushTimeout,
		log:         opts.Log,
		projects:    keylock.New(),
	}
}

// LockProject acquires the per-project export lock. Exports of the same
// project run one at a time; different projects proceed in parallel.
func (s *Store) LockProject(ctx context.Context, projectID string) (func(), error) {
	return s.projects.Acquire(ctx, projectID)
}

// SaveResult describes a committed artifact.
type SaveResult struct {
	Filename        string
	CommitReference string
	PushStatus      PushStatus
	Warning         string
}

// Save writes the artifact into the project's directory, commits it and
// pushes when a remote is configured. Callers should hold LockProject.
//
// Errors: CorruptStoreError when the root is not a usable repository,
// ExportFailedError for init/write/commit failures, or the context error when
// ctx expires first. A push failure is not an error: it is reported through
// PushFailed and Warning.
func (s *Store) Save(ctx context.Context, art *render.Artifact, requestingUserID string) (*SaveResult, error) {
	projectID := art.ProjectID
	format := string(art.Format)
	if !requirement.ValidProjectID(projectID) {
		return nil, errors.NewValidation("invalid projectId")
	}
	log := s.log.With("project_id", projectID, "format", format)

	if err := s.EnsureReady(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, errors.ErrCorruptStore) {
			log.Error("history store unusable", "error", err)
			return nil, err
		}
		log.Error("history store init failed", "error", err)
		return nil, errors.NewExportFailed(projectID, format, "init", err)
	}

	dir, err := s.ensureProjectDir(projectID)
	if err != nil {
		log.Error("project directory failed", "error", err)
		return nil, errors.NewExportFailed(projectID, format, "write", err)
	}

	filename, err := writeArtifact(dir, ArtifactFilename(projectID, art.GeneratedAt, art.Format), art.Bytes)
	if err != nil {
		log.Error("artifact write failed", "error", err)
		return nil, errors.NewExportFailed(projectID, format, "write", err)
	}
	rel := filepath.ToSlash(filepath.Join(projectID, filename))

	author := SystemAuthor
	if uid := strings.TrimSpace(requestingUserID); uid != "" {
		author = "User " + uid
	}
	msg := fmt.Sprintf("Generate %s document '%s' for project %s", strings.ToUpper(format), filename, projectID)

	commit, err := s.stageAndCommit(ctx, rel, msg, author)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("artifact commit failed", "file", filename, "error", err)
		return nil, errors.NewExportFailed(projectID, format, "commit", err)
	}
	log.Info("artifact committed", "file", filename, "commit", commit)

	res := &SaveResult{Filename: filename, CommitReference: commit}
	res.PushStatus, res.Warning = s.optionalPush(ctx, log)
	return res, nil
}

// EnsureReady initializes the repository when the root is missing or an empty
// directory. An existing root that is not the top level of a git work tree is
// reported as corrupt and never re-initialized.
func (s *Store) EnsureReady(ctx context.Context) error {
	if err := s.ready.Lock(ctx); err != nil {
		return err
	}
	defer s.ready.Unlock()

	info, err := os.Stat(s.root)
	switch {
	case stderrors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(s.root, 0o755); err != nil {
			return err
		}
		return gitInit(ctx, s.root, s.branch)
	case err != nil:
		return err
	case !info.IsDir():
		return errors.NewCorruptStore(fmt.Errorf("%s is not a directory", s.root))
	}

	top, err := gitTopLevel(ctx, s.root)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		empty, emptyErr := isEmptyDir(s.root)
		if emptyErr == nil && empty {
			return gitInit(ctx, s.root, s.branch)
		}
		return errors.NewCorruptStore(err)
	}
	if !samePath(top, s.root) {
		return errors.NewCorruptStore(fmt.Errorf("%s is inside the work tree %s", s.root, top))
	}
	return nil
}

func (s *Store) ensureProjectDir(projectID string) (string, error) {
	dir := filepath.Join(s.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	info, err := os.Lstat(dir)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 || !info.IsDir() {
		return "", errSymlink
	}
	return dir, nil
}

func (s *Store) stageAndCommit(ctx context.Context, rel, msg, author string) (string, error) {
	if err := s.index.Lock(ctx); err != nil {
		return "", err
	}
	defer s.index.Unlock()

	if err := gitStagePath(ctx, rel, s.root); err != nil {
		return "", err
	}
	if err := gitCommitPath(ctx, msg, rel, author, s.authorEmail, s.root); err != nil {
		// Leave the index as it was so the next commit does not pick this file up.
		if uerr := gitUnstagePath(context.Background(), rel, s.root); uerr != nil {
			s.log.Warn("unstage after failed commit", "file", rel, "error", uerr)
		}
		return "", err
	}
	return gitRevParseHEAD(ctx, s.root)
}

func (s *Store) optionalPush(ctx context.Context, log *logger.Logger) (PushStatus, string) {
	if s.remoteURL == "" {
		return PushSkipped, ""
	}

	pctx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	if err := s.push.Lock(pctx); err != nil {
		log.Warn("push skipped waiting for lock", "remote", s.remoteURL, "error", err)
		return PushFailed, PushWarning
	}
	defer s.push.Unlock()

	if err := gitPush(pctx, s.remoteURL, s.branch, s.root); err != nil {
		log.Warn("push failed", "remote", s.remoteURL, "error", err)
		return PushFailed, PushWarning
	}
	return PushPushed, ""
}

// ---------------------------------------------------------------------------
// Artifact files
// ---------------------------------------------------------------------------

var artifactNamePattern = regexp.MustCompile(`^requirements_[A-Za-z0-9._-]+_\d{8}T\d{9}Z(-\d+)?\.(docx|pdf|json)$`)

// ArtifactFilename is the base name for an export generated at t, e.g.
// requirements_p1_20260314T092653589Z.json.
func ArtifactFilename(projectID string, t time.Time, format render.Format) string {
	stamp := t.UTC().Format("20060102T150405.000Z")
	stamp = strings.Replace(stamp, ".", "", 1)
	return fmt.Sprintf("requirements_%s_%s.%s", projectID, stamp, format.Extension())
}

// ValidArtifactName reports whether name looks like a stored artifact.
func ValidArtifactName(name string) bool {
	return artifactNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// withSuffix inserts -n before the extension.
func withSuffix(name string, n int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// writeArtifact writes data under dir without ever replacing an existing
// file. The bytes go to a temporary file first and are then hard-linked to
// the first free name, so readers never see a partial artifact.
func writeArtifact(dir, name string, data []byte) (string, error) {
	tmp := filepath.Join(dir, "."+name+".tmp")
	// A leftover from an interrupted export would block O_EXCL.
	_ = os.Remove(tmp)
	f, err := openFileNoFollow(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	candidate := name
	for n := 2; n < 1000; n++ {
		err := os.Link(tmp, filepath.Join(dir, candidate))
		if err == nil {
			return candidate, nil
		}
		if !stderrors.Is(err, os.ErrExist) {
			return "", err
		}
		candidate = withSuffix(name, n)
	}
	return "", fmt.Errorf("no free filename for %s", name)
}

// ArtifactInfo describes a stored artifact.
type ArtifactInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
}

// ListArtifacts returns the artifacts stored for a project, oldest first.
// A project without exports has an empty list.
func (s *Store) ListArtifacts(projectID string) ([]ArtifactInfo, error) {
	if !requirement.ValidProjectID(projectID) {
		return nil, errors.NewValidation("invalid projectId")
	}
	entries, err := os.ReadDir(filepath.Join(s.root, projectID))
	if stderrors.Is(err, os.ErrNotExist) {
		return []ArtifactInfo{}, nil
	}
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("list artifacts: %w", err))
	}

	out := []ArtifactInfo{}
	for _, e := range entries {
		if !e.Type().IsRegular() || !ValidArtifactName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ArtifactInfo{Filename: e.Name(), Size: info.Size(), ModTime: info.ModTime().UTC()})
	}
	// Names embed a sortable UTC timestamp.
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// ReadArtifact returns the bytes of one stored artifact.
func (s *Store) ReadArtifact(projectID, filename string) ([]byte, error) {
	if !requirement.ValidProjectID(projectID) {
		return nil, errors.NewValidation("invalid projectId")
	}
	if !ValidArtifactName(filename) {
		return nil, errors.NewInvalidRequest("invalid artifact filename")
	}

	f, err := openFileNoFollowRead(filepath.Join(s.root, projectID, filename))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewNotFound("artifact", filename)
		}
		return nil, errors.NewInternal(fmt.Errorf("open artifact: %w", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read artifact: %w", err))
	}
	return data, nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func samePath(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		ra = a
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		rb = b
	}
	ra, _ = filepath.Abs(ra)
	rb, _ = filepath.Abs(rb)
	return filepath.Clean(ra) == filepath.Clean(rb)
}
