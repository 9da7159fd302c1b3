package history

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/M0hit1029/GenEx/internal/logger"
)

const binGit = "git"

// gitWaitDelay bounds how long Run waits for output pipes after git is
// killed. Helpers such as git-remote-http inherit them.
const gitWaitDelay = 2 * time.Second

// gitError carries git's stderr for logging. It is never shown to API callers.
type gitError struct {
	args   []string
	err    error
	stderr string
}

// Error strips userinfo from remote URLs in both the argv and stderr.
func (e *gitError) Error() string {
	args := make([]string, len(e.args))
	stderr := strings.TrimSpace(e.stderr)
	for i, a := range e.args {
		args[i] = logger.StripUserinfo(a)
		if args[i] != a {
			stderr = strings.ReplaceAll(stderr, a, args[i])
		}
	}
	return fmt.Sprintf("git %s: %v: %s", strings.Join(args, " "), e.err, stderr)
}

func (e *gitError) Unwrap() error {
	return e.err
}

// cmdGit returns an exec.Cmd for git with cmd.Dir set to dir. Prompts are
// disabled so a push needing credentials fails instead of hanging. When ctx
// ends, git and every helper it spawned are killed.
func cmdGit(ctx context.Context, dir string, env []string, arg ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binGit, arg...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, env...)
	cmd.WaitDelay = gitWaitDelay
	killProcessGroup(cmd)
	return cmd
}

// runGit runs git and returns trimmed stdout.
func runGit(ctx context.Context, dir string, env []string, arg ...string) (string, error) {
	cmd := cmdGit(ctx, dir, env, arg...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &gitError{args: arg, err: err, stderr: stderr.String()}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func gitInit(ctx context.Context, dir, branch string) error {
	if _, err := runGit(ctx, dir, nil, "init", "-q"); err != nil {
		return err
	}
	// Portable alternative to `git init -b`, which needs git 2.28.
	_, err := runGit(ctx, dir, nil, "symbolic-ref", "HEAD", "refs/heads/"+branch)
	return err
}

func gitTopLevel(ctx context.Context, dir string) (string, error) {
	return runGit(ctx, dir, nil, "rev-parse", "--show-toplevel")
}

func gitStagePath(ctx context.Context, path, dir string) error {
	_, err := runGit(ctx, dir, nil, "add", "--", path)
	return err
}

func gitUnstagePath(ctx context.Context, path, dir string) error {
	_, err := runGit(ctx, dir, nil, "rm", "-q", "--cached", "--", path)
	return err
}

// gitCommitPath commits only path, attributed to the given author.
func gitCommitPath(ctx context.Context, msg, path, authorName, authorEmail, dir string) error {
	env := []string{
		"GIT_AUTHOR_NAME=" + authorName,
		"GIT_AUTHOR_EMAIL=" + authorEmail,
		"GIT_COMMITTER_NAME=" + authorName,
		"GIT_COMMITTER_EMAIL=" + authorEmail,
	}
	_, err := runGit(ctx, dir, env,
		"-c", "commit.gpgsign=false",
		"commit", "--no-verify", "-q", "-m", msg, "--", path)
	return err
}

func gitRevParseHEAD(ctx context.Context, dir string) (string, error) {
	return runGit(ctx, dir, nil, "rev-parse", "HEAD")
}

// gitPush pushes HEAD to branch on the remote URL without needing a
// configured remote.
func gitPush(ctx context.Context, remoteURL, branch, dir string) error {
	_, err := runGit(ctx, dir, nil, "push", "-q", remoteURL, "HEAD:refs/heads/"+branch)
	return err
}
