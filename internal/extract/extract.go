// Package extract runs the external requirement extraction process and
// decodes its output into raw records.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/logger"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// Request is one extraction run.
type Request struct {
	ProjectID string
	UserID    string
	Files     []string
	Prompt    string
}

// Runner produces raw requirement records for a request.
type Runner interface {
	Run(ctx context.Context, req Request) ([]requirement.RawRecord, error)
}

// maxStderr bounds how much of the collaborator's stderr is kept for logs.
const maxStderr = 4096

// CommandRunner runs a configured command line, e.g. "python3 bulk_extractor.py",
// as: <command> <files...> --user-id <uid> --project-id <pid> --prompt <prompt>.
// The command prints JSON on stdout.
type CommandRunner struct {
	Command string
	Timeout time.Duration
	Log     *logger.Logger
}

// Run executes the command. Every failure, including a timeout, is reported
// as a single ExtractionFailedError; stderr only reaches the log.
func (r *CommandRunner) Run(ctx context.Context, req Request) ([]requirement.RawRecord, error) {
	log := r.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("project_id", req.ProjectID)

	argv := strings.Fields(r.Command)
	if len(argv) == 0 {
		return nil, errors.NewExtractionFailed("extractor not configured", nil)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(argv[1:len(argv):len(argv)], req.Files...)
	args = append(args,
		"--user-id", req.UserID,
		"--project-id", req.ProjectID,
		"--prompt", req.Prompt,
	)

	cmd := exec.CommandContext(ctx, argv[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren holding the pipes open must not outlive the deadline.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		cause := err
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = ctxErr
		}
		log.Error("extractor failed",
			"error", cause,
			"elapsed", elapsed.String(),
			"stderr", truncate(stderr.String(), maxStderr))
		return nil, errors.NewExtractionFailed("extraction process failed", cause)
	}

	records, err := Decode(stdout.Bytes())
	if err != nil {
		log.Error("extractor output malformed",
			"error", err,
			"stdout_bytes", stdout.Len(),
			"stderr", truncate(stderr.String(), maxStderr))
		return nil, errors.NewExtractionFailed("extraction output was not valid JSON", err)
	}

	log.Info("extractor finished", "records", len(records), "elapsed", elapsed.String())
	return records, nil
}

// Decode parses collaborator output: either a bare array of records or an
// object carrying the array under "requirements" or "result".
func Decode(data []byte) ([]requirement.RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, stderrors.New("empty output")
	}

	switch data[0] {
	case '[':
		var records []requirement.RawRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return nonNil(records), nil
	case '{':
		var envelope struct {
			Requirements *[]requirement.RawRecord `json:"requirements"`
			Result       *[]requirement.RawRecord `json:"result"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		switch {
		case envelope.Requirements != nil:
			return nonNil(*envelope.Requirements), nil
		case envelope.Result != nil:
			return nonNil(*envelope.Result), nil
		}
		return nil, stderrors.New(`object has neither "requirements" nor "result"`)
	default:
		return nil, fmt.Errorf("unexpected leading byte %q", data[0])
	}
}

func nonNil(records []requirement.RawRecord) []requirement.RawRecord {
	if records == nil {
		return []requirement.RawRecord{}
	}
	return records
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
