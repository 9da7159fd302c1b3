// Package ops implements GenEx operations on top of the database, the
// renderer and the export history. Every surface (HTTP, CLI, MCP) calls
// these functions and never touches storage directly.
package ops

import (
	"crypto/rand"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/M0hit1029/GenEx/internal/errors"
	"github.com/M0hit1029/GenEx/internal/extract"
	"github.com/M0hit1029/GenEx/internal/history"
	"github.com/M0hit1029/GenEx/internal/keylock"
	"github.com/M0hit1029/GenEx/internal/logger"
	"github.com/M0hit1029/GenEx/internal/metrics"
	"github.com/M0hit1029/GenEx/internal/requirement"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
	Total   int  `json:"total"`
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// Env carries the collaborators of operations with side effects beyond the
// database. A nil Env, or nil fields, fall back to no-op behavior where one
// exists.
type Env struct {
	History   *history.Store
	Extractor extract.Runner
	Metrics   *metrics.Metrics
	Log       *logger.Logger

	// Locks serializes version appends per requirement id. Left nil, a
	// registry is created on first use.
	Locks *keylock.Registry

	// Now is the clock used for timestamps and document generation.
	Now func() time.Time

	locksOnce sync.Once
}

func (e *Env) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func (e *Env) metrics() *metrics.Metrics {
	if e == nil {
		return nil
	}
	return e.Metrics
}

// appendLocks returns the per-requirement lock registry. A nil Env gets a
// private registry, leaving the immediate transaction as the only guard.
func (e *Env) appendLocks() *keylock.Registry {
	if e == nil {
		return keylock.New()
	}
	e.locksOnce.Do(func() {
		if e.Locks == nil {
			e.Locks = keylock.New()
		}
	})
	return e.Locks
}

func (e *Env) log() *logger.Logger {
	if e == nil || e.Log == nil {
		return logger.NewNop()
	}
	return e.Log
}

// generateULID generates a new ULID.
func generateULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// validProject trims and checks a project id.
func validProject(projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", errors.NewValidation("projectId is required")
	}
	if !requirement.ValidProjectID(projectID) {
		return "", errors.NewValidation("projectId may only contain letters, digits, '.', '_' and '-'")
	}
	return projectID, nil
}

// asError maps field errors to validation errors and wraps anything that is
// not already structured.
func asError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	var fe *requirement.FieldError
	if stderrors.As(err, &fe) {
		return errors.NewValidation(fe.Error())
	}
	return errors.NewInternal(err)
}

func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
