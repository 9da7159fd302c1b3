package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a GenEx error code.
type ErrorCode string

const (
	ErrValidation        ErrorCode = "VALIDATION"         // 400
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT" // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrEmptyHistory      ErrorCode = "EMPTY_HISTORY"      // 404
	ErrEmptyInput        ErrorCode = "EMPTY_INPUT"        // 404
	ErrConflict          ErrorCode = "CONFLICT"           // 409
	ErrRateLimited       ErrorCode = "RATE_LIMITED"       // 429
	ErrCorruptStore      ErrorCode = "CORRUPT_STORE"      // 500
	ErrExportFailed      ErrorCode = "EXPORT_FAILED"      // 500
	ErrInternal          ErrorCode = "INTERNAL"           // 500
	ErrExtractionFailed  ErrorCode = "EXTRACTION_FAILED"  // 502
	ErrExportTimeout     ErrorCode = "EXPORT_TIMEOUT"     // 504
)

// Error represents a structured error with code, status, and details.
// The cause is kept for logs and errors.Unwrap; it is never rendered to callers.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Cause returns the underlying cause, if any.
func (e *Error) Cause() error {
	return e.cause
}

// NewValidation creates a 400 error for a bad input shape or a missing required field.
func NewValidation(msg string) *Error {
	return &Error{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewRecordValidation creates a 400 error pointing at one record of a batch.
func NewRecordValidation(index int, msg string) *Error {
	return &Error{
		Code:    ErrValidation,
		Status:  400,
		Message: fmt.Sprintf("requirement %d: %s", index, msg),
		Details: map[string]any{"index": index},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnsupportedFormat creates a 400 error for an unknown export format.
func NewUnsupportedFormat(format string) *Error {
	return &Error{
		Code:    ErrUnsupportedFormat,
		Status:  400,
		Message: fmt.Sprintf("unsupported export format %q (supported: docx, pdf, jira_json)", format),
		Details: map[string]any{"format": format},
	}
}

// NewNotFound creates a 404 error for an unknown project, requirement or batch.
func NewNotFound(kind, identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewEmptyHistory creates a 404 error for a requirement without versions.
func NewEmptyHistory(requirementID string) *Error {
	return &Error{
		Code:    ErrEmptyHistory,
		Status:  404,
		Message: fmt.Sprintf("requirement %s has no versions", requirementID),
		Details: map[string]any{"requirement_id": requirementID},
	}
}

// NewEmptyInput creates a 404 error for an export with nothing to render.
func NewEmptyInput(projectID string) *Error {
	return &Error{
		Code:    ErrEmptyInput,
		Status:  404,
		Message: "no requirements found for this project",
		Details: map[string]any{"project_id": projectID},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *Error {
	return &Error{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewRateLimited creates a 429 error.
func NewRateLimited() *Error {
	return &Error{
		Code:    ErrRateLimited,
		Status:  429,
		Message: "too many export requests, retry later",
	}
}

// NewCorruptStore creates a 500 error when the history store root exists
// but is not a usable git repository.
func NewCorruptStore(cause error) *Error {
	return &Error{
		Code:    ErrCorruptStore,
		Status:  500,
		Message: "history store exists but is not a valid repository",
		cause:   cause,
	}
}

// NewExportFailed creates a 500 error for a failed write or commit.
// Details carry the project and format, never filesystem paths.
func NewExportFailed(projectID, format, step string, cause error) *Error {
	return &Error{
		Code:    ErrExportFailed,
		Status:  500,
		Message: fmt.Sprintf("export failed during %s for project %s (format %s)", step, projectID, format),
		Details: map[string]any{"project_id": projectID, "format": format, "step": step},
		cause:   cause,
	}
}

// NewExtractionFailed creates a 502 error for any failure of the external extractor.
func NewExtractionFailed(msg string, cause error) *Error {
	return &Error{
		Code:    ErrExtractionFailed,
		Status:  502,
		Message: msg,
		cause:   cause,
	}
}

// NewExportTimeout creates a 504 error when the export pipeline exceeds its deadline.
func NewExportTimeout(projectID string) *Error {
	return &Error{
		Code:    ErrExportTimeout,
		Status:  504,
		Message: fmt.Sprintf("export for project %s timed out", projectID),
		Details: map[string]any{"project_id": projectID},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is checks if an error is an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}
