package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: "requirement not found: abc",
	}

	expected := "NOT_FOUND: requirement not found: abc"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("feature is required")

	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "feature is required" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewRecordValidation(t *testing.T) {
	err := NewRecordValidation(2, "type is required")

	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["index"] != 2 {
		t.Errorf("Details[index] = %v, want 2", err.Details["index"])
	}
	if !strings.HasPrefix(err.Message, "requirement 2:") {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("requirement", "01ABC")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "01ABC" {
		t.Errorf("Details[identifier] = %v", err.Details["identifier"])
	}
	if err.Details["kind"] != "requirement" {
		t.Errorf("Details[kind] = %v", err.Details["kind"])
	}
}

func TestStatusCodes(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		name   string
		err    *Error
		code   ErrorCode
		status int
	}{
		{"unsupported format", NewUnsupportedFormat("xlsx"), ErrUnsupportedFormat, 400},
		{"empty history", NewEmptyHistory("r1"), ErrEmptyHistory, 404},
		{"empty input", NewEmptyInput("p1"), ErrEmptyInput, 404},
		{"conflict", NewConflict("x"), ErrConflict, 409},
		{"rate limited", NewRateLimited(), ErrRateLimited, 429},
		{"corrupt store", NewCorruptStore(cause), ErrCorruptStore, 500},
		{"export failed", NewExportFailed("p1", "docx", "commit", cause), ErrExportFailed, 500},
		{"internal", NewInternal(cause), ErrInternal, 500},
		{"extraction failed", NewExtractionFailed("extractor exited with status 1", cause), ErrExtractionFailed, 502},
		{"export timeout", NewExportTimeout("p1"), ErrExportTimeout, 504},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
		})
	}
}

func TestNewExportFailed_DoesNotLeakCause(t *testing.T) {
	cause := fmt.Errorf("open /var/lib/genex/history/p1/file.docx: permission denied")
	err := NewExportFailed("p1", "docx", "write", cause)

	if strings.Contains(err.Error(), "/var/lib") {
		t.Errorf("Error() leaks path: %q", err.Error())
	}
	if err.Details["project_id"] != "p1" || err.Details["format"] != "docx" {
		t.Errorf("Details = %v", err.Details)
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	err := NewNotFound("batch", "p1")

	if !Is(err, ErrNotFound) {
		t.Error("Is(err, ErrNotFound) should be true")
	}
	if Is(err, ErrInternal) {
		t.Error("Is(err, ErrInternal) should be false")
	}

	wrapped := fmt.Errorf("loading: %w", err)
	if !Is(wrapped, ErrNotFound) {
		t.Error("Is should see through wrapping")
	}

	if Is(fmt.Errorf("plain"), ErrNotFound) {
		t.Error("Is(plain error) should be false")
	}
	if Is(nil, ErrNotFound) {
		t.Error("Is(nil) should be false")
	}
}

func TestAs(t *testing.T) {
	e, ok := As(fmt.Errorf("wrap: %w", NewConflict("x")))
	if !ok {
		t.Fatal("As should find the wrapped error")
	}
	if e.Code != ErrConflict {
		t.Errorf("Code = %q", e.Code)
	}
}
