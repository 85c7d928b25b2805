package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestBagBrowserError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidDateRange, "bad range")
	expected := "[VALIDATION:INVALID_DATE_RANGE] bad range"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBagBrowserError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("unable to open database file")
	err := NewStorageError(CodeBackendUnavailable, "open failed", cause)
	expected := "[STORAGE:BACKEND_UNAVAILABLE] open failed: unable to open database file"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBagBrowserError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewIngestError(CodeDuplicateBag, "duplicate", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestBagBrowserError_Is(t *testing.T) {
	err1 := NewStorageError(CodeReadOnlyViolation, "first", nil)
	err2 := NewStorageError(CodeReadOnlyViolation, "second", nil)
	err3 := NewStorageError(CodeBackendUnavailable, "different code", nil)

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryManifest, CodeFetchFailed, true},
		{ErrCategoryManifest, CodeManifestNotFound, false},
		{ErrCategoryStorage, CodeBackendBusy, true},
		{ErrCategoryStorage, CodeBackendUnavailable, false},
		{ErrCategoryStorage, CodeReadOnlyViolation, false},
		{ErrCategoryIngest, CodeDuplicateBag, false},
		{ErrCategoryValidation, CodeInvalidDateRange, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("store bag: %w", NewIngestError(CodeDuplicateBag, "dup", nil))
	if !IsDuplicate(wrapped) {
		t.Error("IsDuplicate should see through fmt.Errorf wrapping")
	}
	if IsReadOnlyViolation(wrapped) || IsNotFound(wrapped) || IsValidation(wrapped) {
		t.Error("unrelated predicates should be false")
	}

	if !IsValidation(NewValidationError(CodeInvalidPage, "page must be positive")) {
		t.Error("IsValidation mismatch")
	}
	if !IsNotFound(NewManifestError(CodeManifestNotFound, "gone", nil)) {
		t.Error("IsNotFound mismatch")
	}
	if !IsNotFound(NewQueryError(CodeBagNotFound, "no such bag", nil)) {
		t.Error("IsNotFound should cover missing bags")
	}
	if !IsReadOnlyViolation(NewStorageError(CodeReadOnlyViolation, "ro", nil)) {
		t.Error("IsReadOnlyViolation mismatch")
	}
	if IsValidation(fmt.Errorf("plain error")) {
		t.Error("plain errors are not validation errors")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := NewQueryError(CodeQueryFailed, "aggregate failed", nil)
	if GetCategory(err) != ErrCategoryQuery {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryQuery)
	}
	if GetCode(err) != CodeQueryFailed {
		t.Errorf("got %q, want %q", GetCode(err), CodeQueryFailed)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-BagBrowserError should return empty category and code")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewValidationError(CodeInvalidDateRange, "bad range")
	detailed := err.WithDetails(map[string]interface{}{"created_after": "2002-01-01"})

	if detailed.Details["created_after"] != "2002-01-01" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestNewInternalError(t *testing.T) {
	i := NewInternalError("unexpected", fmt.Errorf("boom"))
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
