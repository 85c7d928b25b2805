// Package errors defines the bag browser's structured error type. Every
// error carries a category, a stable code and a retryable flag.
package errors

import "errors"

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryIngest     ErrorCategory = "INGEST"
	ErrCategoryManifest   ErrorCategory = "MANIFEST"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidDateRange  = "INVALID_DATE_RANGE"
	CodeInvalidPage       = "INVALID_PAGE"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeInvalidManifest   = "INVALID_MANIFEST"

	// Storage backend codes
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeReadOnlyViolation  = "READ_ONLY_VIOLATION"
	CodeSchemaMismatch     = "SCHEMA_MISMATCH"
	CodeBackendBusy        = "BACKEND_BUSY"

	// Ingest codes
	CodeDuplicateBag = "DUPLICATE_BAG"

	// Manifest store codes
	CodeManifestNotFound = "MANIFEST_NOT_FOUND"
	CodeFetchFailed      = "FETCH_FAILED"

	// Query codes
	CodeQueryFailed = "QUERY_FAILED"
	CodeBagNotFound = "BAG_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// BagBrowserError is the structured error type used throughout the system.
type BagBrowserError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

func (e *BagBrowserError) Error() string {
	head := "[" + string(e.Category) + ":" + e.Code + "] " + e.Message
	if e.Cause == nil {
		return head
	}
	return head + ": " + e.Cause.Error()
}

func (e *BagBrowserError) Unwrap() error { return e.Cause }

// Is matches any BagBrowserError with the same category and code, so a
// sentinel built with New can be compared against a wrapped one.
func (e *BagBrowserError) Is(target error) bool {
	t, ok := target.(*BagBrowserError)
	return ok && t.Category == e.Category && t.Code == e.Code
}

// WithDetails returns a copy of e carrying details.
func (e *BagBrowserError) WithDetails(details map[string]interface{}) *BagBrowserError {
	cp := *e
	cp.Details = details
	return &cp
}

// retryable lists the codes a caller may retry unchanged.
var retryable = map[ErrorCategory]map[string]bool{
	ErrCategoryManifest: {CodeFetchFailed: true},
	ErrCategoryStorage:  {CodeBackendBusy: true},
}

// New returns an error with no cause.
func New(category ErrorCategory, code, message string) *BagBrowserError {
	return Wrap(category, code, message, nil)
}

// Wrap returns an error recording cause.
func Wrap(category ErrorCategory, code, message string, cause error) *BagBrowserError {
	return &BagBrowserError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable[category][code],
	}
}

func NewValidationError(code, message string) *BagBrowserError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *BagBrowserError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewIngestError(code, message string, cause error) *BagBrowserError {
	return Wrap(ErrCategoryIngest, code, message, cause)
}

func NewManifestError(code, message string, cause error) *BagBrowserError {
	return Wrap(ErrCategoryManifest, code, message, cause)
}

func NewQueryError(code, message string, cause error) *BagBrowserError {
	return Wrap(ErrCategoryQuery, code, message, cause)
}

func NewInternalError(message string, cause error) *BagBrowserError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// find returns the first BagBrowserError in err's chain.
func find(err error) (*BagBrowserError, bool) {
	var be *BagBrowserError
	ok := errors.As(err, &be)
	return be, ok
}

// IsRetryable reports whether err's chain holds a retryable BagBrowserError.
func IsRetryable(err error) bool {
	be, ok := find(err)
	return ok && be.Retryable
}

// GetCategory returns the category of err, or "" for foreign errors.
func GetCategory(err error) ErrorCategory {
	if be, ok := find(err); ok {
		return be.Category
	}
	return ""
}

// GetCode returns the code of err, or "" for foreign errors.
func GetCode(err error) string {
	if be, ok := find(err); ok {
		return be.Code
	}
	return ""
}

func IsValidation(err error) bool { return GetCategory(err) == ErrCategoryValidation }

// IsNotFound covers both a missing manifest and a missing bag.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case CodeManifestNotFound, CodeBagNotFound:
		return true
	}
	return false
}

func IsReadOnlyViolation(err error) bool { return GetCode(err) == CodeReadOnlyViolation }

func IsDuplicate(err error) bool { return GetCode(err) == CodeDuplicateBag }
