package errors

import "fmt"

// Error codes
const (
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"

	// Interchange-engine error codes
	ErrCodeArchiveInvalid  = "ARCHIVE_INVALID"
	ErrCodeArchiveCorrupt  = "ARCHIVE_CORRUPT"
	ErrCodeEmptyCollection = "EMPTY_COLLECTION"
	ErrCodeModelMissing    = "MODEL_MISSING"
	ErrCodeDeckNotFound    = "DECK_NOT_FOUND"
	ErrCodeEmptyDeck       = "EMPTY_DECK"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string // Error code (e.g., "NOT_FOUND", "ARCHIVE_INVALID")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code, so callers can compare against a sentinel
// without caring about the wrapped cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  404,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  400,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  500,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  400,
	}
}

// NewArchiveInvalidError reports an archive with no recognizable database member.
func NewArchiveInvalidError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeArchiveInvalid,
		Message: message,
		Status:  400,
	}
}

// NewArchiveCorruptError reports an archive whose database member failed to decompress.
func NewArchiveCorruptError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeArchiveCorrupt,
		Message: "archive database member is corrupt",
		Status:  400,
		Err:     err,
	}
}

// NewEmptyCollectionError reports an archive that parsed but contained zero notes.
func NewEmptyCollectionError() *AppError {
	return &AppError{
		Code:    ErrCodeEmptyCollection,
		Message: "collection contains no notes",
		Status:  400,
	}
}

// NewModelMissingError reports a note whose note type is absent from the model
// map. Not fatal to an import; callers fall back to a two-field model.
func NewModelMissingError(modelID int64) *AppError {
	return &AppError{
		Code:    ErrCodeModelMissing,
		Message: fmt.Sprintf("note type %d missing from model map", modelID),
		Status:  422,
	}
}

// NewDeckNotFoundError reports an export request for an unknown deck.
func NewDeckNotFoundError(deckID int64) *AppError {
	return &AppError{
		Code:    ErrCodeDeckNotFound,
		Message: fmt.Sprintf("deck not found: %d", deckID),
		Status:  404,
	}
}

// NewEmptyDeckError reports an export request for a deck with no cards.
func NewEmptyDeckError(deckID int64) *AppError {
	return &AppError{
		Code:    ErrCodeEmptyDeck,
		Message: fmt.Sprintf("deck %d has no cards to export", deckID),
		Status:  400,
	}
}
