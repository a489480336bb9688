package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Semu error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrEmbeddingMismatch ErrorCode = "EMBEDDING_MISMATCH" // 409
	ErrMalformedInput    ErrorCode = "MALFORMED_INPUT"    // 422
	ErrMissingIdentity   ErrorCode = "MISSING_IDENTITY"   // 422
	ErrNoInput           ErrorCode = "NO_INPUT"           // 422
	ErrCancelled         ErrorCode = "CANCELLED"          // 499
	ErrInternal          ErrorCode = "INTERNAL"           // 500
	ErrUpstream          ErrorCode = "UPSTREAM"           // 502
)

// SemuError represents a structured error with code, status, and details.
type SemuError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *SemuError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SemuError {
	return &SemuError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing file, directory or collection.
func NewNotFound(identifier string) *SemuError {
	return &SemuError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewEmbeddingMismatch creates a 409 error when a collection was built with a
// different embedder than the one in use.
func NewEmbeddingMismatch(collection, stored, current string) *SemuError {
	return &SemuError{
		Code:   ErrEmbeddingMismatch,
		Status: 409,
		Message: fmt.Sprintf("collection %q was built with embedder %q, current embedder is %q",
			collection, stored, current),
		Details: map[string]any{"collection": collection, "stored": stored, "current": current},
	}
}

// NewMalformedInput creates a 422 error for a source file or record that
// cannot be parsed or decoded.
func NewMalformedInput(filename string, cause error) *SemuError {
	msg := fmt.Sprintf("malformed input: %s", filename)
	if cause != nil {
		msg = fmt.Sprintf("malformed input: %s: %v", filename, cause)
	}
	return &SemuError{
		Code:    ErrMalformedInput,
		Status:  422,
		Message: msg,
		Details: map[string]any{"filename": filename},
	}
}

// NewMissingIdentity creates a 422 error for a record without an id.
func NewMissingIdentity(filename string) *SemuError {
	return &SemuError{
		Code:    ErrMissingIdentity,
		Status:  422,
		Message: fmt.Sprintf("no id recognized in %s", filename),
		Details: map[string]any{"filename": filename},
	}
}

// NewNoInput creates a 422 error when an ingestion pass found nothing to ingest.
func NewNoInput(dirs ...string) *SemuError {
	return &SemuError{
		Code:    ErrNoInput,
		Status:  422,
		Message: "no documents ingested",
		Details: map[string]any{"dirs": dirs},
	}
}

// NewCancelled creates a 499 error when an operation is interrupted.
func NewCancelled(op string) *SemuError {
	return &SemuError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
		Details: map[string]any{"operation": op},
	}
}

// NewUpstream creates a 502 error for failures of the law API.
func NewUpstream(target string, err error) *SemuError {
	msg := "upstream request failed"
	if err != nil {
		msg = fmt.Sprintf("upstream request failed: %v", err)
	}
	return &SemuError{
		Code:    ErrUpstream,
		Status:  502,
		Message: msg,
		Details: map[string]any{"target": target},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The original error is kept in Details for logging; the message stays generic.
func NewInternal(err error) *SemuError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &SemuError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or any error it wraps) is a SemuError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SemuError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// As returns the SemuError in err's chain, if any.
func As(err error) (*SemuError, bool) {
	var sErr *SemuError
	if stderrors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}
