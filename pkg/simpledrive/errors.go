package simpledrive

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrNotFound indicates a referenced item or parent folder does not exist
	ErrNotFound = errors.New("item not found")

	// ErrAccessDenied indicates the acting user's effective permission is insufficient
	ErrAccessDenied = errors.New("access denied")

	// ErrValidation indicates malformed or missing attributes
	ErrValidation = errors.New("validation failed")

	// ErrStorageFailure indicates a blob upload, delete or signed URL error
	ErrStorageFailure = errors.New("storage failure")

	// ErrBlobNotFound is returned by blob stores for unknown keys
	ErrBlobNotFound = errors.New("blob not found")

	// ErrSharedLinkInUse is returned by repositories when a link token is
	// already held by another item
	ErrSharedLinkInUse = fmt.Errorf("shared link already in use: %w", ErrValidation)
)

// ItemError represents an error related to an item operation
type ItemError struct {
	ItemID uuid.UUID
	Op     string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item operation %s failed for item %s: %v", e.Op, e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations.
// It always unwraps to ErrStorageFailure as well as the backend error.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageFailure, e.Err}
}

// validationError wraps ErrValidation with a reason.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
