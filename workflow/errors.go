package workflow

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError blocks a save before any I/O is issued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) error {
	return errors.WithStack(&ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// AsValidationError unwraps err to a *ValidationError, if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	v, ok := errors.Cause(err).(*ValidationError)
	return v, ok
}

// UploadFailure is one attachment that did not reach the blob store. The row keeps its previous key.
type UploadFailure struct {
	RowKey   string
	FileName string
	Err      error
}

func (e *UploadFailure) Error() string {
	return fmt.Sprintf("upload %s for row %s: %v", e.FileName, e.RowKey, e.Err)
}

func (e *UploadFailure) Cause() error { return e.Err }

// WriteFailure is a failed repository or audit write. Other rows carry on.
type WriteFailure struct {
	Op       Op
	RecordID string
	Name     string
	Err      error
}

func (e *WriteFailure) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("%s %q (%s): %v", e.Op, e.Name, e.RecordID, e.Err)
}

func (e *WriteFailure) Cause() error { return e.Err }
