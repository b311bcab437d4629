package services

import "errors"

var (
	ErrOwnerRequired     = errors.New("import owner is required")
	ErrBookNotFound      = errors.New("book not found")
	ErrCheckoutNotFound  = errors.New("checkout not found")
	ErrAlreadyCheckedOut = errors.New("this book is already checked out")
	ErrNotBorrower       = errors.New("you can only return books you checked out")
	ErrAlreadyReturned   = errors.New("this book has already been returned")
)

// SourceError means the import file is missing or cannot be read. Nothing
// was imported.
type SourceError struct {
	Path   string
	Reason string // "File not found", "File not readable"
	Err    error
}

func (e *SourceError) Error() string {
	return e.Reason + ": " + e.Path
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// StructureError means the file is empty or lacks a required column.
// Nothing was imported.
type StructureError struct {
	Column  string // first missing column, empty when the file had no rows
	Message string
}

func (e *StructureError) Error() string {
	return e.Message
}

// ValidationError rejects a single row. It never aborts a batch.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsFatalImportError reports whether err stopped an import before any row
// was processed, as opposed to a storage failure during the run.
func IsFatalImportError(err error) bool {
	var se *SourceError
	var st *StructureError
	return errors.As(err, &se) || errors.As(err, &st)
}
