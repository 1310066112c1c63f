package archive

import (
	"errors"
	"fmt"
)

// SourceFault reports a failed page request. It is fatal for the run:
// nothing is persisted after a SourceFault.
type SourceFault struct {
	// Cursor is the before id of the failed request ("" for the first page).
	Cursor string

	// Page is the 1-based number of the request that failed.
	Page int

	Err error
}

func (e *SourceFault) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("source fault on page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("source fault on page %d (before %s): %v", e.Page, e.Cursor, e.Err)
}

func (e *SourceFault) Unwrap() error {
	return e.Err
}

// IsSourceFault returns true if err wraps a *SourceFault.
func IsSourceFault(err error) bool {
	var f *SourceFault
	return errors.As(err, &f)
}

// PersistFault reports a local failure while computing or writing the
// archive: the digest, the asset directories, the JSON records or the
// archive.db snapshot. The source was read successfully.
type PersistFault struct {
	// Op names the step that failed, e.g. "write records".
	Op  string
	Err error
}

func (e *PersistFault) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistFault) Unwrap() error {
	return e.Err
}

// IsPersistFault returns true if err wraps a *PersistFault.
func IsPersistFault(err error) bool {
	var f *PersistFault
	return errors.As(err, &f)
}
