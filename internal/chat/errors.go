package chat

import (
	"errors"
	"fmt"
)

// IntegrityFault reports a message whose author has no Person entry.
// Resolution guarantees this cannot happen, so seeing one means the archive
// is corrupt.
type IntegrityFault struct {
	MessageID string
	AuthorID  string
}

func (e *IntegrityFault) Error() string {
	return fmt.Sprintf("integrity fault: message %q references unknown author %q", e.MessageID, e.AuthorID)
}

// IsIntegrityFault returns true if err wraps an *IntegrityFault.
func IsIntegrityFault(err error) bool {
	var f *IntegrityFault
	return errors.As(err, &f)
}
