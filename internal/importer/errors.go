package importer

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat is wrapped by every FormatError.
var ErrInvalidFormat = errors.New("invalid statement format")

// FormatError reports a document that is not a usable statement.
type FormatError struct {
	Format string
	File   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s statement: %s", e.File, e.Format, e.Reason)
	}
	return fmt.Sprintf("%s statement: %s", e.Format, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

// IsFormatError reports whether err is, or wraps, a FormatError.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}
