package metadata

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTag  = errors.New("tag not present")
	ErrInvalidDate = errors.New("study date is not YYYYMMDD")
)

// Error reports a required tag that is absent or malformed
type Error struct {
	Path string
	Tag  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("metadata %s: %s: %v", e.Path, e.Tag, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
