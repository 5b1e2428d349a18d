package payload

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyImage         = errors.New("empty image")
	ErrNotPayload         = errors.New("not a PNG data URI")
	ErrUnknownCompression = errors.New("unknown compression level")
)

// EncodeError reports a failure to serialize an image. Path is filled in by
// callers that know the source file.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encode payload: %v", e.Err)
	}
	return fmt.Sprintf("encode payload %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
