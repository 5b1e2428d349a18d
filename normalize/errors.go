package normalize

import (
	"errors"
	"fmt"
)

var (
	ErrNilFrame               = errors.New("nil frame")
	ErrInvalidDimensions      = errors.New("invalid image dimensions")
	ErrLengthMismatch         = errors.New("pixel buffer does not match dimensions")
	ErrUnsupportedSamples     = errors.New("unsupported samples per pixel")
	ErrUnsupportedBitDepth    = errors.New("unsupported bits allocated")
	ErrUnsupportedPhotometric = errors.New("unsupported photometric interpretation")
	ErrWindow                 = errors.New("cannot map samples to 8 bits")
)

// Error reports a frame that could not be converted to grayscale
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("normalize: %v", e.Err)
	}
	return fmt.Sprintf("normalize %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
