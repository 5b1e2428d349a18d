package pixel

import (
	"errors"
	"fmt"
)

var (
	// ErrFragments is returned when the fragments of frame zero cannot be found
	ErrFragments = errors.New("fragment count does not match frames")

	// ErrPixelModule is returned when the image pixel module attributes do
	// not describe the pixel data, such as zero rows or too few bytes
	ErrPixelModule = errors.New("invalid image pixel module")
)

// DecodeError reports pixel data that is absent, uses an unsupported
// transfer syntax, or failed to decode.
type DecodeError struct {
	Path           string
	TransferSyntax string
	Err            error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode pixel data %s (%s): %v", e.Path, e.TransferSyntax, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
