package codec

import "errors"

var (
	// ErrCodecNotFound is returned when no codec is registered for a transfer syntax
	ErrCodecNotFound = errors.New("codec not found")

	// ErrEncodeUnsupported is returned by the Encode half of decode-only codecs
	ErrEncodeUnsupported = errors.New("encoding not supported")

	// ErrInvalidParameter is returned when frame attributes are inconsistent
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidDimensions is returned when a decoded frame disagrees with Rows/Columns
	ErrInvalidDimensions = errors.New("invalid image dimensions")

	// ErrUnsupportedSamples is returned when the component count cannot be handled
	ErrUnsupportedSamples = errors.New("unsupported samples per pixel")

	// ErrUnsupportedBitDepth is returned when bits allocated is not 8 or 16
	ErrUnsupportedBitDepth = errors.New("unsupported bits allocated")

	// ErrUnsupportedFormat is returned when a bitstream uses a mode the decoder lacks
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrLengthMismatch is returned when frame bytes do not match the declared dimensions
	ErrLengthMismatch = errors.New("frame length does not match declared dimensions")

	// ErrEmptyFrame is returned for a frame without compressed bytes
	ErrEmptyFrame = errors.New("empty frame")
)
