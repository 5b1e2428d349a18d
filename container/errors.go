package container

import (
	"errors"
	"fmt"
)

var (
	// ErrIsDirectory is returned when the path names a directory
	ErrIsDirectory = errors.New("path is a directory")

	// ErrNotPart10 is returned when the preamble is not followed by "DICM"
	ErrNotPart10 = errors.New("not a DICOM Part 10 file")

	// ErrEmptyDataset is returned when the parser produced no dataset
	ErrEmptyDataset = errors.New("no dataset")

	// ErrNoTransferSyntax is returned when the file meta carries no transfer syntax
	ErrNoTransferSyntax = errors.New("no transfer syntax")

	// ErrNoPixelData is returned when the pixel data element is absent or empty
	ErrNoPixelData = errors.New("no pixel data")

	// ErrPixelDataType is returned for a pixel data element of an unexpected VR
	ErrPixelDataType = errors.New("unexpected pixel data element")
)

// ParseError reports a file that could not be opened or parsed as DICOM
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
