package common

import "errors"

// Common errors
var (
	ErrInvalidMarker     = errors.New("invalid JPEG marker")
	ErrInvalidSOI        = errors.New("missing SOI marker")
	ErrInvalidSOF        = errors.New("invalid Start of Frame")
	ErrInvalidDHT        = errors.New("invalid Huffman table")
	ErrInvalidSOS        = errors.New("invalid Start of Scan")
	ErrUnsupportedFormat = errors.New("unsupported JPEG format")
	ErrInvalidData       = errors.New("invalid JPEG data")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrInvalidComponents = errors.New("invalid number of components")
	ErrInvalidPredictor  = errors.New("invalid predictor value")
	ErrHuffmanDecode     = errors.New("Huffman decode error")
	ErrMissingTable      = errors.New("Huffman table not defined")
)
