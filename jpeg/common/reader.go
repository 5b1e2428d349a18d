package common

import (
	"encoding/binary"
	"fmt"
)

// Reader walks the marker segments of an in-memory JPEG stream
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadMarker reads the next marker, skipping fill bytes (0xFF padding)
func (r *Reader) ReadMarker() (uint16, error) {
	if r.pos >= len(r.data) || r.data[r.pos] != 0xFF {
		return 0, ErrInvalidMarker
	}
	for r.pos < len(r.data) && r.data[r.pos] == 0xFF {
		r.pos++
	}
	if r.pos >= len(r.data) {
		return 0, ErrInvalidMarker
	}
	b := r.data[r.pos]
	r.pos++
	if b == 0x00 {
		return 0, ErrInvalidMarker
	}
	return 0xFF00 | uint16(b), nil
}

// ReadSegment reads a length-prefixed segment and returns its payload
func (r *Reader) ReadSegment() ([]byte, error) {
	if r.pos+2 > len(r.data) {
		return nil, fmt.Errorf("%w: segment length past end", ErrInvalidData)
	}
	length := int(binary.BigEndian.Uint16(r.data[r.pos:]))
	if length < 2 || r.pos+length > len(r.data) {
		return nil, fmt.Errorf("%w: segment length %d", ErrInvalidData, length)
	}
	seg := r.data[r.pos+2 : r.pos+length]
	r.pos += length
	return seg, nil
}

// Remaining returns the unread bytes. After SOS this is the entropy-coded
// data followed by the trailing markers.
func (r *Reader) Remaining() []byte {
	return r.data[r.pos:]
}
