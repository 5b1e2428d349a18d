package lossless

import (
	"fmt"

	"github.com/cocosip/go-dicom-cards/jpeg/common"
)

// bitReader reads MSB-first bits from JPEG-LS scan data. After a 0xFF byte
// the encoder stuffs a 0 bit, so the following byte carries only 7 bits; a
// 0xFF followed by a byte with its high bit set is a marker.
type bitReader struct {
	data   []byte
	pos    int
	acc    uint32
	n      int
	prevFF bool
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) fill() error {
	if r.pos >= len(r.data) {
		return fmt.Errorf("%w: scan data exhausted", common.ErrInvalidData)
	}
	b := r.data[r.pos]
	if r.prevFF {
		if b&0x80 != 0 {
			return fmt.Errorf("%w: marker inside scan data", common.ErrInvalidData)
		}
		r.acc, r.n = uint32(b), 7
	} else {
		r.acc, r.n = uint32(b), 8
	}
	r.prevFF = b == 0xFF
	r.pos++
	return nil
}

func (r *bitReader) readBit() (int, error) {
	if r.n == 0 {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	r.n--
	return int(r.acc>>uint(r.n)) & 1, nil
}

func (r *bitReader) readBits(n int) (int, error) {
	v := 0
	for i := 0; i < n; i++ {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | bit
	}
	return v, nil
}

// decodeValue reads one limited-length Golomb code (A.5.3). Codes with
// limit-qbpp-1 or more leading zeros carry the mapped value minus one in
// qbpp bits.
func (r *bitReader) decodeValue(k, limit, qbpp int) (int, error) {
	high := 0
	for {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		high++
		if high > limit {
			return 0, fmt.Errorf("%w: Golomb code longer than %d bits", common.ErrInvalidData, limit)
		}
	}
	if high >= limit-qbpp-1 {
		v, err := r.readBits(qbpp)
		return v + 1, err
	}
	low, err := r.readBits(k)
	if err != nil {
		return 0, err
	}
	return high<<uint(k) | low, nil
}

// markerOffset returns the index of the first marker at or after the
// current position
func (r *bitReader) markerOffset() int {
	for i := r.pos; i+1 < len(r.data); i++ {
		if r.data[i] == 0xFF && r.data[i+1]&0x80 != 0 {
			return i
		}
	}
	return len(r.data)
}
