package common

import "fmt"

// HuffmanTable is a canonical JPEG Huffman table (ITU T.81 Annex C)
type HuffmanTable struct {
	// Number of codes of each length (1-16 bits)
	Bits [16]int
	// Symbols in order of increasing code length
	Values []byte

	minCode [16]int32
	maxCode [16]int32 // -1 when no code has this length
	valPtr  [16]int32
}

// NewHuffmanTable builds the decoding tables for bits/values
func NewHuffmanTable(bits [16]int, values []byte) (*HuffmanTable, error) {
	total := 0
	for _, n := range bits {
		total += n
	}
	if total == 0 || total > 256 || total != len(values) {
		return nil, fmt.Errorf("%w: %d codes for %d values", ErrInvalidDHT, total, len(values))
	}

	h := &HuffmanTable{Bits: bits, Values: values}
	code := int32(0)
	p := int32(0)
	for l := 0; l < 16; l++ {
		if bits[l] == 0 {
			h.maxCode[l] = -1
		} else {
			h.valPtr[l] = p
			h.minCode[l] = code
			code += int32(bits[l])
			p += int32(bits[l])
			h.maxCode[l] = code - 1
		}
		if code > 1<<uint(l+1) {
			return nil, fmt.Errorf("%w: code space overflow at length %d", ErrInvalidDHT, l+1)
		}
		code <<= 1
	}
	return h, nil
}

// ParseDHT parses every table in a DHT segment and calls fn for each
func ParseDHT(seg []byte, fn func(class, id int, table *HuffmanTable) error) error {
	for off := 0; off < len(seg); {
		class := int(seg[off] >> 4)
		id := int(seg[off] & 0x0F)
		off++
		if off+16 > len(seg) {
			return ErrInvalidDHT
		}

		var bits [16]int
		total := 0
		for i := 0; i < 16; i++ {
			bits[i] = int(seg[off+i])
			total += bits[i]
		}
		off += 16
		if off+total > len(seg) {
			return ErrInvalidDHT
		}

		values := make([]byte, total)
		copy(values, seg[off:off+total])
		off += total

		table, err := NewHuffmanTable(bits, values)
		if err != nil {
			return err
		}
		if err := fn(class, id, table); err != nil {
			return err
		}
	}
	return nil
}

// BitReader reads MSB-first bits from entropy-coded data, removing the
// 0x00 stuffed after every 0xFF. It stops at the first marker.
type BitReader struct {
	data  []byte
	pos   int
	bits  uint32
	nBits int
}

// NewBitReader creates a BitReader over entropy-coded scan data
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

func (b *BitReader) fill() error {
	if b.pos >= len(b.data) {
		return fmt.Errorf("%w: scan data exhausted", ErrInvalidData)
	}
	c := b.data[b.pos]
	if c == 0xFF {
		if b.pos+1 >= len(b.data) || b.data[b.pos+1] != 0x00 {
			return fmt.Errorf("%w: marker inside scan data", ErrInvalidData)
		}
		b.pos++
	}
	b.pos++
	b.bits = b.bits<<8 | uint32(c)
	b.nBits += 8
	return nil
}

// ReadBits reads n (0-16) bits as an unsigned integer
func (b *BitReader) ReadBits(n int) (uint32, error) {
	for b.nBits < n {
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	b.nBits -= n
	return (b.bits >> uint(b.nBits)) & (1<<uint(n) - 1), nil
}

// Decode reads one Huffman-coded symbol
func (b *BitReader) Decode(table *HuffmanTable) (byte, error) {
	code := int32(0)
	for l := 0; l < 16; l++ {
		bit, err := b.ReadBits(1)
		if err != nil {
			return 0, err
		}
		code = code<<1 | int32(bit)
		if table.maxCode[l] >= 0 && code <= table.maxCode[l] {
			return table.Values[table.valPtr[l]+code-table.minCode[l]], nil
		}
	}
	return 0, ErrHuffmanDecode
}

// ReceiveExtend reads ssss additional bits and sign-extends them (T.81 F.2.2.1)
func (b *BitReader) ReceiveExtend(ssss int) (int, error) {
	if ssss == 0 {
		return 0, nil
	}
	v, err := b.ReadBits(ssss)
	if err != nil {
		return 0, err
	}
	val := int(v)
	if val < 1<<uint(ssss-1) {
		val -= 1<<uint(ssss) - 1
	}
	return val, nil
}
