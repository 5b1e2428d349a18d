package dcmtest

import (
	"bytes"
	"encoding/binary"
)

// losslessBits covers difference categories 0-16 with codes of 3 to 9 bits
var losslessBits = [16]byte{0, 0, 6, 2, 2, 2, 2, 2, 1}

// EncodeJPEGLossless writes a JPEG Lossless (SOF3) stream with a single
// Huffman table, the given predictor and no point transform. samples holds
// width*height*components interleaved values below 2^precision.
func EncodeJPEGLossless(samples []int, width, height, components, precision, predictor int) []byte {
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8})

	// DHT
	values := make([]byte, 17)
	for i := range values {
		values[i] = byte(i)
	}
	dht := append([]byte{0x00}, losslessBits[:]...)
	dht = append(dht, values...)
	writeSegment(&out, 0xC4, dht)

	// SOF3
	sof := []byte{byte(precision), byte(height >> 8), byte(height), byte(width >> 8), byte(width), byte(components)}
	for c := 0; c < components; c++ {
		sof = append(sof, byte(c+1), 0x11, 0x00)
	}
	writeSegment(&out, 0xC3, sof)

	// SOS
	sos := []byte{byte(components)}
	for c := 0; c < components; c++ {
		sos = append(sos, byte(c+1), 0x00)
	}
	sos = append(sos, byte(predictor), 0x00, 0x00)
	writeSegment(&out, 0xDA, sos)

	codes, lengths := canonicalCodes(losslessBits)
	w := &bitWriter{out: &out}
	at := func(x, y, c int) int { return samples[(y*width+x)*components+c] }
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < components; c++ {
				var pred int
				switch {
				case x == 0 && y == 0:
					pred = 1 << uint(precision-1)
				case y == 0:
					pred = at(x-1, y, c)
				case x == 0:
					pred = at(x, y-1, c)
				default:
					pred = predict(predictor, at(x-1, y, c), at(x, y-1, c), at(x-1, y-1, c))
				}

				diff := (at(x, y, c) - pred) & 0xFFFF
				if diff >= 0x8000 {
					diff -= 0x10000
				}
				if diff == -0x8000 {
					w.write(codes[16], lengths[16])
					continue
				}
				ssss := category(diff)
				w.write(codes[ssss], lengths[ssss])
				if ssss > 0 {
					extra := diff
					if diff < 0 {
						extra = diff - 1
					}
					w.write(uint32(extra)&(1<<uint(ssss)-1), ssss)
				}
			}
		}
	}
	w.flush()

	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func predict(selection, ra, rb, rc int) int {
	switch selection {
	case 2:
		return rb
	case 3:
		return rc
	case 4:
		return ra + rb - rc
	case 5:
		return ra + ((rb - rc) >> 1)
	case 6:
		return rb + ((ra - rc) >> 1)
	case 7:
		return (ra + rb) >> 1
	default:
		return ra
	}
}

func category(diff int) int {
	if diff < 0 {
		diff = -diff
	}
	n := 0
	for diff > 0 {
		n++
		diff >>= 1
	}
	return n
}

func canonicalCodes(bits [16]byte) (codes []uint32, lengths []int) {
	code := uint32(0)
	for l := 0; l < 16; l++ {
		for i := 0; i < int(bits[l]); i++ {
			codes = append(codes, code)
			lengths = append(lengths, l+1)
			code++
		}
		code <<= 1
	}
	return codes, lengths
}

func writeSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.Write([]byte{0xFF, marker})
	l := make([]byte, 2)
	binary.BigEndian.PutUint16(l, uint16(len(payload)+2))
	out.Write(l)
	out.Write(payload)
}

type bitWriter struct {
	out   *bytes.Buffer
	acc   uint32
	nBits int
}

func (w *bitWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | (v>>uint(i))&1
		w.nBits++
		if w.nBits == 8 {
			w.emit(byte(w.acc))
			w.acc, w.nBits = 0, 0
		}
	}
}

func (w *bitWriter) emit(b byte) {
	w.out.WriteByte(b)
	if b == 0xFF {
		w.out.WriteByte(0x00)
	}
}

func (w *bitWriter) flush() {
	if w.nBits == 0 {
		return
	}
	pad := 8 - w.nBits
	w.emit(byte(w.acc<<uint(pad) | (1<<uint(pad) - 1)))
	w.acc, w.nBits = 0, 0
}

// zigzag maps a zigzag scan index to the row-major block position
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// DCBlock returns the DCT coefficients of an 8x8 block of 12-bit samples
// that all equal value
func DCBlock(value int) [64]int {
	var b [64]int
	b[0] = 8 * (value - 2048)
	return b
}

// EncodeJPEGExtended writes a 12-bit JPEG Extended (SOF1) stream from DCT
// coefficients. blocks holds one row-major block per component per MCU, in
// scan order; every component is sampled 1x1 and the quantization table is
// all ones. restart > 0 adds a DRI segment and RSTn markers.
func EncodeJPEGExtended(blocks [][64]int, width, height, components, restart int) []byte {
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8})

	dqt := make([]byte, 65)
	for i := 1; i < len(dqt); i++ {
		dqt[i] = 1
	}
	writeSegment(&out, 0xDB, dqt)

	sof := []byte{12, byte(height >> 8), byte(height), byte(width >> 8), byte(width), byte(components)}
	for c := 0; c < components; c++ {
		sof = append(sof, byte(c+1), 0x11, 0x00)
	}
	writeSegment(&out, 0xC1, sof)

	// DC categories 0-15 with 5-bit codes; every AC run/size with 8-bit codes
	var dcBits, acBits [16]byte
	dcValues := make([]byte, 16)
	for i := range dcValues {
		dcValues[i] = byte(i)
	}
	dcBits[4] = 16
	acValues := []byte{0x00, 0xF0}
	for run := 0; run < 16; run++ {
		for size := 1; size < 16; size++ {
			acValues = append(acValues, byte(run<<4|size))
		}
	}
	acBits[7] = byte(len(acValues))

	dht := append([]byte{0x00}, dcBits[:]...)
	dht = append(dht, dcValues...)
	dht = append(dht, 0x10)
	dht = append(dht, acBits[:]...)
	dht = append(dht, acValues...)
	writeSegment(&out, 0xC4, dht)

	if restart > 0 {
		writeSegment(&out, 0xDD, []byte{byte(restart >> 8), byte(restart)})
	}

	sos := []byte{byte(components)}
	for c := 0; c < components; c++ {
		sos = append(sos, byte(c+1), 0x00)
	}
	sos = append(sos, 0, 63, 0)
	writeSegment(&out, 0xDA, sos)

	dcCodes, dcLengths := canonicalCodes(dcBits)
	acCodes, acLengths := canonicalCodes(acBits)
	acIndex := make(map[byte]int, len(acValues))
	for i, v := range acValues {
		acIndex[v] = i
	}
	writeAC := func(w *bitWriter, symbol byte) {
		i := acIndex[symbol]
		w.write(acCodes[i], acLengths[i])
	}
	magnitude := func(v int) (uint32, int) {
		s := category(v)
		if v < 0 {
			v--
		}
		return uint32(v) & (1<<uint(s) - 1), s
	}

	w := &bitWriter{out: &out}
	preds := make([]int, components)
	for m := 0; m < len(blocks)/components; m++ {
		if restart > 0 && m > 0 && m%restart == 0 {
			w.flush()
			out.Write([]byte{0xFF, byte(0xD0 + (m/restart-1)%8)})
			for i := range preds {
				preds[i] = 0
			}
		}
		for c := 0; c < components; c++ {
			b := blocks[m*components+c]
			bits, s := magnitude(b[0] - preds[c])
			preds[c] = b[0]
			w.write(dcCodes[s], dcLengths[s])
			w.write(bits, s)

			run := 0
			for k := 1; k < 64; k++ {
				v := b[zigzag[k]]
				if v == 0 {
					run++
					continue
				}
				for ; run > 15; run -= 16 {
					writeAC(w, 0xF0)
				}
				bits, s := magnitude(v)
				writeAC(w, byte(run<<4|s))
				w.write(bits, s)
				run = 0
			}
			if run > 0 {
				writeAC(w, 0x00)
			}
		}
	}
	w.flush()

	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}
