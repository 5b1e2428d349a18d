package common

// ZigZag maps the zigzag scan index of a DCT coefficient to its row-major
// position in the 8x8 block
var ZigZag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// DecodeDC reads one DC difference (T.81 F.2.2.1)
func DecodeDC(br *BitReader, table *HuffmanTable) (int, error) {
	category, err := br.Decode(table)
	if err != nil {
		return 0, err
	}
	if category > 16 {
		return 0, ErrHuffmanDecode
	}
	return br.ReceiveExtend(int(category))
}

// DecodeAC reads the AC coefficients of one block into block, in row-major
// order and unquantized (T.81 F.2.2.2)
func DecodeAC(br *BitReader, block *[64]int32, table *HuffmanTable) error {
	for k := 1; k < 64; {
		rs, err := br.Decode(table)
		if err != nil {
			return err
		}
		run, size := int(rs>>4), int(rs&0x0F)
		if size == 0 {
			if run != 15 {
				return nil // EOB
			}
			k += 16
			continue
		}
		k += run
		if k > 63 {
			return ErrHuffmanDecode
		}
		v, err := br.ReceiveExtend(size)
		if err != nil {
			return err
		}
		block[ZigZag[k]] = int32(v)
		k++
	}
	return nil
}
