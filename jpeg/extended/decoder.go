package extended

import (
	"fmt"

	"github.com/cocosip/go-dicom-cards/jpeg/baseline"
	"github.com/cocosip/go-dicom-cards/jpeg/common"
)

type component struct {
	id    byte
	quant int
	dc    int
	ac    int
	pred  int
}

// decoder holds the state of one sequential Huffman DCT stream
type decoder struct {
	width      int
	height     int
	precision  int
	restart    int
	components []component
	quant      [4]*[64]int32 // zigzag order
	dcTables   [4]*common.HuffmanTable
	acTables   [4]*common.HuffmanTable
}

// Result is the output of Decode
type Result struct {
	PixelData  []byte // interleaved, 1 byte/sample for 8-bit precision, else 2 bytes LE
	Width      int
	Height     int
	Components int
	Precision  int
}

// Decode decodes a JPEG Extended (Process 2 & 4) stream. 8-bit streams go
// through the standard library decoder with color conversion to RGB;
// 12-bit streams are decoded here and keep their raw components.
func Decode(data []byte) (*Result, error) {
	r := common.NewReader(data)
	d := &decoder{}

	marker, err := r.ReadMarker()
	if err != nil {
		return nil, err
	}
	if marker != common.MarkerSOI {
		return nil, common.ErrInvalidSOI
	}

	for {
		marker, err := r.ReadMarker()
		if err != nil {
			return nil, err
		}

		switch {
		case marker == common.MarkerSOF0 || marker == common.MarkerSOF1:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if err := d.parseSOF(seg); err != nil {
				return nil, err
			}
			if d.precision == 8 {
				return decode8(data)
			}

		case common.IsSOF(marker):
			return nil, fmt.Errorf("%w: frame marker %#04x is not sequential Huffman DCT", common.ErrUnsupportedFormat, marker)

		case marker == common.MarkerDQT:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if err := d.parseDQT(seg); err != nil {
				return nil, err
			}

		case marker == common.MarkerDHT:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if err := common.ParseDHT(seg, d.storeTable); err != nil {
				return nil, err
			}

		case marker == common.MarkerDRI:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if len(seg) != 2 {
				return nil, fmt.Errorf("%w: DRI length %d", common.ErrInvalidData, len(seg))
			}
			d.restart = int(seg[0])<<8 | int(seg[1])

		case marker == common.MarkerSOS:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if err := d.parseSOS(seg); err != nil {
				return nil, err
			}
			planes, err := d.decodeScan(splitScan(r.Remaining()))
			if err != nil {
				return nil, err
			}
			return &Result{
				PixelData:  d.pack(planes),
				Width:      d.width,
				Height:     d.height,
				Components: len(d.components),
				Precision:  d.precision,
			}, nil

		case marker == common.MarkerEOI:
			return nil, fmt.Errorf("%w: EOI before scan data", common.ErrInvalidData)

		case common.HasLength(marker):
			if _, err := r.ReadSegment(); err != nil {
				return nil, err
			}
		}
	}
}

func decode8(data []byte) (*Result, error) {
	pixels, w, h, n, err := baseline.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return &Result{PixelData: pixels, Width: w, Height: h, Components: n, Precision: 8}, nil
}

func (d *decoder) parseSOF(seg []byte) error {
	if len(seg) < 6 {
		return common.ErrInvalidSOF
	}
	d.precision = int(seg[0])
	if d.precision != 8 && d.precision != 12 {
		return fmt.Errorf("%w: precision %d", common.ErrInvalidSOF, d.precision)
	}
	d.height = int(seg[1])<<8 | int(seg[2])
	d.width = int(seg[3])<<8 | int(seg[4])
	if d.width == 0 || d.height == 0 {
		return common.ErrInvalidDimensions
	}

	n := int(seg[5])
	if n != 1 && n != 3 {
		return common.ErrInvalidComponents
	}
	if len(seg) < 6+3*n {
		return common.ErrInvalidSOF
	}
	d.components = make([]component, n)
	for i := 0; i < n; i++ {
		c := seg[6+3*i:]
		// A single component is never interleaved, so its sampling factors
		// do not affect the block layout.
		if n > 1 && c[1] != 0x11 {
			return fmt.Errorf("%w: subsampled component %d", common.ErrUnsupportedFormat, c[0])
		}
		if c[2] > 3 {
			return fmt.Errorf("%w: quantization table %d", common.ErrInvalidSOF, c[2])
		}
		d.components[i] = component{id: c[0], quant: int(c[2])}
	}
	return nil
}

func (d *decoder) parseDQT(seg []byte) error {
	for off := 0; off < len(seg); {
		pq, tq := int(seg[off]>>4), int(seg[off]&0x0F)
		off++
		if tq > 3 || pq > 1 {
			return fmt.Errorf("%w: DQT table %d precision %d", common.ErrInvalidData, tq, pq)
		}
		size := 64 * (pq + 1)
		if off+size > len(seg) {
			return fmt.Errorf("%w: DQT length", common.ErrInvalidData)
		}
		q := new([64]int32)
		for k := 0; k < 64; k++ {
			if pq == 0 {
				q[k] = int32(seg[off+k])
			} else {
				q[k] = int32(seg[off+2*k])<<8 | int32(seg[off+2*k+1])
			}
		}
		d.quant[tq] = q
		off += size
	}
	return nil
}

func (d *decoder) storeTable(class, id int, table *common.HuffmanTable) error {
	if id > 3 {
		return fmt.Errorf("%w: table id %d", common.ErrInvalidDHT, id)
	}
	if class == 0 {
		d.dcTables[id] = table
	} else {
		d.acTables[id] = table
	}
	return nil
}

func (d *decoder) parseSOS(seg []byte) error {
	if len(d.components) == 0 {
		return fmt.Errorf("%w: SOS before SOF", common.ErrInvalidSOS)
	}
	if len(seg) < 1 {
		return common.ErrInvalidSOS
	}
	n := int(seg[0])
	if n != len(d.components) {
		return fmt.Errorf("%w: scan has %d of %d components", common.ErrUnsupportedFormat, n, len(d.components))
	}
	if len(seg) < 1+2*n+3 {
		return common.ErrInvalidSOS
	}

	for i := 0; i < n; i++ {
		c := &d.components[i]
		if c.id != seg[1+2*i] {
			return fmt.Errorf("%w: component order", common.ErrUnsupportedFormat)
		}
		c.dc = int(seg[2+2*i] >> 4)
		c.ac = int(seg[2+2*i] & 0x0F)
		if c.dc > 3 || d.dcTables[c.dc] == nil {
			return fmt.Errorf("%w: DC table %d", common.ErrMissingTable, c.dc)
		}
		if c.ac > 3 || d.acTables[c.ac] == nil {
			return fmt.Errorf("%w: AC table %d", common.ErrMissingTable, c.ac)
		}
		if d.quant[c.quant] == nil {
			return fmt.Errorf("%w: quantization table %d", common.ErrMissingTable, c.quant)
		}
	}

	ss, se, a := seg[1+2*n], seg[2+2*n], seg[3+2*n]
	if ss != 0 || se != 63 || a != 0 {
		return fmt.Errorf("%w: spectral selection %d-%d", common.ErrUnsupportedFormat, ss, se)
	}
	return nil
}

// decodeScan decodes every MCU into one plane per component. intervals
// holds the entropy-coded data between restart markers.
func (d *decoder) decodeScan(intervals [][]byte) ([][]int32, error) {
	mcusX := (d.width + 7) / 8
	mcusY := (d.height + 7) / 8
	total := mcusX * mcusY
	if d.restart > 0 && len(intervals) < (total+d.restart-1)/d.restart {
		return nil, fmt.Errorf("%w: %d restart intervals for %d MCUs", common.ErrInvalidData, len(intervals), total)
	}

	planes := make([][]int32, len(d.components))
	for i := range planes {
		planes[i] = make([]int32, d.width*d.height)
	}

	shift := int32(1) << uint(d.precision-1)
	maxVal := int32(1)<<uint(d.precision) - 1
	interval := 0
	br := common.NewBitReader(intervals[0])
	var block, out [64]int32

	for mcu := 0; mcu < total; mcu++ {
		if d.restart > 0 && mcu > 0 && mcu%d.restart == 0 {
			interval++
			br = common.NewBitReader(intervals[interval])
			for i := range d.components {
				d.components[i].pred = 0
			}
		}
		mx, my := mcu%mcusX, mcu/mcusX

		for ci := range d.components {
			c := &d.components[ci]
			diff, err := common.DecodeDC(br, d.dcTables[c.dc])
			if err != nil {
				return nil, fmt.Errorf("block (%d,%d): %w", mx, my, err)
			}
			c.pred += diff

			block = [64]int32{}
			block[0] = int32(c.pred)
			if err := common.DecodeAC(br, &block, d.acTables[c.ac]); err != nil {
				return nil, fmt.Errorf("block (%d,%d): %w", mx, my, err)
			}
			q := d.quant[c.quant]
			for k := 0; k < 64; k++ {
				block[common.ZigZag[k]] *= q[k]
			}
			idct(&block, &out)

			plane := planes[ci]
			for y := 0; y < 8; y++ {
				py := my*8 + y
				if py >= d.height {
					break
				}
				for x := 0; x < 8; x++ {
					px := mx*8 + x
					if px >= d.width {
						break
					}
					v := out[y*8+x] + shift
					if v < 0 {
						v = 0
					} else if v > maxVal {
						v = maxVal
					}
					plane[py*d.width+px] = v
				}
			}
		}
	}
	return planes, nil
}

// pack interleaves the component planes as 16-bit little endian samples
func (d *decoder) pack(planes [][]int32) []byte {
	n := len(planes)
	pixels := d.width * d.height
	out := make([]byte, pixels*n*2)
	for i := 0; i < pixels; i++ {
		for c := 0; c < n; c++ {
			v := planes[c][i]
			o := (i*n + c) * 2
			out[o] = byte(v)
			out[o+1] = byte(v >> 8)
		}
	}
	return out
}

// splitScan cuts entropy-coded data at RSTn markers and stops at the first
// other marker
func splitScan(data []byte) [][]byte {
	var intervals [][]byte
	start := 0
	for i := 0; i+1 < len(data); i++ {
		if data[i] != 0xFF {
			continue
		}
		next := data[i+1]
		switch {
		case next == 0x00:
			i++
		case next == 0xFF:
			// fill byte
		case next >= 0xD0 && next <= 0xD7:
			intervals = append(intervals, data[start:i])
			start = i + 2
			i++
		default:
			return append(intervals, data[start:i])
		}
	}
	return append(intervals, data[start:])
}
