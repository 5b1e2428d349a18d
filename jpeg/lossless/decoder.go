package lossless

import (
	"fmt"

	"github.com/cocosip/go-dicom-cards/jpeg/common"
)

type component struct {
	id    byte
	table int
}

// decoder holds the state of one JPEG Lossless (SOF3) stream
type decoder struct {
	width      int
	height     int
	precision  int // Bit depth (2-16)
	predictor  int // Selection value from SOS (1-7)
	transform  int // Point transform Pt
	restart    int
	components []component
	tables     [4]*common.HuffmanTable
}

// Result is the output of Decode
type Result struct {
	PixelData  []byte // interleaved, 1 byte/sample for precision <= 8, else 2 bytes LE
	Width      int
	Height     int
	Components int
	Precision  int
	Predictor  int
}

// Decode decodes a JPEG Lossless Process 14 stream, any predictor
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
		case marker == common.MarkerSOF3:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if err := d.parseSOF3(seg); err != nil {
				return nil, err
			}

		case common.IsSOF(marker):
			return nil, fmt.Errorf("%w: frame marker %#04x is not Huffman lossless", common.ErrUnsupportedFormat, marker)

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
			samples, err := d.decodeScan(common.NewBitReader(r.Remaining()))
			if err != nil {
				return nil, err
			}
			return &Result{
				PixelData:  d.pack(samples),
				Width:      d.width,
				Height:     d.height,
				Components: len(d.components),
				Precision:  d.precision,
				Predictor:  d.predictor,
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

func (d *decoder) parseSOF3(seg []byte) error {
	if len(seg) < 6 {
		return common.ErrInvalidSOF
	}
	d.precision = int(seg[0])
	if d.precision < 2 || d.precision > 16 {
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
		if c[1] != 0x11 {
			return fmt.Errorf("%w: subsampled component %d", common.ErrUnsupportedFormat, c[0])
		}
		d.components[i] = component{id: c[0]}
	}
	return nil
}

func (d *decoder) storeTable(class, id int, table *common.HuffmanTable) error {
	if id > 3 {
		return fmt.Errorf("%w: table id %d", common.ErrInvalidDHT, id)
	}
	// Lossless uses DC (class 0) tables only.
	if class == 0 {
		d.tables[id] = table
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
		id := seg[1+2*i]
		table := int(seg[2+2*i] >> 4)
		if d.components[i].id != id {
			return fmt.Errorf("%w: component order", common.ErrUnsupportedFormat)
		}
		if table > 3 || d.tables[table] == nil {
			return fmt.Errorf("%w: DC table %d", common.ErrMissingTable, table)
		}
		d.components[i].table = table
	}

	d.predictor = int(seg[1+2*n])
	if d.predictor < 1 || d.predictor > 7 {
		return fmt.Errorf("%w: %d", common.ErrInvalidPredictor, d.predictor)
	}
	d.transform = int(seg[3+2*n] & 0x0F)
	if d.transform >= d.precision {
		return fmt.Errorf("%w: point transform %d", common.ErrInvalidSOS, d.transform)
	}
	return nil
}

// decodeScan reconstructs samples per T.81 H.1.2: the first sample uses
// 2^(P-Pt-1), the first row predicts from the left, the first column from above.
func (d *decoder) decodeScan(br *common.BitReader) ([][]int, error) {
	if d.restart != 0 {
		return nil, fmt.Errorf("%w: restart intervals", common.ErrUnsupportedFormat)
	}

	n := len(d.components)
	samples := make([][]int, n)
	for i := range samples {
		samples[i] = make([]int, d.width*d.height)
	}

	p := d.precision - d.transform
	mask := 1<<uint(p) - 1
	initial := 1 << uint(p-1)

	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			for c := 0; c < n; c++ {
				ssss, err := br.Decode(d.tables[d.components[c].table])
				if err != nil {
					return nil, fmt.Errorf("pixel (%d,%d): %w", x, y, err)
				}

				var diff int
				switch {
				case ssss == 16:
					diff = 32768
				case ssss > 16:
					return nil, fmt.Errorf("%w: category %d", common.ErrHuffmanDecode, ssss)
				default:
					if diff, err = br.ReceiveExtend(int(ssss)); err != nil {
						return nil, fmt.Errorf("pixel (%d,%d): %w", x, y, err)
					}
				}

				plane := samples[c]
				i := y*d.width + x
				var pred int
				switch {
				case x == 0 && y == 0:
					pred = initial
				case y == 0:
					pred = plane[i-1]
				case x == 0:
					pred = plane[i-d.width]
				default:
					pred = Predictor(d.predictor, plane[i-1], plane[i-d.width], plane[i-d.width-1])
				}

				plane[i] = (pred + diff) & mask
			}
		}
	}
	return samples, nil
}

// pack converts component planes to interleaved bytes, undoing the point transform
func (d *decoder) pack(samples [][]int) []byte {
	n := len(samples)
	pixels := d.width * d.height
	if d.precision <= 8 {
		out := make([]byte, pixels*n)
		for i := 0; i < pixels; i++ {
			for c := 0; c < n; c++ {
				out[i*n+c] = byte(samples[c][i] << uint(d.transform))
			}
		}
		return out
	}

	out := make([]byte, pixels*n*2)
	for i := 0; i < pixels; i++ {
		for c := 0; c < n; c++ {
			v := samples[c][i] << uint(d.transform)
			o := (i*n + c) * 2
			out[o] = byte(v)
			out[o+1] = byte(v >> 8)
		}
	}
	return out
}
