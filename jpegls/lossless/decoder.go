package lossless

import (
	"encoding/binary"
	"fmt"

	"github.com/cocosip/go-dicom-cards/jpeg/common"
)

// JPEG-LS marker codes
const (
	MarkerSOF55 = 0xFFF7
	MarkerLSE   = 0xFFF8
)

// Interleave modes of a JPEG-LS scan
const (
	InterleaveNone   = 0
	InterleaveLine   = 1
	InterleaveSample = 2
)

type component struct {
	id      byte
	plane   []int
	decoded bool
}

type decoder struct {
	width      int
	height     int
	precision  int
	preset     Preset
	components []component
}

// Result is the output of Decode
type Result struct {
	PixelData  []byte // interleaved, 1 byte/sample for precision <= 8, else 2 bytes LE
	Width      int
	Height     int
	Components int
	Precision  int
}

// Decode decodes a lossless JPEG-LS stream (NEAR = 0) with one component,
// or three components in separate scans or line interleaved.
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
		case marker == MarkerSOF55:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if err := d.parseSOF(seg); err != nil {
				return nil, err
			}

		case common.IsSOF(marker):
			return nil, fmt.Errorf("%w: frame marker %#04x is not JPEG-LS", common.ErrUnsupportedFormat, marker)

		case marker == MarkerLSE:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			if err := d.parseLSE(seg); err != nil {
				return nil, err
			}

		case marker == common.MarkerSOS:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			scan, err := d.parseSOS(seg)
			if err != nil {
				return nil, err
			}
			rest := r.Remaining()
			br := newBitReader(rest)
			if err := d.decodeScan(br, scan); err != nil {
				return nil, err
			}
			r = common.NewReader(rest[br.markerOffset():])

		case marker == common.MarkerEOI:
			if len(d.components) == 0 {
				return nil, fmt.Errorf("%w: EOI before scan data", common.ErrInvalidData)
			}
			for _, c := range d.components {
				if !c.decoded {
					return nil, fmt.Errorf("%w: component %d has no scan", common.ErrInvalidData, c.id)
				}
			}
			return &Result{
				PixelData:  d.pack(),
				Width:      d.width,
				Height:     d.height,
				Components: len(d.components),
				Precision:  d.precision,
			}, nil

		case common.HasLength(marker):
			if _, err := r.ReadSegment(); err != nil {
				return nil, err
			}
		}
	}
}

func (d *decoder) parseSOF(seg []byte) error {
	if len(seg) < 6 {
		return common.ErrInvalidSOF
	}
	d.precision = int(seg[0])
	if d.precision < 2 || d.precision > 16 {
		return fmt.Errorf("%w: precision %d", common.ErrInvalidSOF, d.precision)
	}
	d.height = int(binary.BigEndian.Uint16(seg[1:]))
	d.width = int(binary.BigEndian.Uint16(seg[3:]))
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
		d.components[i] = component{id: c[0], plane: make([]int, d.width*d.height)}
	}
	return nil
}

// parseLSE reads preset coding parameters (LSE id 1)
func (d *decoder) parseLSE(seg []byte) error {
	if len(seg) < 1 {
		return fmt.Errorf("%w: empty LSE", common.ErrInvalidData)
	}
	if seg[0] != 1 {
		return fmt.Errorf("%w: LSE id %d", common.ErrUnsupportedFormat, seg[0])
	}
	if len(seg) < 11 {
		return fmt.Errorf("%w: LSE length %d", common.ErrInvalidData, len(seg))
	}
	u := func(i int) int { return int(binary.BigEndian.Uint16(seg[1+2*i:])) }
	d.preset = Preset{MaxVal: u(0), T1: u(1), T2: u(2), T3: u(3), Reset: u(4)}
	return nil
}

// parseSOS returns the indices of the scan's components
func (d *decoder) parseSOS(seg []byte) ([]int, error) {
	if len(d.components) == 0 {
		return nil, fmt.Errorf("%w: SOS before SOF", common.ErrInvalidSOS)
	}
	if len(seg) < 1 {
		return nil, common.ErrInvalidSOS
	}
	n := int(seg[0])
	if n < 1 || n > len(d.components) || len(seg) < 1+2*n+3 {
		return nil, common.ErrInvalidSOS
	}

	scan := make([]int, n)
	for i := 0; i < n; i++ {
		id, table := seg[1+2*i], seg[2+2*i]
		if table != 0 {
			return nil, fmt.Errorf("%w: mapping table %d", common.ErrUnsupportedFormat, table)
		}
		scan[i] = -1
		for j, c := range d.components {
			if c.id == id {
				scan[i] = j
			}
		}
		if scan[i] < 0 {
			return nil, fmt.Errorf("%w: unknown component %d", common.ErrInvalidSOS, id)
		}
	}

	near, ilv, pt := seg[1+2*n], seg[2+2*n], seg[3+2*n]&0x0F
	if near != 0 {
		return nil, fmt.Errorf("%w: near-lossless NEAR=%d", common.ErrUnsupportedFormat, near)
	}
	if pt != 0 {
		return nil, fmt.Errorf("%w: point transform %d", common.ErrUnsupportedFormat, pt)
	}
	switch {
	case ilv == InterleaveSample:
		return nil, fmt.Errorf("%w: sample interleaved scan", common.ErrUnsupportedFormat)
	case ilv > InterleaveSample:
		return nil, fmt.Errorf("%w: interleave mode %d", common.ErrInvalidSOS, ilv)
	case (n == 1) != (ilv == InterleaveNone):
		return nil, fmt.Errorf("%w: %d components with interleave mode %d", common.ErrInvalidSOS, n, ilv)
	}
	return scan, nil
}

// scanState is the adaptive model of one scan. Contexts are shared by the
// components of a line interleaved scan; run indices are not.
type scanState struct {
	t        Traits
	br       *bitReader
	width    int
	contexts [regularContexts]Context
	run      [2]RunContext
	runIndex []int
}

func (d *decoder) decodeScan(br *bitReader, scan []int) error {
	t := NewTraits(d.precision, d.preset)
	if t.T1 > t.T2 || t.T2 > t.T3 || t.MaxVal >= 1<<uint(d.precision) {
		return fmt.Errorf("%w: preset MAXVAL %d T1 %d T2 %d T3 %d",
			common.ErrInvalidData, t.MaxVal, t.T1, t.T2, t.T3)
	}
	s := &scanState{t: t, br: br, width: d.width, runIndex: make([]int, len(scan))}
	for i := range s.contexts {
		s.contexts[i] = newContext(t.Range)
	}
	s.run = [2]RunContext{newRunContext(0, t.Range), newRunContext(1, t.Range)}

	w := d.width
	lines := make([][2][]int, len(scan))
	for i := range lines {
		lines[i] = [2][]int{make([]int, w+2), make([]int, w+2)}
	}

	for y := 0; y < d.height; y++ {
		for i, c := range scan {
			prev, cur := lines[i][0], lines[i][1]
			prev[w+1] = prev[w]
			cur[0] = prev[1]
			if err := s.decodeLine(prev, cur, i); err != nil {
				return fmt.Errorf("component %d line %d: %w", d.components[c].id, y, err)
			}
			copy(d.components[c].plane[y*w:], cur[1:w+1])
			lines[i][0], lines[i][1] = cur, prev
		}
	}
	for _, c := range scan {
		d.components[c].decoded = true
	}
	return nil
}

// decodeLine decodes one line. Sample x lives at index x+1 of prev and
// cur; index 0 holds the left edge and index width+1 the right edge.
func (s *scanState) decodeLine(prev, cur []int, comp int) error {
	rb, rd := prev[0], prev[1]
	for x := 0; x < s.width; {
		ra := cur[x]
		rc := rb
		rb = rd
		rd = prev[x+2]

		t := s.t
		qs := contextID(t.QuantizeGradient(rd-rb), t.QuantizeGradient(rb-rc), t.QuantizeGradient(rc-ra))
		if qs != 0 {
			v, err := s.decodeRegular(qs, Predict(ra, rb, rc))
			if err != nil {
				return fmt.Errorf("sample %d: %w", x, err)
			}
			cur[x+1] = v
			x++
			continue
		}

		n, err := s.decodeRunMode(prev, cur, x, comp)
		if err != nil {
			return fmt.Errorf("run at %d: %w", x, err)
		}
		x += n
		rb, rd = prev[x], prev[x+1]
	}
	return nil
}

func (s *scanState) decodeRegular(qs, predicted int) (int, error) {
	sgn := 1
	if qs < 0 {
		sgn, qs = -1, -qs
	}
	ctx := &s.contexts[qs]
	k := ctx.GolombParameter()
	px := s.t.CorrectPrediction(predicted + sgn*ctx.C)

	m, err := s.br.decodeValue(k, s.t.Limit, s.t.Qbpp)
	if err != nil {
		return 0, err
	}
	e := UnmapError(m)
	if ctx.Inverted(k) {
		e = ^e
	}
	ctx.Update(e, s.t.Reset)
	return s.t.Reconstruct(px, sgn*e), nil
}

// decodeRunMode fills a run of the left neighbour's value starting at x
// and decodes the interrupting sample, if any. It returns the samples
// consumed.
func (s *scanState) decodeRunMode(prev, cur []int, x, comp int) (int, error) {
	ra := cur[x]
	n, err := s.br.decodeRun(&s.runIndex[comp], s.width-x)
	if err != nil {
		return 0, err
	}
	for i := 1; i <= n; i++ {
		cur[x+i] = ra
	}
	end := x + n
	if end == s.width {
		return n, nil
	}

	rb := prev[end+1]
	var v int
	if ra == rb {
		e, err := s.interruptionError(&s.run[1], comp)
		if err != nil {
			return 0, err
		}
		v = s.t.Reconstruct(ra, e)
	} else {
		e, err := s.interruptionError(&s.run[0], comp)
		if err != nil {
			return 0, err
		}
		v = s.t.Reconstruct(rb, e*sign(rb-ra))
	}
	cur[end+1] = v
	s.runIndex[comp] = max(0, s.runIndex[comp]-1)
	return n + 1, nil
}

func (s *scanState) interruptionError(ctx *RunContext, comp int) (int, error) {
	k := ctx.GolombParameter()
	m, err := s.br.decodeValue(k, s.t.Limit-J[s.runIndex[comp]]-1, s.t.Qbpp)
	if err != nil {
		return 0, err
	}
	e := ctx.ErrorValue(m+ctx.Type, k)
	ctx.Update(e, m, s.t.Reset)
	return e, nil
}

// pack interleaves the component planes
func (d *decoder) pack() []byte {
	n := len(d.components)
	pixels := d.width * d.height
	if d.precision <= 8 {
		out := make([]byte, pixels*n)
		for i := 0; i < pixels; i++ {
			for c := 0; c < n; c++ {
				out[i*n+c] = byte(d.components[c].plane[i])
			}
		}
		return out
	}

	out := make([]byte, pixels*n*2)
	for i := 0; i < pixels; i++ {
		for c := 0; c < n; c++ {
			binary.LittleEndian.PutUint16(out[(i*n+c)*2:], uint16(d.components[c].plane[i]))
		}
	}
	return out
}
