package dcmtest

import (
	"bytes"
)

// JPEGLSOptions controls EncodeJPEGLS
type JPEGLSOptions struct {
	Precision  int
	Components int // 1 or 3
	Interleave int // 0 writes one scan per component, 1 a line interleaved scan
	T1         int // nonzero thresholds or Reset are written in an LSE segment
	T2         int
	T3         int
	Reset      int
}

// EncodeJPEGLS writes a lossless JPEG-LS stream. samples are interleaved by
// pixel, like EncodeJPEGLossless.
func EncodeJPEGLS(samples []int, width, height int, opts JPEGLSOptions) []byte {
	components := max(1, opts.Components)
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8})

	sof := []byte{byte(opts.Precision), byte(height >> 8), byte(height), byte(width >> 8), byte(width), byte(components)}
	for c := 0; c < components; c++ {
		sof = append(sof, byte(c+1), 0x11, 0x00)
	}
	writeSegment(&out, 0xF7, sof)

	if opts.T1 != 0 || opts.T2 != 0 || opts.T3 != 0 || opts.Reset != 0 {
		lse := []byte{1, 0, 0}
		for _, v := range []int{opts.T1, opts.T2, opts.T3, opts.Reset} {
			lse = append(lse, byte(v>>8), byte(v))
		}
		writeSegment(&out, 0xF8, lse)
	}

	planes := make([][]int, components)
	for c := range planes {
		planes[c] = make([]int, width*height)
		for i := range planes[c] {
			planes[c][i] = samples[i*components+c]
		}
	}

	t := newLSTraits(opts)
	if opts.Interleave == 0 {
		for c := 0; c < components; c++ {
			writeSegment(&out, 0xDA, []byte{1, byte(c + 1), 0, 0, 0, 0})
			out.Write(t.encodeScan(planes[c:c+1], width, height))
		}
	} else {
		sos := []byte{byte(components)}
		for c := 0; c < components; c++ {
			sos = append(sos, byte(c+1), 0)
		}
		sos = append(sos, 0, byte(opts.Interleave), 0)
		writeSegment(&out, 0xDA, sos)
		out.Write(t.encodeScan(planes, width, height))
	}

	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

var lsJ = [32]int{
	0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

type lsTraits struct {
	maxVal, rng, qbpp, limit, reset int
	t1, t2, t3                      int
}

func newLSTraits(opts JPEGLSOptions) lsTraits {
	maxVal := 1<<uint(opts.Precision) - 1
	bits := 0
	for 1<<uint(bits) <= maxVal {
		bits++
	}
	bpp := max(2, bits)
	t := lsTraits{maxVal: maxVal, rng: maxVal + 1, qbpp: bits, limit: 2 * (bpp + max(8, bpp)), reset: 64}
	if opts.Reset != 0 {
		t.reset = opts.Reset
	}

	clamp := func(v, lo int) int {
		if v > maxVal || v < lo {
			return lo
		}
		return v
	}
	if maxVal >= 128 {
		f := (min(maxVal, 4095) + 128) / 256
		t.t1 = clamp(f+2, 1)
		t.t2 = clamp(f*4+3, t.t1)
		t.t3 = clamp(f*17+4, t.t2)
	} else {
		f := 256 / (maxVal + 1)
		t.t1 = clamp(max(2, 3/f), 1)
		t.t2 = clamp(max(3, 7/f), t.t1)
		t.t3 = clamp(max(4, 21/f), t.t2)
	}
	if opts.T1 != 0 {
		t.t1 = opts.T1
	}
	if opts.T2 != 0 {
		t.t2 = opts.T2
	}
	if opts.T3 != 0 {
		t.t3 = opts.T3
	}
	return t
}

func (t lsTraits) quantize(d int) int {
	switch {
	case d <= -t.t3:
		return -4
	case d <= -t.t2:
		return -3
	case d <= -t.t1:
		return -2
	case d < 0:
		return -1
	case d == 0:
		return 0
	case d < t.t1:
		return 1
	case d < t.t2:
		return 2
	case d < t.t3:
		return 3
	}
	return 4
}

func (t lsTraits) clampValue(v int) int {
	return min(max(v, 0), t.maxVal)
}

func (t lsTraits) moduloRange(e int) int {
	if e < 0 {
		e += t.rng
	}
	if e >= (t.rng+1)/2 {
		e -= t.rng
	}
	return e
}

type lsContext struct{ a, b, c, n int }

func (c *lsContext) k() int {
	k := 0
	for k < 16 && c.n<<uint(k) < c.a {
		k++
	}
	return k
}

func (c *lsContext) update(e, reset int) {
	c.a += max(e, -e)
	c.b += e
	if c.n == reset {
		c.a >>= 1
		c.b >>= 1
		c.n >>= 1
	}
	c.n++
	if c.b+c.n <= 0 {
		c.b += c.n
		if c.b <= -c.n {
			c.b = -c.n + 1
		}
		if c.c > -128 {
			c.c--
		}
	} else if c.b > 0 {
		c.b -= c.n
		if c.b > 0 {
			c.b = 0
		}
		if c.c < 127 {
			c.c++
		}
	}
}

type lsRunContext struct{ typ, a, n, nn int }

func (c *lsRunContext) k() int {
	temp := c.a + (c.n>>1)*c.typ
	k := 0
	for n := c.n; n < temp; n <<= 1 {
		k++
	}
	return k
}

type lsScan struct {
	t        lsTraits
	w        *lsWriter
	contexts [365]lsContext
	run      [2]lsRunContext
	runIndex []int
}

func (t lsTraits) encodeScan(planes [][]int, width, height int) []byte {
	s := &lsScan{t: t, w: &lsWriter{}, runIndex: make([]int, len(planes))}
	a := max(2, (t.rng+32)/64)
	for i := range s.contexts {
		s.contexts[i] = lsContext{a: a, n: 1}
	}
	s.run = [2]lsRunContext{{typ: 0, a: a, n: 1}, {typ: 1, a: a, n: 1}}

	lines := make([][2][]int, len(planes))
	for i := range lines {
		lines[i] = [2][]int{make([]int, width+2), make([]int, width+2)}
	}
	for y := 0; y < height; y++ {
		for c, plane := range planes {
			prev, cur := lines[c][0], lines[c][1]
			prev[width+1] = prev[width]
			cur[0] = prev[1]
			copy(cur[1:], plane[y*width:(y+1)*width])
			s.encodeLine(prev, cur, width, c)
			lines[c][0], lines[c][1] = cur, prev
		}
	}
	return s.w.flush()
}

func (s *lsScan) encodeLine(prev, cur []int, width, comp int) {
	t := s.t
	for x := 0; x < width; {
		ra, rb, rc, rd := cur[x], prev[x+1], prev[x], prev[x+2]
		qs := (t.quantize(rd-rb)*9+t.quantize(rb-rc))*9 + t.quantize(rc-ra)
		if qs != 0 {
			s.encodeRegular(qs, cur[x+1], ra, rb, rc)
			x++
			continue
		}
		x += s.encodeRun(prev, cur, x, width, comp)
	}
}

func (s *lsScan) encodeRegular(qs, v, ra, rb, rc int) {
	sgn := 1
	if qs < 0 {
		sgn, qs = -1, -qs
	}
	ctx := &s.contexts[qs]
	k := ctx.k()
	var pred int
	switch {
	case rc >= max(ra, rb):
		pred = min(ra, rb)
	case rc <= min(ra, rb):
		pred = max(ra, rb)
	default:
		pred = ra + rb - rc
	}
	px := s.t.clampValue(pred + sgn*ctx.c)
	e := s.t.moduloRange(sgn * (v - px))
	corr := 0
	if k == 0 && 2*ctx.b+ctx.n-1 < 0 {
		corr = -1
	}
	s.w.golomb(k, mapError(corr^e), s.t.limit, s.t.qbpp)
	ctx.update(e, s.t.reset)
}

func (s *lsScan) encodeRun(prev, cur []int, x, width, comp int) int {
	ra := cur[x]
	n := 0
	for x+n < width && cur[x+n+1] == ra {
		n++
	}
	eol := x+n == width

	remaining := n
	for remaining >= 1<<uint(lsJ[s.runIndex[comp]]) {
		s.w.bits(1, 1)
		remaining -= 1 << uint(lsJ[s.runIndex[comp]])
		s.runIndex[comp] = min(31, s.runIndex[comp]+1)
	}
	if eol {
		if remaining != 0 {
			s.w.bits(1, 1)
		}
		return n
	}
	s.w.bits(uint32(remaining), lsJ[s.runIndex[comp]]+1)

	v, rb := cur[x+n+1], prev[x+n+1]
	if ra == rb {
		s.encodeInterruption(&s.run[1], s.t.moduloRange(v-ra), comp)
	} else {
		sgn := 1
		if rb-ra < 0 {
			sgn = -1
		}
		s.encodeInterruption(&s.run[0], s.t.moduloRange((v-rb)*sgn), comp)
	}
	s.runIndex[comp] = max(0, s.runIndex[comp]-1)
	return n + 1
}

func (s *lsScan) encodeInterruption(ctx *lsRunContext, e, comp int) {
	k := ctx.k()
	mapped := (k == 0 && e > 0 && 2*ctx.nn < ctx.n) || (e < 0 && 2*ctx.nn >= ctx.n) || (e < 0 && k != 0)
	m := 2*max(e, -e) - ctx.typ
	if mapped {
		m--
	}
	s.w.golomb(k, m, s.t.limit-lsJ[s.runIndex[comp]]-1, s.t.qbpp)

	if e < 0 {
		ctx.nn++
	}
	ctx.a += (m + 1 - ctx.typ) >> 1
	if ctx.n == s.t.reset {
		ctx.a >>= 1
		ctx.n >>= 1
		ctx.nn >>= 1
	}
	ctx.n++
}

func mapError(e int) int {
	if e >= 0 {
		return 2 * e
	}
	return -2*e - 1
}

// lsWriter writes JPEG-LS scan bits: a byte following 0xFF carries a
// stuffed 0 bit and only 7 data bits
type lsWriter struct {
	out []byte
	acc uint32
	n   int
	ff  bool
}

func (w *lsWriter) bits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | (v>>uint(i))&1
		w.n++
		capacity := 8
		if w.ff {
			capacity = 7
		}
		if w.n == capacity {
			b := byte(w.acc)
			w.out = append(w.out, b)
			w.ff = b == 0xFF
			w.acc, w.n = 0, 0
		}
	}
}

func (w *lsWriter) zeros(n int) {
	for i := 0; i < n; i++ {
		w.bits(0, 1)
	}
}

func (w *lsWriter) golomb(k, mapped, limit, qbpp int) {
	high := mapped >> uint(k)
	if high < limit-qbpp-1 {
		w.zeros(high)
		w.bits(1, 1)
		w.bits(uint32(mapped)&(1<<uint(k)-1), k)
		return
	}
	w.zeros(limit - qbpp - 1)
	w.bits(1, 1)
	w.bits(uint32(mapped-1)&(1<<uint(qbpp)-1), qbpp)
}

func (w *lsWriter) flush() []byte {
	for w.n != 0 {
		w.bits(0, 1)
	}
	if w.ff {
		w.out = append(w.out, 0x00)
	}
	return w.out
}
