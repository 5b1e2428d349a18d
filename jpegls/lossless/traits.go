package lossless

// Default threshold basis for 8-bit data (ISO/IEC 14495-1 C.2.4.1.1)
const (
	basicT1      = 3
	basicT2      = 7
	basicT3      = 21
	defaultReset = 64
)

// Traits holds the coding parameters of one scan
type Traits struct {
	MaxVal int
	Range  int
	Qbpp   int // bits of a mapped error in escape codes
	Limit  int // maximum Golomb code length
	Reset  int
	T1     int
	T2     int
	T3     int
}

// Preset holds the LSE preset coding parameters; zero means default
type Preset struct {
	MaxVal int
	T1     int
	T2     int
	T3     int
	Reset  int
}

// NewTraits derives the lossless coding parameters for the given sample
// precision and preset overrides
func NewTraits(precision int, p Preset) Traits {
	maxVal := p.MaxVal
	if maxVal == 0 {
		maxVal = 1<<uint(precision) - 1
	}
	t := Traits{
		MaxVal: maxVal,
		Range:  maxVal + 1,
		Qbpp:   bitLength(maxVal + 1),
		Reset:  p.Reset,
	}
	bpp := bitLength(maxVal + 1)
	if bpp < 2 {
		bpp = 2
	}
	t.Limit = 2 * (bpp + max(8, bpp))
	if t.Reset == 0 {
		t.Reset = defaultReset
	}

	t1, t2, t3 := defaultThresholds(maxVal)
	t.T1, t.T2, t.T3 = pick(p.T1, t1), pick(p.T2, t2), pick(p.T3, t3)
	return t
}

func pick(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

// defaultThresholds computes T1, T2 and T3 for NEAR = 0
func defaultThresholds(maxVal int) (int, int, int) {
	if maxVal >= 128 {
		factor := (min(maxVal, 4095) + 128) / 256
		t1 := clampThreshold(factor*(basicT1-2)+2, 1, maxVal)
		t2 := clampThreshold(factor*(basicT2-3)+3, t1, maxVal)
		t3 := clampThreshold(factor*(basicT3-4)+4, t2, maxVal)
		return t1, t2, t3
	}
	factor := 256 / (maxVal + 1)
	t1 := clampThreshold(max(2, basicT1/factor), 1, maxVal)
	t2 := clampThreshold(max(3, basicT2/factor), t1, maxVal)
	t3 := clampThreshold(max(4, basicT3/factor), t2, maxVal)
	return t1, t2, t3
}

func clampThreshold(v, lo, maxVal int) int {
	if v > maxVal || v < lo {
		return lo
	}
	return v
}

// bitLength returns ceil(log2(n)) for n >= 1
func bitLength(n int) int {
	bits := 0
	for 1<<uint(bits) < n {
		bits++
	}
	return bits
}

// QuantizeGradient maps a local gradient to one of nine regions
func (t Traits) QuantizeGradient(d int) int {
	switch {
	case d <= -t.T3:
		return -4
	case d <= -t.T2:
		return -3
	case d <= -t.T1:
		return -2
	case d < 0:
		return -1
	case d == 0:
		return 0
	case d < t.T1:
		return 1
	case d < t.T2:
		return 2
	case d < t.T3:
		return 3
	}
	return 4
}

// CorrectPrediction clamps a bias-corrected prediction to [0, MAXVAL]
func (t Traits) CorrectPrediction(p int) int {
	if p < 0 {
		return 0
	}
	if p > t.MaxVal {
		return t.MaxVal
	}
	return p
}

// Reconstruct adds an error to a prediction modulo RANGE
func (t Traits) Reconstruct(p, e int) int {
	v := p + e
	if v < 0 {
		v += t.Range
	} else if v > t.MaxVal {
		v -= t.Range
	}
	return t.CorrectPrediction(v)
}
