package lossless

// regularContexts is the number of sign-folded contexts (ISO/IEC 14495-1 A.3.4)
const regularContexts = 365

// Context holds the adaptive statistics of one regular-mode context
type Context struct {
	A int // accumulated error magnitudes
	B int // accumulated errors, for bias
	C int // prediction correction
	N int // occurrence count
}

func newContext(rng int) Context {
	return Context{A: max(2, (rng+32)/64), N: 1}
}

// GolombParameter returns the smallest k with N*2^k >= A
func (c *Context) GolombParameter() int {
	k := 0
	for k < 16 && c.N<<uint(k) < c.A {
		k++
	}
	return k
}

// Inverted reports whether the error mapping is inverted for k = 0
func (c *Context) Inverted(k int) bool {
	return k == 0 && 2*c.B+c.N-1 < 0
}

// Update folds one error value into the statistics (A.12, A.13)
func (c *Context) Update(e, reset int) {
	if e < 0 {
		c.A -= e
	} else {
		c.A += e
	}
	c.B += e
	if c.N == reset {
		c.A >>= 1
		c.B >>= 1
		c.N >>= 1
	}
	c.N++

	if c.B+c.N <= 0 {
		c.B += c.N
		if c.B <= -c.N {
			c.B = -c.N + 1
		}
		if c.C > -128 {
			c.C--
		}
	} else if c.B > 0 {
		c.B -= c.N
		if c.B > 0 {
			c.B = 0
		}
		if c.C < 127 {
			c.C++
		}
	}
}

// contextID combines quantized gradients into a signed context number
func contextID(q1, q2, q3 int) int {
	return (q1*9+q2)*9 + q3
}

// UnmapError reverses the mapping of a signed error to a non-negative value
func UnmapError(m int) int {
	if m&1 == 0 {
		return m >> 1
	}
	return -((m + 1) >> 1)
}
