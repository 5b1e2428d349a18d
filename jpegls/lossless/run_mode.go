package lossless

import (
	"fmt"

	"github.com/cocosip/go-dicom-cards/jpeg/common"
)

// J is the run length order table (ISO/IEC 14495-1 A.2.1)
var J = [32]int{
	0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// RunContext holds the statistics of a run interruption context.
// Type is 1 when the interrupted run's neighbours Ra and Rb are equal.
type RunContext struct {
	Type int
	A    int
	N    int
	Nn   int // negative errors seen
}

func newRunContext(typ, rng int) RunContext {
	return RunContext{Type: typ, A: max(2, (rng+32)/64), N: 1}
}

// GolombParameter returns k for the next interruption error (A.7.2.1)
func (c *RunContext) GolombParameter() int {
	temp := c.A + (c.N>>1)*c.Type
	k := 0
	for n := c.N; n < temp && k < 32; n <<= 1 {
		k++
	}
	return k
}

// ErrorValue recovers a signed error from a mapped value plus Type
func (c *RunContext) ErrorValue(temp, k int) int {
	mapped := temp&1 != 0
	abs := (temp + temp&1) / 2
	if (k != 0 || 2*c.Nn >= c.N) == mapped {
		return -abs
	}
	return abs
}

// Update folds one interruption error into the statistics (A.7.2.2)
func (c *RunContext) Update(e, mapped, reset int) {
	if e < 0 {
		c.Nn++
	}
	c.A += (mapped + 1 - c.Type) >> 1
	if c.N == reset {
		c.A >>= 1
		c.N >>= 1
		c.Nn >>= 1
	}
	c.N++
}

// decodeRun reads the length of a run of Ra samples, at most remaining
// long. index is the component's run index and is advanced in place.
func (r *bitReader) decodeRun(index *int, remaining int) (int, error) {
	n := 0
	for {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			break
		}
		count := min(1<<uint(J[*index]), remaining-n)
		n += count
		if count == 1<<uint(J[*index]) {
			*index = min(31, *index+1)
		}
		if n == remaining {
			return n, nil
		}
	}

	if J[*index] > 0 {
		rest, err := r.readBits(J[*index])
		if err != nil {
			return 0, err
		}
		n += rest
	}
	if n > remaining {
		return 0, fmt.Errorf("%w: run of %d exceeds %d samples", common.ErrInvalidData, n, remaining)
	}
	return n, nil
}

func sign(n int) int {
	if n >= 0 {
		return 1
	}
	return -1
}
