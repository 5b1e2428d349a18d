package extended

import "math"

// idctBasis[x][u] is C(u)/2 * cos((2x+1)u*pi/16)
var idctBasis [8][8]float64

func init() {
	for x := 0; x < 8; x++ {
		for u := 0; u < 8; u++ {
			c := math.Cos(float64((2*x+1)*u) * math.Pi / 16)
			if u == 0 {
				c /= math.Sqrt2
			}
			idctBasis[x][u] = c / 2
		}
	}
}

// idct is the separable 8x8 inverse DCT of T.81 A.3.3 on dequantized
// row-major coefficients, in float64. Output is rounded and not level
// shifted.
func idct(in, out *[64]int32) {
	var tmp [64]float64
	for v := 0; v < 8; v++ {
		row := in[v*8 : v*8+8]
		for x := 0; x < 8; x++ {
			s := 0.0
			for u := 0; u < 8; u++ {
				s += idctBasis[x][u] * float64(row[u])
			}
			tmp[v*8+x] = s
		}
	}
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			s := 0.0
			for v := 0; v < 8; v++ {
				s += idctBasis[y][v] * tmp[v*8+x]
			}
			out[y*8+x] = int32(math.Round(s))
		}
	}
}
