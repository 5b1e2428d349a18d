package lossless

// Predict returns the median edge detector prediction from the left (a),
// upper (b) and upper-left (c) neighbours
func Predict(a, b, c int) int {
	if c >= max(a, b) {
		return min(a, b)
	}
	if c <= min(a, b) {
		return max(a, b)
	}
	return a + b - c
}
