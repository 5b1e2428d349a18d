package lossless

type predictor struct {
	name string
	fn   func(ra, rb, rc int) int
}

// predictors is indexed by selection value (T.81 Table H.1). Selection 0 is
// only valid for hierarchical mode and is rejected by the decoder.
var predictors = [8]predictor{
	{"None", func(ra, _, _ int) int { return ra }},
	{"Left (Ra)", func(ra, _, _ int) int { return ra }},
	{"Above (Rb)", func(_, rb, _ int) int { return rb }},
	{"Above-Left (Rc)", func(_, _, rc int) int { return rc }},
	{"Ra + Rb - Rc", func(ra, rb, rc int) int { return ra + rb - rc }},
	{"Ra + ((Rb - Rc) >> 1)", func(ra, rb, rc int) int { return ra + (rb-rc)>>1 }},
	{"Rb + ((Ra - Rc) >> 1)", func(ra, rb, rc int) int { return rb + (ra-rc)>>1 }},
	{"(Ra + Rb) / 2", func(ra, rb, _ int) int { return (ra + rb) >> 1 }},
}

// Predictor predicts a sample from its left (ra), upper (rb) and upper-left
// (rc) neighbours. Out-of-range selections fall back to the left neighbour.
func Predictor(selection int, ra, rb, rc int) int {
	if selection < 1 || selection >= len(predictors) {
		return ra
	}
	return predictors[selection].fn(ra, rb, rc)
}

// PredictorName returns a readable name for a selection value
func PredictorName(selection int) string {
	if selection < 1 || selection >= len(predictors) {
		return "Unknown"
	}
	return predictors[selection].name
}
