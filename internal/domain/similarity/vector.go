package similarity

import "math"

// Cosine returns the cosine similarity of a and b clipped into [0,1].
// Empty, mismatched or zero-norm vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return Clip(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Clip bounds s into [0,1]. NaN maps to 0.
func Clip(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
