package geom

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LerpFloat interpolates between a and b.
func LerpFloat(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Smoothstep is the cubic Hermite ease 3t²-2t³.
func Smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// EaseInQuad accelerates from zero velocity.
func EaseInQuad(t float64) float64 {
	return t * t
}

// EaseOutQuad decelerates to zero velocity.
func EaseOutQuad(t float64) float64 {
	u := 1 - t
	return 1 - u*u
}
