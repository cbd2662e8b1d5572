// Package geom holds the integer pixel geometry and easing curves shared by
// the predictors and the path synthesizer.
package geom

import "math"

// Point is a pixel coordinate. Conversions from float64 truncate toward zero.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// FromFloat truncates a float coordinate pair to pixel coordinates.
func FromFloat(x, y float64) Point {
	return Point{X: int(x), Y: int(y)}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

// Lerp interpolates between a and b and truncates the result.
func Lerp(a, b Point, t float64) Point {
	return Point{
		X: int(float64(a.X) + float64(b.X-a.X)*t),
		Y: int(float64(a.Y) + float64(b.Y-a.Y)*t),
	}
}
