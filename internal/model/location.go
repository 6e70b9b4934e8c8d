package model

import (
	"fmt"
	"math"
)

// Location is a point on the plane. Distances double as travel times (unit speed).
type Location struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Location) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Angle returns the polar angle of l around origin in [0, 2π).
func Angle(origin, l Location) float64 {
	a := math.Atan2(l.Y-origin.Y, l.X-origin.X)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

func (l Location) String() string {
	return fmt.Sprintf("(%g, %g)", l.X, l.Y)
}
