package spatial

import (
	"math"
)

// AngularDifferenceDegrees calculates the smallest difference between two angles (degrees)
// Result is in range [-180, 180]
func AngularDifferenceDegrees(angle1, angle2 float64) float64 {
	diff := math.Mod(angle2-angle1, 360)
	// Normalize to [-180, 180]
	if diff > 180 {
		diff -= 360
	}
	if diff < -180 {
		diff += 360
	}
	return diff
}

// BearingChange is the magnitude of the turn from bearing b1 onto bearing b2, in [0, 180]
func BearingChange(b1, b2 float64) float64 {
	return math.Abs(AngularDifferenceDegrees(b1, b2))
}
