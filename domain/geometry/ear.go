package geometry

import "math"

// MinEyeWidth is the smallest horizontal eye span considered measurable.
const MinEyeWidth = 1e-6

// Point is a 2D landmark position in pixel space.
type Point struct {
	X, Y float64
}

// EyeLandmarks holds the six eye contour points in anatomical order:
// p0 and p3 are the corners, p1/p2 the upper lid, p5/p4 the lower lid.
type EyeLandmarks [6]Point

// Distance returns the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// EyeOpenness computes the eye aspect ratio (v1+v2)/(2h).
// ok is false when the eye corners coincide and no ratio can be measured.
func EyeOpenness(eye EyeLandmarks) (ratio float64, ok bool) {
	v1 := Distance(eye[1], eye[5])
	v2 := Distance(eye[2], eye[4])
	h := Distance(eye[0], eye[3])
	if h <= MinEyeWidth {
		return 0, false
	}
	return (v1 + v2) / (2 * h), true
}
