package distraction

import (
	"strings"

	"github.com/soocke/study-buddy-go/domain/geometry"
)

// DefaultPhoneLabel is the detector class treated as a phone.
const DefaultPhoneLabel = "cell phone"

// PhoneDetected reports whether any detection carries label. Confidence is ignored.
func PhoneDetected(dets []Detection, label string) bool {
	if label == "" {
		label = DefaultPhoneLabel
	}
	for _, d := range dets {
		if strings.EqualFold(strings.TrimSpace(d.Label), label) {
			return true
		}
	}
	return false
}

// EyeOpennessFromFaces averages the left and right eye aspect ratios when
// exactly one face is present. ok is false otherwise, or when any eye point
// is missing or degenerate.
func EyeOpennessFromFaces(faces []Face, left, right [6]int) (float64, bool) {
	if len(faces) != 1 {
		return 0, false
	}
	lm := faces[0].Landmarks
	l, ok := eyeFrom(lm, left)
	if !ok {
		return 0, false
	}
	r, ok := eyeFrom(lm, right)
	if !ok {
		return 0, false
	}
	le, ok := geometry.EyeOpenness(l)
	if !ok {
		return 0, false
	}
	re, ok := geometry.EyeOpenness(r)
	if !ok {
		return 0, false
	}
	return (le + re) / 2, true
}

func eyeFrom(lm []geometry.Point, idx [6]int) (geometry.EyeLandmarks, bool) {
	var eye geometry.EyeLandmarks
	for i, j := range idx {
		if j < 0 || j >= len(lm) {
			return eye, false
		}
		eye[i] = lm[j]
	}
	return eye, true
}
