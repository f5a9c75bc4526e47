package geometry

import (
	"math"
	"testing"
)

func openEye() EyeLandmarks {
	return EyeLandmarks{
		{X: 0, Y: 0},
		{X: 3, Y: -2},
		{X: 7, Y: -2},
		{X: 10, Y: 0},
		{X: 7, Y: 2},
		{X: 3, Y: 2},
	}
}

func TestEyeOpenness_KnownRatio(t *testing.T) {
	ratio, ok := EyeOpenness(openEye())
	if !ok {
		t.Fatalf("expected measurement")
	}
	// v1 = v2 = 4, h = 10
	if math.Abs(ratio-0.4) > 1e-9 {
		t.Fatalf("ratio = %v, want 0.4", ratio)
	}
}

func TestEyeOpenness_TranslationAndScaleInvariant(t *testing.T) {
	base, _ := EyeOpenness(openEye())
	cases := []struct {
		dx, dy, k float64
	}{
		{dx: 100, dy: -50, k: 1},
		{dx: 0, dy: 0, k: 3.5},
		{dx: -12.25, dy: 640, k: 0.01},
	}
	for _, c := range cases {
		var eye EyeLandmarks
		for i, p := range openEye() {
			eye[i] = Point{X: p.X*c.k + c.dx, Y: p.Y*c.k + c.dy}
		}
		got, ok := EyeOpenness(eye)
		if !ok {
			t.Fatalf("transform %+v: no measurement", c)
		}
		if math.Abs(got-base) > 1e-9 {
			t.Fatalf("transform %+v: ratio %v, want %v", c, got, base)
		}
	}
}

func TestEyeOpenness_DegenerateWidth(t *testing.T) {
	eye := openEye()
	eye[3] = eye[0]
	if _, ok := EyeOpenness(eye); ok {
		t.Fatalf("expected no measurement when corners coincide")
	}
}

func TestEyeOpenness_ClosedEye(t *testing.T) {
	eye := openEye()
	eye[1].Y, eye[2].Y, eye[4].Y, eye[5].Y = 0, 0, 0, 0
	ratio, ok := EyeOpenness(eye)
	if !ok || ratio != 0 {
		t.Fatalf("closed eye: ratio=%v ok=%v", ratio, ok)
	}
}
