package utils

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestEulerZYXRoundTrip(t *testing.T) {
	for _, e := range []mgl32.Vec3{
		{0, 0, 0},
		{0.5, 0, 0},
		{0, -0.3, 0},
		{0.1, 0.2, 0.3},
		{-1, 0.7, 2},
	} {
		q := FromEulerZYX(e)
		got := EulerZYX(q.Mat4().Mat3())
		if !got.ApproxEqualThreshold(e, 1e-4) {
			t.Errorf("EulerZYX(FromEulerZYX(%v))=%v", e, got)
		}
	}
}

func TestClamp(t *testing.T) {
	if v := Clamp(5, 0, 3); v != 3 {
		t.Errorf("Clamp(5,0,3)=%d", v)
	}
	if v := Clamp(float32(-1), 0, 1); v != 0 {
		t.Errorf("Clamp(-1,0,1)=%v", v)
	}
	if v := Clamp(float32(math.Pi), -math.Pi/2, math.Pi/2); v != math.Pi/2 {
		t.Errorf("Clamp(pi)=%v", v)
	}
}

func TestTransformCoord(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(math.Pi / 2))
	p := TransformCoord(m, mgl32.Vec3{1, 0, 0})
	if !p.ApproxEqualThreshold(mgl32.Vec3{1, 2, 2}, 1e-5) {
		t.Errorf("TransformCoord=%v", p)
	}
	n := TransformNormal(m, mgl32.Vec3{1, 0, 0})
	if !n.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("TransformNormal=%v", n)
	}
}
