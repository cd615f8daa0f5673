package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

const FuzzyEpsilon = 1e-6

func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func FuzzyZero(v float32) bool {
	return Abs(v) < FuzzyEpsilon
}

func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// EulerZYX decomposes rotation matrix as R = Rz * Ry * Rx
// and returns angles packed as (x, y, z)
func EulerZYX(m mgl32.Mat3) mgl32.Vec3 {
	// m.At(row, col)
	sy := -m.At(2, 0)
	if sy >= 1 {
		return mgl32.Vec3{float32(math.Atan2(float64(m.At(0, 1)), float64(m.At(0, 2)))), math.Pi / 2, 0}
	}
	if sy <= -1 {
		return mgl32.Vec3{float32(math.Atan2(float64(-m.At(0, 1)), float64(-m.At(0, 2)))), -math.Pi / 2, 0}
	}
	return mgl32.Vec3{
		float32(math.Atan2(float64(m.At(2, 1)), float64(m.At(2, 2)))),
		float32(math.Asin(float64(sy))),
		float32(math.Atan2(float64(m.At(1, 0)), float64(m.At(0, 0)))),
	}
}

// FromEulerZYX is inverse of EulerZYX
func FromEulerZYX(e mgl32.Vec3) mgl32.Quat {
	qx := mgl32.QuatRotate(e[0], mgl32.Vec3{1, 0, 0})
	qy := mgl32.QuatRotate(e[1], mgl32.Vec3{0, 1, 0})
	qz := mgl32.QuatRotate(e[2], mgl32.Vec3{0, 0, 1})
	return qz.Mul(qy).Mul(qx).Normalize()
}

func DegreeToRadiansV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(math.Pi / 180.0)
}

func RadiansToDegreeV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// TransformCoord applies affine transform to point
func TransformCoord(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(1)).Vec3()
}

// TransformNormal applies only rotation and scale part of transform
func TransformNormal(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(0)).Vec3()
}

func MinV3(a, b mgl32.Vec3) mgl32.Vec3 {
	for i := range a {
		if b[i] < a[i] {
			a[i] = b[i]
		}
	}
	return a
}

func MaxV3(a, b mgl32.Vec3) mgl32.Vec3 {
	for i := range a {
		if b[i] > a[i] {
			a[i] = b[i]
		}
	}
	return a
}

func MulV4(a, b mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}
