package types

import "github.com/go-gl/mathgl/mgl32"

// A rotation quaternion.
type Quat mgl32.Quat

// Create identity quaternion.
func QuatIdent() Quat {
	return Quat(mgl32.QuatIdent())
}

// Create a quaternion from an axis vector and an angle in radians. The axis
// does not need to be normalized.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	return Quat(mgl32.QuatRotate(angle, mgl32.Vec3(axis.Normalize())))
}

// Rotates a vector by the rotation this quaternion represents.
func (q Quat) Rotate(v Vec3) Vec3 {
	return Vec3(mgl32.Quat(q).Rotate(mgl32.Vec3(v)))
}

// Multiplies two quaternions. Multiplication is not commutative.
func (q Quat) Mul(q2 Quat) Quat {
	return Quat(mgl32.Quat(q).Mul(mgl32.Quat(q2)))
}

// Returns the length of the quaternion.
func (q Quat) Len() float32 {
	return mgl32.Quat(q).Len()
}

// Normalizes the quaternion, returning its versor (unit quaternion).
func (q Quat) Normalize() Quat {
	return Quat(mgl32.Quat(q).Normalize())
}
