// Package attitude implements the core sensor-fusion loop: gyro/accel
// conditioning, the complementary filter, and quaternion propagation
// that together maintain a body-to-earth attitude estimate.
package attitude

import "math"

// Vec3 is a 3-component vector. Used for raw/conditioned sensor triples,
// gyro bias, and accel bias — never treated as a slice. Board-rotation
// Euler angles use RPY.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v*s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the scalar dot product v·o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Cross returns the cross product v×o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Quaternion is a unit-norm rotation, kept with W >= 0 after every
// propagation step (§3 invariant).
type Quaternion struct {
	W, X, Y, Z float64
}

// IdentityQuaternion is the no-rotation quaternion.
var IdentityQuaternion = Quaternion{W: 1}

// Norm returns the quaternion's Euclidean magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Scale multiplies every component by s.
func (q Quaternion) Scale(s float64) Quaternion {
	return Quaternion{q.W * s, q.X * s, q.Y * s, q.Z * s}
}

// Negate flips the sign of every component (used for the hemisphere fix).
func (q Quaternion) Negate() Quaternion {
	return Quaternion{-q.W, -q.X, -q.Y, -q.Z}
}

// Mat3 is a 3x3 rotation matrix, orthonormal by construction.
type Mat3 [3][3]float64

// IdentityMat3 is the 3x3 identity.
var IdentityMat3 = Mat3{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// RPY is a roll-pitch-yaw Euler angle triple, degrees.
type RPY struct {
	Roll, Pitch, Yaw float64
}
