package attitude

import "math"

// rotMult returns M*v, the matrix-vector product used to transform
// sensor triples through the board-rotation matrix (§4.2 step 5).
func rotMult(m Mat3, v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// rpyToQuat builds the quaternion that rotates body axes to earth axes,
// applying roll about X, then pitch about Y, then yaw about Z (in that
// order, per §4.4). Angles are in degrees.
func rpyToQuat(rpy RPY) Quaternion {
	hr := (rpy.Roll * math.Pi / 180) / 2
	hp := (rpy.Pitch * math.Pi / 180) / 2
	hy := (rpy.Yaw * math.Pi / 180) / 2

	sr, cr := math.Sincos(hr)
	sp, cp := math.Sincos(hp)
	sy, cy := math.Sincos(hy)

	return Quaternion{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// quatToR converts a unit quaternion into its equivalent orthonormal
// rotation matrix (body-to-earth).
func quatToR(q Quaternion) Mat3 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// quatToRPY derives roll/pitch/yaw in degrees from a unit quaternion,
// inverse of rpyToQuat.
func quatToRPY(q Quaternion) RPY {
	w, x, y, z := q.W, q.X, q.Y, q.Z

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	sinp = math.Max(-1, math.Min(1, sinp))
	pitch := math.Asin(sinp)

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	const rad2deg = 180 / math.Pi
	return RPY{Roll: roll * rad2deg, Pitch: pitch * rad2deg, Yaw: yaw * rad2deg}
}

// quatCopy returns a copy of q; kept as a named helper (rather than a bare
// assignment) to mirror the math library's quat_copy from §6.
func quatCopy(q Quaternion) Quaternion { return q }
