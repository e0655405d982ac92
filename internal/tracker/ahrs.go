package tracker

import "math"

// attitude is a Mahony-style orientation filter working in float32, the
// same precision the wand firmware integrates at. Keeping the arithmetic
// in float32 keeps the traced paths consistent with the gesture model's
// training data.
type attitude struct {
	q0, q1, q2, q3 float32
}

func newAttitude() attitude {
	return attitude{q0: 1}
}

// invSqrt is the classic bit-twiddled reciprocal square root with one
// Newton iteration.
func invSqrt(x float32) float32 {
	if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) || x <= 0 {
		return 0
	}
	x2 := 0.5 * x
	i := math.Float32bits(x)
	i = 0x5f3759df - i>>1
	y := math.Float32frombits(i)
	return y * (1.5 - x2*y*y)
}

func wrapTo2Pi(angle float32) float32 {
	if angle >= 0 {
		return angle
	}
	return angle + 2*math.Pi
}

func sin32(x float32) float32 { return float32(math.Sin(float64(x))) }
func cos32(x float32) float32 { return float32(math.Cos(float64(x))) }

// update folds one gyro+accel sample into the attitude quaternion.
// Accelerations are in m/s^2, rotation rates in rad/s.
func (a *attitude) update(gx, gy, gz, ax, ay, az, dt float32) {
	if ax != 0 || ay != 0 || az != 0 ||
		math.IsNaN(float64(ax)) || math.IsNaN(float64(ay)) || math.IsNaN(float64(az)) {
		norm := invSqrt(az*az + ay*ay + ax*ax)
		vx := a.q1*a.q3 - a.q0*a.q2
		vy := a.q3*a.q2 + a.q1*a.q0
		vz := a.q3*a.q3 + a.q0*a.q0 - 0.5
		gx += ay*norm*vz - norm*az*vy
		gy += norm*az*vx - vz*ax*norm
		gz += vy*ax*norm - vx*ay*norm
	}

	half := dt * 0.5
	hx := gx * half
	hy := gy * half
	hz := half * gz

	n0 := ((-(hx * a.q1) - hy*a.q2) - hz*a.q3) + a.q0
	n1 := ((hz*a.q2 + a.q0*hx) - hy*a.q3) + a.q1
	n2 := hx*a.q3 + (hy*a.q0 - hz*a.q1) + a.q2
	n3 := ((hy*a.q1 + hz*a.q0) - hx*a.q2) + a.q3

	norm := invSqrt(n3*n3 + n2*n2 + n1*n1 + n0*n0)
	a.q0 = n0 * norm
	a.q1 = n1 * norm
	a.q2 = n2 * norm
	a.q3 = n3 * norm
}

// eulers converts the quaternion to roll/pitch/yaw. Roll and yaw are
// wrapped to [0, 2pi), pitch stays in [-pi, pi].
func (a *attitude) eulers() (roll, pitch, yaw float32) {
	qw, qx, qy, qz := a.q0, a.q1, a.q2, a.q3

	roll = float32(math.Atan2(
		float64(2*(qy*qz+qw*qx)),
		float64(1-2*(qx*qx+qy*qy)),
	))

	gimbal := qw*qz + qx*qy
	switch {
	case gimbal == 0.5:
		pitch = 2 * float32(math.Atan2(float64(qx), float64(qw)))
	case gimbal == -0.5:
		pitch = -2 * float32(math.Atan2(float64(qx), float64(qw)))
	default:
		sinPitch := 2 * (qw*qy - qz*qx)
		if sinPitch > 1 {
			sinPitch = 1
		} else if sinPitch < -1 {
			sinPitch = -1
		}
		pitch = float32(math.Asin(float64(sinPitch)))
	}

	yaw = float32(math.Atan2(
		float64(2*(qw*qz+qx*qy)),
		float64(1-2*(qy*qy+qz*qz)),
	))

	return wrapTo2Pi(roll), pitch, wrapTo2Pi(yaw)
}
