package tracker

import "sync"

const (
	// gravity and sample period match the wand's IMU stream: accelerometer
	// readings arrive in g and are integrated at 234 Hz.
	gravity  float32 = 9.8100004196167
	sampleDT float32 = 0.0042735

	maxPositions         = 8192
	startPosZ    float32 = -294.0
)

// Sample is one IMU reading in the tracker's reference frame.
type Sample struct {
	AX, AY, AZ float32 // acceleration, g
	GX, GY, GZ float32 // rotation rate, rad/s
}

// Point is a traced wand-tip position in millimetres, projected onto the
// casting plane.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Tracker integrates IMU samples into a 2D wand-tip path. The attitude
// filter runs continuously; Start pins the current pose as the casting
// reference frame and begins recording positions.
type Tracker struct {
	mu  sync.Mutex
	att attitude

	active     bool
	initialYaw float32

	startQ0, startQ1, startQ2, startQ3 float32
	invQ0, invQ1, invQ2, invQ3         float32
	refX, refY, refZ                   float32

	positions []Point
}

// New returns a tracker with an identity attitude.
func New() *Tracker {
	return &Tracker{
		att:       newAttitude(),
		positions: make([]Point, 0, maxPositions),
	}
}

// Active reports whether a gesture is being recorded.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Start freezes the current attitude as the gesture origin and begins
// recording the traced path.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	roll, pitch, yaw := t.att.eulers()
	t.initialYaw = yaw

	sr := sin32(roll * 0.5)
	cr := cos32(roll * 0.5)
	sp := sin32(pitch * 0.5)
	cp := cos32(pitch * 0.5)

	t.startQ0 = cr * cp
	t.startQ1 = sr * cp
	t.startQ2 = cr * sp
	t.startQ3 = -(sr * sp)

	// Project the wand-length vector through the inverse start rotation to
	// get the reference offset subtracted from every traced point.
	n := float32(-1.0) / (t.startQ3*t.startQ3 + t.startQ2*t.startQ2 + t.startQ1*t.startQ1 + t.startQ0*t.startQ0)
	w0 := n * t.startQ0
	t.invQ1 = n * t.startQ1
	t.invQ2 = n * t.startQ2
	t.invQ3 = n * t.startQ3

	a := -(startPosZ * w0)
	b := -(startPosZ * t.invQ1)
	c := -(startPosZ * t.invQ3)
	d := startPosZ * t.invQ2

	rx := (d*t.startQ2 + b*t.startQ1 + a*t.startQ0) - c*t.startQ3
	ry := a*t.startQ3 + ((b*t.startQ2 + c*t.startQ0) - d*t.startQ1)
	rz := (c*t.startQ1 + b*t.startQ3 + d*t.startQ0) - a*t.startQ2

	m := float32(-1.0) / (t.invQ3*t.invQ3 + t.invQ2*t.invQ2 + t.invQ1*t.invQ1 + w0*w0)
	t.invQ0 = -w0
	e0 := -w0 * m
	e1 := t.invQ1 * m
	e2 := t.invQ2 * m
	e3 := t.invQ3 * m

	s0 := (-(e1 * rx) - e2*ry) - e3*rz
	s1 := (e3*ry - rx*e0) - e2*rz
	s2 := e1*rz + (-(ry * e0) - e3*rx)
	s3 := (e2*rx - e0*rz) - e1*ry

	t.refX = (t.invQ2*s3 + (t.invQ1*s0 - s1*w0)) - t.invQ3*s2
	t.refY = t.invQ3*s1 + ((t.invQ2*s0 - s2*w0) - t.invQ1*s3)
	t.refZ = (s2*t.invQ1 + (s0*t.invQ3 - s3*w0)) - s1*t.invQ2

	t.positions = t.positions[:0]
	t.positions = append(t.positions, Point{})
	t.active = true
}

// Update feeds one IMU sample. While a gesture is active the traced point
// is recorded and returned.
func (t *Tracker) Update(s Sample) (Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.att.update(s.GX, s.GY, s.GZ, s.AX*gravity, s.AY*gravity, s.AZ*gravity, sampleDT)

	if !t.active {
		return Point{}, false
	}

	roll, pitch, yaw := t.att.eulers()
	yawDelta := yaw - t.initialYaw

	sr := sin32(roll * 0.5)
	cr := cos32(roll * 0.5)
	sp := sin32(pitch * 0.5)
	cp := cos32(pitch * 0.5)
	sy := sin32(yawDelta * 0.5)
	cy := cos32(yawDelta * 0.5)

	q0 := sy*sr*sp + cy*cr*cp
	q1 := cy*sr*cp - sy*cr*sp
	q2 := sr*cp*sy + cr*sp*cy
	q3 := cr*cp*sy - sr*sp*cy

	n := float32(-1.0) / (q3*q3 + q2*q2 + q1*q1 + q0*q0)

	a := -(startPosZ * n * q0)
	b := -(startPosZ * n * q1)
	c := -(startPosZ * n * q3)
	d := n * q2 * startPosZ

	rx := (d*q2 + b*q1 + a*q0) - c*q3
	ry := a*q3 + ((b*q2 + c*q0) - d*q1)
	rz := (c*q1 + b*q3 + d*q0) - a*q2

	m := float32(-1.0) / (t.invQ3*t.invQ3 + t.invQ2*t.invQ2 + t.invQ1*t.invQ1 + t.invQ0*t.invQ0)
	e0 := t.invQ0 * m
	e1 := t.invQ1 * m
	e2 := t.invQ2 * m
	e3 := m * t.invQ3

	s0 := (-(e1 * rx) - e2*ry) - e3*rz
	s1 := (e3*ry - rx*e0) - e2*rz
	s2 := e1*rz + (-(ry * e0) - e3*rx)
	s3 := (e2*rx - e0*rz) - e1*ry

	k := float32(-1.0) / (t.startQ3*t.startQ3 + t.startQ2*t.startQ2 + t.startQ1*t.startQ1 + t.startQ0*t.startQ0)
	vx := ((t.invQ2*s3 + t.invQ1*s0 + t.invQ0*s1) - t.invQ3*s2) - t.refX
	k0 := t.startQ0 * k
	k1 := t.startQ1 * k
	vy := (t.invQ3*s1 + ((t.invQ2*s0 + t.invQ0*s2) - t.invQ1*s3)) - t.refY
	k2 := t.startQ2 * k
	vz := ((s2*t.invQ1 + s0*t.invQ3 + s3*t.invQ0) - s1*t.invQ2) - t.refZ
	k3 := k * t.startQ3

	w0 := (-(k1 * vx) - k2*vy) - k3*vz
	w1 := (k3*vy - vx*k0) - k2*vz
	w2 := k1*vz + (-(vy * k0) - k3*vx)
	w3 := (k2*vx - k0*vz) - k1*vy

	x := t.startQ3*w1 + ((t.startQ2*w0 + t.startQ0*w2) - t.startQ1*w3)
	y := (w2*t.startQ1 + w0*t.startQ3 + w3*t.startQ0) - w1*t.startQ2

	p := Point{X: x, Y: y}
	if len(t.positions) < maxPositions {
		t.positions = append(t.positions, p)
	}
	return p, true
}

// Stop ends recording and returns the classifier input: the traced path
// trimmed of stationary segments and resampled to a fixed length.
func (t *Tracker) Stop() ([]Point, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	return preprocess(t.positions)
}

// Path returns a copy of the points recorded so far.
func (t *Tracker) Path() []Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Point(nil), t.positions...)
}
