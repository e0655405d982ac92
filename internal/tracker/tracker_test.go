package tracker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvSqrt(t *testing.T) {
	assert.InDelta(t, 0.5, invSqrt(4), 0.002)
	assert.InDelta(t, 1.0, invSqrt(1), 0.002)
	assert.InDelta(t, 0.1, invSqrt(100), 0.001)

	assert.Zero(t, invSqrt(0))
	assert.Zero(t, invSqrt(-3))
	assert.Zero(t, invSqrt(float32(math.Inf(1))))
	assert.Zero(t, invSqrt(float32(math.NaN())))
}

func TestWrapTo2Pi(t *testing.T) {
	assert.Equal(t, float32(1.5), wrapTo2Pi(1.5))
	assert.Equal(t, float32(0), wrapTo2Pi(0))
	assert.InDelta(t, 2*math.Pi-1, wrapTo2Pi(-1), 1e-6)
}

func TestAttitudeConvergesToGravity(t *testing.T) {
	// Stationary wand pointing straight up: the accelerometer reads 1 g on
	// the z axis, so roll and pitch should settle near zero.
	a := newAttitude()
	for i := 0; i < 2000; i++ {
		a.update(0, 0, 0, 0, 0, gravity, sampleDT)
	}
	roll, pitch, _ := a.eulers()
	assert.InDelta(t, 0, float64(pitch), 0.05)
	wrapped := float64(roll)
	if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	}
	assert.InDelta(t, 0, wrapped, 0.05)

	// Quaternion stays normalised.
	norm := a.q0*a.q0 + a.q1*a.q1 + a.q2*a.q2 + a.q3*a.q3
	assert.InDelta(t, 1, float64(norm), 0.01)
}

func TestTrackerInactiveByDefault(t *testing.T) {
	tr := New()
	assert.False(t, tr.Active())
	_, ok := tr.Update(Sample{AZ: 1})
	assert.False(t, ok)
	assert.Empty(t, tr.Path())
}

func TestTrackerRecordsWhileActive(t *testing.T) {
	tr := New()
	tr.Start()
	require.True(t, tr.Active())

	// The origin is recorded at start.
	require.Len(t, tr.Path(), 1)
	assert.Equal(t, Point{}, tr.Path()[0])

	for i := 0; i < 10; i++ {
		_, ok := tr.Update(Sample{AZ: 1, GX: 0.5})
		assert.True(t, ok)
	}
	assert.Len(t, tr.Path(), 11)

	_, err := tr.Stop()
	assert.False(t, tr.Active())
	assert.Error(t, err)
}

func TestTrackerPositionCap(t *testing.T) {
	tr := New()
	tr.Start()
	for i := 0; i < maxPositions+100; i++ {
		tr.Update(Sample{AZ: 1, GY: 1})
	}
	assert.Len(t, tr.Path(), maxPositions)
}

func TestTrackerStopRestartResetsPath(t *testing.T) {
	tr := New()
	tr.Start()
	for i := 0; i < 50; i++ {
		tr.Update(Sample{AZ: 1, GX: 1})
	}
	tr.Stop()

	tr.Start()
	assert.Len(t, tr.Path(), 1)
}

// circlePath builds a synthetic trace of n points around a circle with
// the given radius in millimetres.
func circlePath(n int, radius float32) []Point {
	pts := make([]Point, n)
	for i := range pts {
		angle := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{
			X: radius * float32(math.Cos(angle)),
			Y: radius * float32(math.Sin(angle)),
		}
	}
	return pts
}

func TestPreprocessNoMovement(t *testing.T) {
	flat := make([]Point, 200)
	_, err := preprocess(flat)
	assert.ErrorIs(t, err, ErrNoMovement)
}

func TestPreprocessTooShort(t *testing.T) {
	_, err := preprocess(circlePath(99, 100))
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestPreprocessResamplesAndNormalises(t *testing.T) {
	out, err := preprocess(circlePath(400, 150))
	require.NoError(t, err)
	require.Len(t, out, ClassifierPoints)
	for _, p := range out {
		assert.GreaterOrEqual(t, p.X, float32(0))
		assert.LessOrEqual(t, p.X, float32(1))
		assert.GreaterOrEqual(t, p.Y, float32(0))
		assert.LessOrEqual(t, p.Y, float32(1))
	}
}

func TestPreprocessTrimsStationaryTail(t *testing.T) {
	// A circle followed by a long stationary hold: the hold must not
	// dominate the resampled points.
	path := circlePath(300, 150)
	last := path[len(path)-1]
	for i := 0; i < 500; i++ {
		path = append(path, last)
	}

	out, err := preprocess(path)
	require.NoError(t, err)

	// If the tail were kept, most samples would collapse onto one point.
	stationary := 0
	for _, p := range out {
		dx := p.X - out[ClassifierPoints-1].X
		dy := p.Y - out[ClassifierPoints-1].Y
		if dx*dx+dy*dy < 1e-6 {
			stationary++
		}
	}
	assert.Less(t, stationary, ClassifierPoints/2)
}
