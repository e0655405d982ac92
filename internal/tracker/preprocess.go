package tracker

import (
	"errors"
	"math"
)

const (
	// moveThreshold is the minimum wand-tip displacement, in millimetres,
	// for a segment to count as deliberate movement.
	moveThreshold float32 = 8.0

	// ClassifierPoints is the fixed input length the gesture model expects.
	ClassifierPoints = 50

	minPoints = 100
)

var (
	// ErrNoMovement means the traced path never left its starting point.
	ErrNoMovement = errors.New("no movement detected")

	// ErrTooShort means the gesture ended before enough samples arrived.
	ErrTooShort = errors.New("not enough trace points")
)

// preprocess trims stationary lead-in and tail-off from a traced path and
// resamples it to ClassifierPoints positions normalised to the unit
// square.
func preprocess(positions []Point) ([]Point, error) {
	count := len(positions)

	minX := float32(math.Inf(1))
	maxX := float32(math.Inf(-1))
	minY := float32(math.Inf(1))
	maxY := float32(math.Inf(-1))
	for i := 0; i < count; i++ {
		p := positions[i]
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	bbox := maxX - minX
	if h := maxY - minY; h > bbox {
		bbox = h
	}
	if bbox <= 0 {
		return nil, ErrNoMovement
	}
	if count < minPoints {
		return nil, ErrTooShort
	}

	thresholdSq := moveThreshold * moveThreshold

	// Walk back from the end in steps of 10, dropping the tail while the
	// wand barely moved over the trailing 40 samples.
	end := count
	for end >= 121 {
		curr := positions[end-1]
		prev := positions[end-41]
		dx := curr.X - prev.X
		dy := curr.Y - prev.Y
		if dx*dx+dy*dy >= thresholdSq {
			break
		}
		end -= 10
	}

	// Same idea for the head, keeping at least 120 points.
	start := 0
	if end > 120 {
		for start < end-120 {
			curr := positions[start]
			next := positions[start+10]
			dx := next.X - curr.X
			dy := next.Y - curr.Y
			if dx*dx+dy*dy >= thresholdSq {
				break
			}
			start += 10
		}
	}

	out := make([]Point, ClassifierPoints)
	step := float32(end-start) / float32(ClassifierPoints)
	samplePos := float32(start + 1)
	for i := 0; i < ClassifierPoints; i++ {
		idx := int(samplePos)
		if idx >= count {
			idx = count - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[i] = Point{
			X: (positions[idx].X - minX) / bbox,
			Y: (positions[idx].Y - minY) / bbox,
		}
		samplePos += step
	}
	return out, nil
}
