// Package gesture turns hand-landmark frames into pointer actions.
package gesture

import (
	"math"
	"time"
)

// Landmark indices used by the producer, in the 21-point hand model.
const (
	Wrist     = 0
	ThumbTip  = 4
	IndexPIP  = 6
	IndexTip  = 8
	MiddlePIP = 10
	MiddleTip = 12

	LandmarkCount = 21
)

// Landmark is one normalized hand point; smaller Y is higher in the image.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand is the landmark set of one detected hand.
type Hand []Landmark

// Frame is one sample from the landmark estimator.
type Frame struct {
	Time  time.Time
	Hands []Hand
	// Quit is set when the user asked the capture window to close.
	Quit bool
}

// PrimaryHand returns the first hand with a full landmark set.
func (f Frame) PrimaryHand() (Hand, bool) {
	for _, h := range f.Hands {
		if len(h) >= LandmarkCount {
			return h, true
		}
	}
	return nil, false
}

func distance(a, b Landmark) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Pose is the per-frame finger state derived from a hand.
type Pose struct {
	Pinch    bool
	IndexUp  bool
	MiddleUp bool
}

// Classify computes the finger state of h.
func (h Hand) Classify(pinchThreshold float64) Pose {
	return Pose{
		Pinch:    distance(h[ThumbTip], h[IndexTip]) < pinchThreshold,
		IndexUp:  h[IndexTip].Y < h[IndexPIP].Y,
		MiddleUp: h[MiddleTip].Y < h[MiddlePIP].Y,
	}
}
