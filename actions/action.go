// Package actions defines the discrete input actions exchanged between the
// producers and the executor, and the bus that serializes them.
package actions

import (
	"fmt"
	"math"
)

const (
	// MaxCoordinate is the upper bound of the normalized fixed-point space used by Move.
	MaxCoordinate = 10000
)

// Kind names are the stable wire names of every action type.
const (
	KindMove        = "MOVE"
	KindButtonDown  = "BUTTON_DOWN"
	KindButtonUp    = "BUTTON_UP"
	KindClick       = "CLICK"
	KindDoubleClick = "DOUBLE_CLICK"
	KindScroll      = "SCROLL"
	KindTypeText    = "TYPE_TEXT"
	KindSetEnabled  = "SET_ENABLED"
	KindSay         = "SAY"
	KindOpenURL     = "OPEN_URL"
	KindQuit        = "QUIT"
)

// Action is one intended input effect. The set of implementations is closed:
// only the types declared in this package satisfy it.
type Action interface {
	isAction()
}

// Move is an absolute pointer move in normalized [0, MaxCoordinate] space.
type Move struct {
	X int
	Y int
}

// ButtonDown presses the primary button.
type ButtonDown struct{}

// ButtonUp releases the primary button.
type ButtonUp struct{}

// Click is an atomic press and release of the primary button.
type Click struct{}

// DoubleClick is two atomic clicks.
type DoubleClick struct{}

// Scroll is a signed amount of wheel ticks, positive scrolls up.
type Scroll struct {
	Amount int
}

// TypeText injects literal text keystroke by keystroke.
type TypeText struct {
	Text string
}

// SetEnabled asks the gesture producer to enable or disable pointer control.
type SetEnabled struct {
	Enabled bool
}

// Say is spoken feedback for the user.
type Say struct {
	Text string
}

// OpenURL launches the default browser.
type OpenURL struct {
	URL string
}

// Quit stops the executor.
type Quit struct{}

func (Move) isAction()        {}
func (ButtonDown) isAction()  {}
func (ButtonUp) isAction()    {}
func (Click) isAction()       {}
func (DoubleClick) isAction() {}
func (Scroll) isAction()      {}
func (TypeText) isAction()    {}
func (SetEnabled) isAction()  {}
func (Say) isAction()         {}
func (OpenURL) isAction()     {}
func (Quit) isAction()        {}

// Kind returns the wire name of an action, or an empty string for nil.
func Kind(a Action) string {
	switch a.(type) {
	case Move:
		return KindMove
	case ButtonDown:
		return KindButtonDown
	case ButtonUp:
		return KindButtonUp
	case Click:
		return KindClick
	case DoubleClick:
		return KindDoubleClick
	case Scroll:
		return KindScroll
	case TypeText:
		return KindTypeText
	case SetEnabled:
		return KindSetEnabled
	case Say:
		return KindSay
	case OpenURL:
		return KindOpenURL
	case Quit:
		return KindQuit
	}
	return ""
}

// Describe renders an action for logs.
func Describe(a Action) string {
	switch v := a.(type) {
	case Move:
		return fmt.Sprintf("%s(%d,%d)", KindMove, v.X, v.Y)
	case Scroll:
		return fmt.Sprintf("%s(%d)", KindScroll, v.Amount)
	case TypeText:
		return fmt.Sprintf("%s(%q)", KindTypeText, v.Text)
	case SetEnabled:
		return fmt.Sprintf("%s(%t)", KindSetEnabled, v.Enabled)
	case Say:
		return fmt.Sprintf("%s(%q)", KindSay, v.Text)
	case OpenURL:
		return fmt.Sprintf("%s(%s)", KindOpenURL, v.URL)
	}
	return Kind(a)
}

// Normalize maps a fraction in [0,1] to the fixed-point coordinate space.
// Values outside the unit interval are clamped.
func Normalize(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return ClampCoordinate(int(math.Round(f * MaxCoordinate)))
}

// ClampCoordinate bounds v to [0, MaxCoordinate].
func ClampCoordinate(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxCoordinate {
		return MaxCoordinate
	}
	return v
}
