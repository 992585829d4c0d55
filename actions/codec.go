package actions

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wireAction is the JSON shape of an action: a type tag plus only the
// fields that belong to that type.
type wireAction struct {
	Type    string  `json:"type"`
	X       *int    `json:"x,omitempty"`
	Y       *int    `json:"y,omitempty"`
	Amount  *int    `json:"amount,omitempty"`
	Text    *string `json:"text,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
	URL     *string `json:"url,omitempty"`
}

func toWire(a Action) (wireAction, error) {
	w := wireAction{Type: Kind(a)}
	switch v := a.(type) {
	case Move:
		w.X, w.Y = &v.X, &v.Y
	case Scroll:
		w.Amount = &v.Amount
	case TypeText:
		w.Text = &v.Text
	case Say:
		w.Text = &v.Text
	case SetEnabled:
		w.Enabled = &v.Enabled
	case OpenURL:
		w.URL = &v.URL
	case ButtonDown, ButtonUp, Click, DoubleClick, Quit:
	default:
		return w, fmt.Errorf("unknown action type %T", a)
	}
	return w, nil
}

func fromWire(w wireAction) (Action, error) {
	switch strings.ToUpper(w.Type) {
	case KindMove:
		if w.X == nil || w.Y == nil {
			return nil, fmt.Errorf("%s requires x and y", KindMove)
		}
		return Move{X: *w.X, Y: *w.Y}, nil
	case KindButtonDown:
		return ButtonDown{}, nil
	case KindButtonUp:
		return ButtonUp{}, nil
	case KindClick:
		return Click{}, nil
	case KindDoubleClick:
		return DoubleClick{}, nil
	case KindScroll:
		if w.Amount == nil {
			return nil, fmt.Errorf("%s requires amount", KindScroll)
		}
		return Scroll{Amount: *w.Amount}, nil
	case KindTypeText:
		if w.Text == nil || *w.Text == "" {
			return nil, fmt.Errorf("%s requires text", KindTypeText)
		}
		return TypeText{Text: *w.Text}, nil
	case KindSetEnabled:
		if w.Enabled == nil {
			return nil, fmt.Errorf("%s requires enabled", KindSetEnabled)
		}
		return SetEnabled{Enabled: *w.Enabled}, nil
	case KindSay:
		if w.Text == nil || *w.Text == "" {
			return nil, fmt.Errorf("%s requires text", KindSay)
		}
		return Say{Text: *w.Text}, nil
	case KindOpenURL:
		if w.URL == nil || *w.URL == "" {
			return nil, fmt.Errorf("%s requires url", KindOpenURL)
		}
		return OpenURL{URL: *w.URL}, nil
	case KindQuit:
		return Quit{}, nil
	case "":
		return nil, fmt.Errorf("'type' is required")
	}
	return nil, fmt.Errorf("unknown action type: %s", w.Type)
}

// Marshal encodes an action as {"type": KIND, ...fields}.
func Marshal(a Action) ([]byte, error) {
	w, err := toWire(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Unmarshal decodes an action produced by Marshal.
func Unmarshal(data []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid action payload: %w", err)
	}
	return fromWire(w)
}

// Parse builds an action from a kind name and a single optional argument,
// the form used by the command line and the gesture label tables.
func Parse(kind string, arg string) (Action, error) {
	w := wireAction{Type: kind}
	arg = strings.TrimSpace(arg)

	switch strings.ToUpper(kind) {
	case KindMove:
		var x, y int
		if _, err := fmt.Sscanf(arg, "%d,%d", &x, &y); err != nil {
			return nil, fmt.Errorf("invalid coordinate format. Expected 'x,y', got '%s'", arg)
		}
		w.X, w.Y = &x, &y
	case KindScroll:
		var amount int
		if _, err := fmt.Sscanf(arg, "%d", &amount); err != nil {
			return nil, fmt.Errorf("invalid scroll amount '%s'", arg)
		}
		w.Amount = &amount
	case KindTypeText, KindSay:
		w.Text = &arg
	case KindOpenURL:
		w.URL = &arg
	case KindSetEnabled:
		enabled := arg == "" || arg == "true" || arg == "on" || arg == "1"
		w.Enabled = &enabled
	}
	return fromWire(w)
}

type wireEnvelope struct {
	ID     string              `json:"id"`
	Source string              `json:"source"`
	Time   int64               `json:"t"`
	Action jsoniter.RawMessage `json:"action"`
}

// MarshalJSON encodes the envelope with its action in wire form and the
// time as unix milliseconds.
func (e Envelope) MarshalJSON() ([]byte, error) {
	action, err := Marshal(e.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{
		ID:     e.ID,
		Source: e.Source,
		Time:   e.Time.UnixMilli(),
		Action: action,
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a, err := Unmarshal(w.Action)
	if err != nil {
		return fmt.Errorf("envelope %s: %w", w.ID, err)
	}
	*e = Envelope{
		ID:     w.ID,
		Source: w.Source,
		Time:   time.UnixMilli(w.Time),
		Action: a,
	}
	return nil
}
