package actions

import (
	stdjson "encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.5, 5000},
		{0.49999999999999994, 5000},
		{1, 10000},
		{1.2, 10000},
		{-0.1, 0},
		{0.1234, 1234},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{Move{X: 1, Y: 2}, KindMove},
		{ButtonDown{}, KindButtonDown},
		{ButtonUp{}, KindButtonUp},
		{Click{}, KindClick},
		{DoubleClick{}, KindDoubleClick},
		{Scroll{Amount: -3}, KindScroll},
		{TypeText{Text: "x"}, KindTypeText},
		{SetEnabled{Enabled: true}, KindSetEnabled},
		{Say{Text: "hi"}, KindSay},
		{OpenURL{URL: "https://example.com"}, KindOpenURL},
		{Quit{}, KindQuit},
		{nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.action))
		})
	}
}

func TestMarshal_OnlyOwnFields(t *testing.T) {
	data, err := Marshal(Move{X: 10, Y: 20})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MOVE","x":10,"y":20}`, string(data))

	data, err = Marshal(Click{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CLICK"}`, string(data))

	data, err = Marshal(SetEnabled{Enabled: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SET_ENABLED","enabled":false}`, string(data))
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Action
		wantErr bool
	}{
		{"move", `{"type":"MOVE","x":1,"y":2}`, Move{X: 1, Y: 2}, false},
		{"lower case type", `{"type":"click"}`, Click{}, false},
		{"scroll", `{"type":"SCROLL","amount":-400}`, Scroll{Amount: -400}, false},
		{"text", `{"type":"TYPE_TEXT","text":"hello"}`, TypeText{Text: "hello"}, false},
		{"url", `{"type":"OPEN_URL","url":"https://google.com"}`, OpenURL{URL: "https://google.com"}, false},
		{"move missing y", `{"type":"MOVE","x":1}`, nil, true},
		{"empty text", `{"type":"TYPE_TEXT","text":""}`, nil, true},
		{"missing type", `{}`, nil, true},
		{"unknown type", `{"type":"JUMP"}`, nil, true},
		{"malformed", `{"type":`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		kind    string
		arg     string
		want    Action
		wantErr bool
	}{
		{"move", "100,200", Move{X: 100, Y: 200}, false},
		{"move", "100", nil, true},
		{"scroll", "-400", Scroll{Amount: -400}, false},
		{"scroll", "up", nil, true},
		{"type_text", "hello world", TypeText{Text: "hello world"}, false},
		{"set_enabled", "off", SetEnabled{Enabled: false}, false},
		{"set_enabled", "", SetEnabled{Enabled: true}, false},
		{"open_url", "https://youtube.com", OpenURL{URL: "https://youtube.com"}, false},
		{"click", "", Click{}, false},
	}

	for _, tt := range tests {
		got, err := Parse(tt.kind, tt.arg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q, %q) expected error", tt.kind, tt.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q, %q) unexpected error: %v", tt.kind, tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q, %q) = %v, want %v", tt.kind, tt.arg, got, tt.want)
		}
	}
}

func TestEnvelope_MarshalJSON(t *testing.T) {
	env := Envelope{
		ID:     "abc",
		Source: SourceVoice,
		Time:   time.UnixMilli(1700000000123),
		Action: Scroll{Amount: 400},
	}

	data, err := stdjson.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","source":"voice","t":1700000000123,"action":{"type":"SCROLL","amount":400}}`, string(data))
}

func TestEnvelope_UnmarshalJSON(t *testing.T) {
	var env Envelope
	err := stdjson.Unmarshal([]byte(`{"id":"abc","source":"remote","t":1700000000123,"action":{"type":"TYPE_TEXT","text":"hi"}}`), &env)
	require.NoError(t, err)

	assert.Equal(t, "abc", env.ID)
	assert.Equal(t, SourceRemote, env.Source)
	assert.Equal(t, int64(1700000000123), env.Time.UnixMilli())
	assert.Equal(t, TypeText{Text: "hi"}, env.Action)

	assert.Error(t, stdjson.Unmarshal([]byte(`{"id":"x","action":{"type":"NOPE"}}`), &env))
}
