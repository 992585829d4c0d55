package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func pred(label string, conf float64, offset time.Duration) Prediction {
	return Prediction{Label: label, Confidence: conf, Time: t0.Add(offset)}
}

func TestSmoother_Majority(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   string
	}{
		{"empty", nil, ""},
		{"single", []string{"click"}, "click"},
		{"clear majority", []string{"click", "click", "scroll", "click", "click"}, "click"},
		{"tie goes to most recent", []string{"a", "b"}, "b"},
		{"tie reversed", []string{"b", "a"}, "a"},
		{"tie among several", []string{"a", "a", "b", "b", "c"}, "b"},
		{"eviction changes majority", []string{"a", "a", "a", "b", "b", "b", "b"}, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSmoother(SmootherConfig{Threshold: 0.6, Window: 5, Debounce: time.Hour})
			for i, l := range tt.labels {
				s.Observe(pred(l, 1, time.Duration(i)*time.Millisecond))
			}
			assert.Equal(t, tt.want, s.Majority())
			// pure function of window contents
			assert.Equal(t, s.Majority(), s.Majority())
		})
	}
}

func TestSmoother_ConfidenceGate(t *testing.T) {
	s := NewSmoother(DefaultSmootherConfig())

	label, announce := s.Observe(pred("click", 0.59, 0))
	assert.Equal(t, "", label)
	assert.False(t, announce)
	assert.Empty(t, s.Window())

	label, announce = s.Observe(pred("click", 0.6, 0))
	assert.Equal(t, "click", label)
	assert.True(t, announce)
}

func TestSmoother_WindowEvictsOldest(t *testing.T) {
	s := NewSmoother(SmootherConfig{Threshold: 0, Window: 3, Debounce: time.Second})
	for i, l := range []string{"a", "b", "c", "d"} {
		s.Observe(pred(l, 1, time.Duration(i)*time.Millisecond))
	}
	assert.Equal(t, []string{"b", "c", "d"}, s.Window())
}

func TestSmoother_AnnounceOnceThenAfterDebounce(t *testing.T) {
	s := NewSmoother(DefaultSmootherConfig())

	var announced []string
	for i, l := range []string{"click", "click", "scroll", "click", "click"} {
		if label, ok := s.Observe(pred(l, 0.9, time.Duration(i)*100*time.Millisecond)); ok {
			announced = append(announced, label)
		}
	}
	assert.Equal(t, []string{"click"}, announced)

	_, ok := s.Observe(pred("click", 0.9, 1900*time.Millisecond))
	assert.False(t, ok, "re-announced before debounce elapsed")

	label, ok := s.Observe(pred("click", 0.9, 2*time.Second))
	assert.True(t, ok)
	assert.Equal(t, "click", label)
}

func TestSmoother_AnnouncesOnChange(t *testing.T) {
	s := NewSmoother(SmootherConfig{Threshold: 0.6, Window: 1, Debounce: time.Hour})

	_, ok := s.Observe(pred("click", 1, 0))
	assert.True(t, ok)
	label, ok := s.Observe(pred("scroll", 1, time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, "scroll", label)
}

func TestSmoother_Reset(t *testing.T) {
	s := NewSmoother(DefaultSmootherConfig())
	s.Observe(pred("click", 1, 0))
	s.Reset()

	assert.Empty(t, s.Window())
	assert.Equal(t, "", s.Majority())
	_, ok := s.Observe(pred("click", 1, time.Millisecond))
	assert.True(t, ok)
}
