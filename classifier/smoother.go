// Package classifier smooths per-frame gesture classifier predictions and
// maps stable labels to actions.
package classifier

import "time"

// Prediction is one classifier output.
type Prediction struct {
	Label      string
	Confidence float64
	Time       time.Time
}

// SmootherConfig tunes the smoother.
type SmootherConfig struct {
	Threshold float64
	Window    int
	Debounce  time.Duration
}

// DefaultSmootherConfig returns the stock tuning.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{
		Threshold: 0.6,
		Window:    5,
		Debounce:  2 * time.Second,
	}
}

// Smoother applies a confidence gate, a majority vote over the last N
// accepted labels and a debounce on announcements.
type Smoother struct {
	cfg SmootherConfig

	ring  []string
	next  int
	count int

	lastLabel string
	lastTime  time.Time
}

// NewSmoother creates an empty smoother. A window below one is treated as one.
func NewSmoother(cfg SmootherConfig) *Smoother {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	return &Smoother{cfg: cfg, ring: make([]string, cfg.Window)}
}

// Observe feeds one prediction. It returns the current majority label and
// whether it should be announced now. Predictions under the confidence
// threshold are dropped and never announce.
func (s *Smoother) Observe(p Prediction) (string, bool) {
	if p.Confidence < s.cfg.Threshold || p.Label == "" {
		return "", false
	}

	s.ring[s.next] = p.Label
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}

	label := s.Majority()
	if label != s.lastLabel || p.Time.Sub(s.lastTime) >= s.cfg.Debounce {
		s.lastLabel = label
		s.lastTime = p.Time
		return label, true
	}
	return label, false
}

// Majority returns the most frequent label in the window. Ties go to the
// label inserted most recently. An empty window yields "".
func (s *Smoother) Majority() string {
	counts := make(map[string]int, s.count)
	var order []string

	// newest to oldest, so order lists labels by recency
	for i := 1; i <= s.count; i++ {
		label := s.ring[(s.next-i+len(s.ring))%len(s.ring)]
		if counts[label] == 0 {
			order = append(order, label)
		}
		counts[label]++
	}

	best, bestCount := "", 0
	for _, label := range order {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	return best
}

// Window returns the accepted labels, oldest first.
func (s *Smoother) Window() []string {
	out := make([]string, 0, s.count)
	for i := s.count; i >= 1; i-- {
		out = append(out, s.ring[(s.next-i+len(s.ring))%len(s.ring)])
	}
	return out
}

// Reset clears the window and the announcement history.
func (s *Smoother) Reset() {
	for i := range s.ring {
		s.ring[i] = ""
	}
	s.next, s.count = 0, 0
	s.lastLabel, s.lastTime = "", time.Time{}
}
