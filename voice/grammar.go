// Package voice turns recognized utterances into actions through an ordered
// command grammar.
package voice

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mobile-next/handsfree/actions"
	"gopkg.in/ini.v1"
)

// Spoken feedback phrases.
const (
	SayQuitting         = "Quitting."
	SayGesturesDisabled = "Gestures disabled."
	SayGesturesEnabled  = "Gestures enabled."
	SayNotUnderstood    = "Sorry, I did not understand that command."
	SayStarted          = "Voice assistant started."
)

// SitesSection is the INI section holding extra "open <site>" shortcuts.
const SitesSection = "sites"

var typePattern = regexp.MustCompile(`^(type|write)\s+(.*)$`)

// Site is an "open <name>" shortcut.
type Site struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// DefaultSites returns the built-in shortcuts.
func DefaultSites() []Site {
	return []Site{
		{Name: "youtube", URL: "https://www.youtube.com"},
		{Name: "google", URL: "https://www.google.com"},
	}
}

type rule struct {
	name  string
	match func(t string) []actions.Action
}

// Grammar matches utterances against an ordered rule table. The first rule
// that matches produces the result; later rules are not consulted.
type Grammar struct {
	rules      []rule
	sites      []Site
	scrollStep int
	now        func() time.Time
}

// GrammarOption customizes a Grammar.
type GrammarOption func(*Grammar)

// WithSites replaces the site shortcuts.
func WithSites(sites []Site) GrammarOption {
	return func(g *Grammar) { g.sites = sites }
}

// WithClock sets the clock used for time queries.
func WithClock(now func() time.Time) GrammarOption {
	return func(g *Grammar) { g.now = now }
}

// WithScrollStep sets the amount used by "scroll up" and "scroll down".
func WithScrollStep(step int) GrammarOption {
	return func(g *Grammar) { g.scrollStep = step }
}

// NewGrammar builds the command grammar.
func NewGrammar(opts ...GrammarOption) *Grammar {
	g := &Grammar{
		sites:      DefaultSites(),
		scrollStep: 400,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.rules = []rule{
		{"quit", func(t string) []actions.Action {
			switch t {
			case "quit", "exit", "stop program", "close program":
				return []actions.Action{actions.Say{Text: SayQuitting}, actions.Quit{}}
			}
			return nil
		}},
		{"disable gestures", func(t string) []actions.Action {
			if strings.Contains(t, "stop gestures") || strings.Contains(t, "disable gestures") {
				return []actions.Action{actions.SetEnabled{Enabled: false}, actions.Say{Text: SayGesturesDisabled}}
			}
			return nil
		}},
		{"enable gestures", func(t string) []actions.Action {
			if strings.Contains(t, "start gestures") || strings.Contains(t, "enable gestures") {
				return []actions.Action{actions.SetEnabled{Enabled: true}, actions.Say{Text: SayGesturesEnabled}}
			}
			return nil
		}},
		{"click", func(t string) []actions.Action {
			if t == "click" || t == "mouse click" {
				return []actions.Action{actions.Click{}}
			}
			return nil
		}},
		{"double click", func(t string) []actions.Action {
			if strings.Contains(t, "double click") {
				return []actions.Action{actions.DoubleClick{}}
			}
			return nil
		}},
		{"scroll", func(t string) []actions.Action {
			if strings.Contains(t, "scroll up") {
				return []actions.Action{actions.Scroll{Amount: g.scrollStep}}
			}
			if strings.Contains(t, "scroll down") {
				return []actions.Action{actions.Scroll{Amount: -g.scrollStep}}
			}
			return nil
		}},
		{"type", func(t string) []actions.Action {
			if m := typePattern.FindStringSubmatch(t); m != nil {
				return []actions.Action{actions.TypeText{Text: m[2]}}
			}
			return nil
		}},
		{"open site", func(t string) []actions.Action {
			for _, site := range g.sites {
				if strings.Contains(t, "open "+site.Name) {
					return []actions.Action{actions.OpenURL{URL: site.URL}}
				}
			}
			return nil
		}},
		{"time", func(t string) []actions.Action {
			if strings.Contains(t, "time") {
				return []actions.Action{actions.Say{Text: fmt.Sprintf("It is %s.", g.now().Format("03:04 PM"))}}
			}
			return nil
		}},
	}
	return g
}

// Match returns the actions for one utterance. Empty input yields nothing;
// input no rule accepts yields the spoken fallback.
func (g *Grammar) Match(utterance string) []actions.Action {
	t := strings.ToLower(strings.TrimSpace(utterance))
	if t == "" {
		return nil
	}
	for _, r := range g.rules {
		if out := r.match(t); out != nil {
			return out
		}
	}
	return []actions.Action{actions.Say{Text: SayNotUnderstood}}
}

// Rule returns the name of the rule that accepts utterance, or "fallback".
func (g *Grammar) Rule(utterance string) string {
	t := strings.ToLower(strings.TrimSpace(utterance))
	if t == "" {
		return ""
	}
	for _, r := range g.rules {
		if r.match(t) != nil {
			return r.name
		}
	}
	return "fallback"
}

// Sites returns the configured shortcuts in match order.
func (g *Grammar) Sites() []Site {
	return g.sites
}

// LoadSites reads the [sites] section from source (a file name, []byte or
// io.Reader) and appends it to base. A site already in base is overridden
// in place.
func LoadSites(base []Site, source interface{}) ([]Site, error) {
	file, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	out := append([]Site(nil), base...)
	if !file.HasSection(SitesSection) {
		return out, nil
	}

	for _, key := range file.Section(SitesSection).Keys() {
		name := strings.ToLower(strings.TrimSpace(key.Name()))
		url := strings.TrimSpace(key.String())
		if name == "" || url == "" {
			return nil, fmt.Errorf("invalid site entry %q", key.Name())
		}

		replaced := false
		for i := range out {
			if out[i].Name == name {
				out[i].URL = url
				replaced = true
			}
		}
		if !replaced {
			out = append(out, Site{Name: name, URL: url})
		}
	}
	return out, nil
}
