package classifier

import (
	"fmt"
	"strings"

	"github.com/mobile-next/handsfree/actions"
	"gopkg.in/ini.v1"
)

// LabelsSection is the INI section holding label overrides.
const LabelsSection = "labels"

// noAction marks a label that is recognized but emits nothing.
const noAction = "NONE"

// LabelTable maps classifier labels to actions. A nil action means the label
// is known but produces nothing.
type LabelTable map[string]actions.Action

// DefaultLabels returns the stock label table.
func DefaultLabels(scrollStep int) LabelTable {
	return LabelTable{
		"click":        actions.Click{},
		"double_click": actions.DoubleClick{},
		"scroll":       actions.Scroll{Amount: scrollStep},
		"scroll_up":    actions.Scroll{Amount: scrollStep},
		"scroll_down":  actions.Scroll{Amount: -scrollStep},
		"pause":        actions.SetEnabled{Enabled: false},
		"resume":       actions.SetEnabled{Enabled: true},
		"move":         nil,
		"drag":         nil,
	}
}

// Lookup returns the action for label and whether the label is known.
func (t LabelTable) Lookup(label string) (actions.Action, bool) {
	a, ok := t[strings.ToLower(label)]
	return a, ok
}

// LoadLabels reads the [labels] section from source (a file name, []byte or
// io.Reader) and merges it over base. Each entry is "label = KIND [argument]".
func LoadLabels(base LabelTable, source interface{}) (LabelTable, error) {
	file, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("failed to load label table: %w", err)
	}

	out := make(LabelTable, len(base))
	for k, v := range base {
		out[k] = v
	}

	if !file.HasSection(LabelsSection) {
		return out, nil
	}
	for _, key := range file.Section(LabelsSection).Keys() {
		label := strings.ToLower(strings.TrimSpace(key.Name()))
		kind, arg, _ := strings.Cut(strings.TrimSpace(key.String()), " ")
		if strings.EqualFold(kind, noAction) {
			out[label] = nil
			continue
		}
		action, err := actions.Parse(kind, arg)
		if err != nil {
			return nil, fmt.Errorf("label %q: %w", label, err)
		}
		out[label] = action
	}
	return out, nil
}
