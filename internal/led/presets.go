package led

import (
	"fmt"

	"github.com/pkg/errors"
)

// Preset is a named color.
type Preset struct {
	Name  string
	Color RGBColor
}

// PresetTable is an immutable, ordered table of presets. Lookups are exact
// and case-sensitive.
type PresetTable struct {
	presets []Preset
	index   map[string]int
}

// DefaultPresets returns the built-in preset table. It is sorted by name,
// which is also the order the presets are listed in.
func DefaultPresets() *PresetTable {
	t, err := NewPresetTable(
		Preset{"amber", RGB(255, 69, 0)},
		Preset{"forest", RGB(34, 139, 34)},
		Preset{"lavender", RGB(230, 230, 250)},
		Preset{"ocean", RGB(0, 128, 255)},
		Preset{"off", RGB(0, 0, 0)},
		Preset{"sunset", RGB(255, 94, 19)},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// NewPresetTable creates a preset table. The order of presets is kept for
// listing. Empty or duplicate names are rejected.
func NewPresetTable(presets ...Preset) (*PresetTable, error) {
	t := &PresetTable{
		presets: make([]Preset, 0, len(presets)),
		index:   make(map[string]int, len(presets)),
	}

	for _, p := range presets {
		if p.Name == "" {
			return nil, errors.New("preset has no name")
		}
		if _, ok := t.index[p.Name]; ok {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		t.index[p.Name] = len(t.presets)
		t.presets = append(t.presets, p)
	}

	return t, nil
}

// Lookup returns the color of the preset with exactly the given name.
func (t *PresetTable) Lookup(name string) (RGBColor, bool) {
	i, ok := t.index[name]
	if !ok {
		return RGBColor{}, false
	}
	return t.presets[i].Color, true
}

// Len returns the number of presets.
func (t *PresetTable) Len() int {
	return len(t.presets)
}

// Names returns the preset names in table order.
func (t *PresetTable) Names() []string {
	names := make([]string, len(t.presets))
	for i, p := range t.presets {
		names[i] = p.Name
	}
	return names
}

// Each calls f for each preset in table order.
func (t *PresetTable) Each(f func(Preset)) {
	for _, p := range t.presets {
		f(p)
	}
}
