// Package catalog is the node type library: the templates that give new
// nodes their display name, color and port layout.
package catalog

import (
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/graph"
)

// Template defaults.
const (
	DefaultCategory = "Custom"
	DefaultColor    = "#808080"
)

// Template describes one node type.
type Template struct {
	TypeID            string   `json:"typeId"`
	DisplayName       string   `json:"displayName"`
	Category          string   `json:"category"`
	Color             string   `json:"color"`
	Description       string   `json:"description,omitempty"`
	DefaultParameters []string `json:"defaultParameters,omitempty"`
	InputPortCount    int      `json:"inputPortCount"`
	OutputPortCount   int      `json:"outputPortCount"`
	BuiltIn           bool     `json:"builtIn"`
}

// New returns a template with one input, one output and the given look.
func New(typeID, displayName, category string, color graph.Color) Template {
	return Template{
		TypeID:          typeID,
		DisplayName:     displayName,
		Category:        category,
		Color:           color.Hex(),
		InputPortCount:  1,
		OutputPortCount: 1,
	}
}

// Valid reports whether t can be stored in a library.
func (t Template) Valid() bool {
	return t.TypeID != "" && t.DisplayName != ""
}

// RGB returns the template color, falling back to DefaultColor when the
// stored value does not parse.
func (t Template) RGB() graph.Color {
	if c, ok := graph.ParseColor(t.Color); ok {
		return c
	}
	c, _ := graph.ParseColor(DefaultColor)
	return c
}

// normalize fills empty fields with defaults and drops negative port counts.
func (t Template) normalize() Template {
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if _, ok := graph.ParseColor(t.Color); !ok {
		t.Color = DefaultColor
	}
	t.InputPortCount = max(0, t.InputPortCount)
	t.OutputPortCount = max(0, t.OutputPortCount)
	return t
}

// BuiltIns returns the templates every library starts with.
func BuiltIns() []Template {
	mk := func(id, name, cat, desc string, c graph.Color, in, out int) Template {
		t := New(id, name, cat, c)
		t.Description = desc
		t.InputPortCount = in
		t.OutputPortCount = out
		t.BuiltIn = true
		return t
	}
	const (
		dsp  = "Signal Processing"
		comm = "Communication"
	)
	return []Template{
		mk("signal_source", "Signal Source", dsp, "Generates a source signal", graph.Color{R: 81, G: 207, B: 102}, 0, 1),
		mk("filter", "Filter", dsp, "Filters the incoming signal", graph.Color{R: 51, G: 154, B: 240}, 1, 1),
		mk("fft", "FFT", dsp, "Fast Fourier transform of the signal", graph.Color{R: 204, G: 93, B: 232}, 1, 1),
		mk("modulator", "Modulator", comm, "Modulates the signal", graph.Color{R: 252, G: 196, B: 25}, 1, 1),
		mk("demodulator", "Demodulator", comm, "Demodulates the signal", graph.Color{R: 255, G: 146, B: 43}, 1, 1),
		mk("sink", "Sink", comm, "Signal output and display", graph.Color{R: 255, G: 107, B: 107}, 1, 0),
	}
}
