// Package ui holds the control panel widgets of the flock viewer.
//
// Widgets are plain state machines fed with a Pointer each frame; drawing them
// needs the ebiten build tag.
package ui

import "math"

// Pointer is the mouse state of one frame.
type Pointer struct {
	X, Y  int
	Down  bool // left button held
	Wheel float64
}

// Bounds is an axis aligned screen rectangle.
type Bounds struct {
	X, Y, W, H float64
}

// Contains reports whether the pointer lies inside b, edges included.
func (b Bounds) Contains(p Pointer) bool {
	x, y := float64(p.X), float64(p.Y)
	return x >= b.X && x <= b.X+b.W && y >= b.Y && y <= b.Y+b.H
}

// Widget is implemented by everything a Panel lays out.
type Widget interface {
	Update(p Pointer)
	Height() float64
	// place moves the widget to its slot in the panel.
	place(x, y, w float64)
}

// press turns a held button into a single click.
type press struct {
	held bool
}

// clicked reports true on the first frame the button is held over the widget.
func (c *press) clicked(over bool, p Pointer) bool {
	if !over || !p.Down {
		c.held = false
		return false
	}
	if c.held {
		return false
	}
	c.held = true
	return true
}

// Slider picks a value in [Min, Max], rounded to Step when Step is positive.
// OnChange runs when the button is released after the value moved.
type Slider struct {
	Value    float64
	Min, Max float64
	Step     float64
	OnChange func(float64)
	Bounds   Bounds

	dragging bool
	changed  bool
}

// NewSlider returns a slider clamped to [lo, hi].
func NewSlider(lo, hi, step, value float64, onChange func(float64)) *Slider {
	s := &Slider{Min: lo, Max: hi, Step: step, OnChange: onChange, Bounds: Bounds{H: 12}}
	s.Value = s.snap(value)
	return s
}

func (s *Slider) snap(v float64) float64 {
	if s.Step > 0 {
		v = s.Min + math.Round((v-s.Min)/s.Step)*s.Step
	}
	return math.Max(s.Min, math.Min(s.Max, v))
}

// Ratio is the filled fraction of the bar.
func (s *Slider) Ratio() float64 {
	if s.Max == s.Min {
		return 0
	}
	return (s.Value - s.Min) / (s.Max - s.Min)
}

func (s *Slider) Update(p Pointer) {
	if p.Down && (s.dragging || s.Bounds.Contains(p)) {
		s.dragging = true
		ratio := (float64(p.X) - s.Bounds.X) / s.Bounds.W
		if v := s.snap(s.Min + ratio*(s.Max-s.Min)); v != s.Value {
			s.Value, s.changed = v, true
		}
		return
	}
	if s.dragging && s.changed && s.OnChange != nil {
		s.OnChange(s.Value)
	}
	s.dragging, s.changed = false, false
}

func (s *Slider) Height() float64 { return s.Bounds.H + 25 }

func (s *Slider) place(x, y, w float64) {
	s.Bounds.X, s.Bounds.Y, s.Bounds.W = x, y, w
}

// Checkbox toggles a boolean. OnToggle runs after every change.
type Checkbox struct {
	Value    bool
	OnToggle func(bool)
	Bounds   Bounds

	press press
}

// NewCheckbox returns a 16px checkbox.
func NewCheckbox(value bool, onToggle func(bool)) *Checkbox {
	return &Checkbox{Value: value, OnToggle: onToggle, Bounds: Bounds{W: 16, H: 16}}
}

func (c *Checkbox) Update(p Pointer) {
	if c.press.clicked(c.Bounds.Contains(p), p) {
		c.Value = !c.Value
		if c.OnToggle != nil {
			c.OnToggle(c.Value)
		}
	}
}

func (c *Checkbox) Height() float64 { return c.Bounds.H + 20 }

func (c *Checkbox) place(x, y, _ float64) {
	c.Bounds.X, c.Bounds.Y = x, y
}

// Choice is a row of mutually exclusive buttons.
type Choice struct {
	Options  []string
	Selected int
	OnSelect func(index int, option string)
	Bounds   Bounds

	presses []press
}

// NewChoice returns a choice with selected highlighted.
func NewChoice(options []string, selected int, onSelect func(int, string)) *Choice {
	return &Choice{
		Options:  options,
		Selected: selected,
		OnSelect: onSelect,
		Bounds:   Bounds{H: 20},
		presses:  make([]press, len(options)),
	}
}

// Button returns the screen area of option i.
func (c *Choice) Button(i int) Bounds {
	w := c.Bounds.W / float64(len(c.Options))
	return Bounds{X: c.Bounds.X + float64(i)*w, Y: c.Bounds.Y, W: w - 2, H: c.Bounds.H}
}

// Select highlights option i without running OnSelect.
func (c *Choice) Select(i int) {
	if i >= 0 && i < len(c.Options) {
		c.Selected = i
	}
}

func (c *Choice) Update(p Pointer) {
	for i := range c.Options {
		if c.presses[i].clicked(c.Button(i).Contains(p), p) && i != c.Selected {
			c.Selected = i
			if c.OnSelect != nil {
				c.OnSelect(i, c.Options[i])
			}
		}
	}
}

func (c *Choice) Height() float64 { return c.Bounds.H + 22 }

func (c *Choice) place(x, y, w float64) {
	c.Bounds.X, c.Bounds.Y, c.Bounds.W = x, y, w
}
