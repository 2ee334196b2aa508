//go:build ebiten

package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	trackColor    = color.RGBA{R: 80, G: 80, B: 80, A: 255}
	fillColor     = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	checkColor    = color.RGBA{R: 100, G: 200, B: 100, A: 255}
	buttonColor   = color.RGBA{R: 80, G: 120, B: 180, A: 255}
	selectedColor = color.RGBA{R: 100, G: 150, B: 220, A: 255}
	outlineColor  = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

// CursorPointer reads the mouse state of the current frame.
func CursorPointer() Pointer {
	mx, my := ebiten.CursorPosition()
	_, dy := ebiten.Wheel()
	return Pointer{X: mx, Y: my, Down: ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft), Wheel: dy}
}

// Draw renders the panel and its visible widgets.
func (p *Panel) Draw(screen *ebiten.Image) {
	b := p.Bounds
	vector.FillRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), p.BGColor, true)
	vector.StrokeRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), 2, p.BorderColor, true)
	ebitenutil.DebugPrintAt(screen, p.Title, int(b.X+margin), int(b.Y+5))

	for _, s := range p.sections {
		if s.title != "" && p.visible(s.y) {
			vector.FillRect(screen, float32(b.X+5), float32(s.y), float32(b.W-10), 20, p.SectionColor, true)
			ebitenutil.DebugPrintAt(screen, s.title, int(b.X+margin), int(s.y+5))
		}
	}
	p.each(func(label string, w Widget, y float64) {
		if !p.visible(y) {
			return
		}
		ebitenutil.DebugPrintAt(screen, label, int(b.X+margin), int(y))
		switch w := w.(type) {
		case *Slider:
			w.Draw(screen)
		case *Checkbox:
			w.Draw(screen)
		case *Choice:
			w.Draw(screen)
		}
	})
}

// Draw renders the slider track and its filled part.
func (s *Slider) Draw(screen *ebiten.Image) {
	b := s.Bounds
	vector.FillRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), trackColor, true)
	vector.FillRect(screen, float32(b.X), float32(b.Y), float32(b.W*s.Ratio()), float32(b.H), fillColor, true)
}

// Draw renders the box, filled when checked.
func (c *Checkbox) Draw(screen *ebiten.Image) {
	b := c.Bounds
	vector.StrokeRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), 2, outlineColor, true)
	if c.Value {
		vector.FillRect(screen, float32(b.X+2), float32(b.Y+2), float32(b.W-4), float32(b.H-4), checkColor, true)
	}
}

// Draw renders one button per option, the selected one highlighted.
func (c *Choice) Draw(screen *ebiten.Image) {
	for i, option := range c.Options {
		b := c.Button(i)
		bg := buttonColor
		if i == c.Selected {
			bg = selectedColor
		}
		vector.FillRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), bg, true)
		vector.StrokeRect(screen, float32(b.X), float32(b.Y), float32(b.W), float32(b.H), 1, outlineColor, true)
		ebitenutil.DebugPrintAt(screen, option, int(b.X+4), int(b.Y+3))
	}
}
