package ui

import "image/color"

const (
	titleHeight   = 30
	sectionHeight = 25
	labelHeight   = 15
	margin        = 10
)

// Panel stacks labelled widgets in sections and scrolls them with the wheel.
type Panel struct {
	Bounds       Bounds
	Title        string
	ScrollOffset float64

	// Styling
	BGColor      color.RGBA
	BorderColor  color.RGBA
	SectionColor color.RGBA

	sections []*section
}

type section struct {
	title   string
	labels  []string
	widgets []Widget
	y       float64 // header position of the last layout
}

// NewPanel creates an empty panel.
func NewPanel(title string, x, y, width, height float64) *Panel {
	return &Panel{
		Bounds:       Bounds{X: x, Y: y, W: width, H: height},
		Title:        title,
		BGColor:      color.RGBA{R: 40, G: 40, B: 45, A: 230},
		BorderColor:  color.RGBA{R: 100, G: 100, B: 110, A: 255},
		SectionColor: color.RGBA{R: 60, G: 60, B: 70, A: 255},
	}
}

// AddSection starts a new section; widgets added next belong to it.
func (p *Panel) AddSection(title string) {
	p.sections = append(p.sections, &section{title: title})
}

// Add appends w under label to the current section.
func (p *Panel) Add(label string, w Widget) {
	if len(p.sections) == 0 {
		p.AddSection("")
	}
	s := p.sections[len(p.sections)-1]
	s.labels = append(s.labels, label)
	s.widgets = append(s.widgets, w)
	p.layout()
}

// ContentHeight is the height of everything in the panel, unscrolled.
func (p *Panel) ContentHeight() float64 {
	h := float64(titleHeight)
	for _, s := range p.sections {
		h += sectionHeight
		for _, w := range s.widgets {
			h += w.Height()
		}
	}
	return h
}

// Captures reports whether the pointer is over the panel.
func (p *Panel) Captures(ptr Pointer) bool {
	return p.Bounds.Contains(ptr)
}

// Update scrolls the panel and forwards the pointer to the visible widgets.
func (p *Panel) Update(ptr Pointer) {
	if ptr.Wheel != 0 && p.Captures(ptr) {
		p.ScrollOffset -= ptr.Wheel * 20
		maxScroll := max(p.ContentHeight()-p.Bounds.H+40, 0)
		p.ScrollOffset = min(max(p.ScrollOffset, 0), maxScroll)
	}
	p.layout()
	p.each(func(_ string, w Widget, y float64) {
		if p.visible(y) {
			w.Update(ptr)
		}
	})
}

// layout places every widget below its label, shifted by the scroll offset.
func (p *Panel) layout() {
	y := p.Bounds.Y + titleHeight - p.ScrollOffset
	for _, s := range p.sections {
		s.y = y
		y += sectionHeight
		for _, w := range s.widgets {
			w.place(p.Bounds.X+margin, y+labelHeight, p.Bounds.W-2*margin)
			y += w.Height()
		}
	}
}

// each walks the widgets with the y of their label.
func (p *Panel) each(f func(label string, w Widget, y float64)) {
	for _, s := range p.sections {
		y := s.y + sectionHeight
		for i, w := range s.widgets {
			f(s.labels[i], w, y)
			y += w.Height()
		}
	}
}

func (p *Panel) visible(y float64) bool {
	return y >= p.Bounds.Y && y <= p.Bounds.Y+p.Bounds.H
}
