package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// Theme holds the styles used by the view.
type Theme struct {
	Base      tcell.Style
	Gutter    tcell.Style
	Highlight tcell.Style
	StatusBar tcell.Style
	Prompt    tcell.Style
	Degraded  tcell.Style
}

// DefaultTheme builds the default dark theme. The highlight background
// is blended from the base background toward the accent color rather
// than hard-coded, so it stays legible against any accent.
func DefaultTheme() Theme {
	bg := colorful.Color{R: 0.08, G: 0.08, B: 0.10}
	fg := colorful.Color{R: 0.85, G: 0.85, B: 0.82}
	accent := colorful.Color{R: 0.25, G: 0.55, B: 0.90}

	highlightBg := bg.BlendLab(accent, 0.35)

	base := tcell.StyleDefault.
		Background(toTcell(bg)).
		Foreground(toTcell(fg))

	return Theme{
		Base:      base,
		Gutter:    base.Foreground(toTcell(fg.BlendLab(bg, 0.55))),
		Highlight: base.Background(toTcell(highlightBg)),
		StatusBar: tcell.StyleDefault.
			Background(toTcell(bg.BlendLab(fg, 0.12))).
			Foreground(toTcell(fg)),
		Prompt: base.Foreground(toTcell(accent)).Bold(true),
		Degraded: tcell.StyleDefault.
			Background(toTcell(colorful.Color{R: 0.45, G: 0.12, B: 0.12})).
			Foreground(toTcell(fg)),
	}
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
