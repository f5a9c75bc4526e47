package theme

// Applies the palette to the ttk styles used by the monitor window and
// switches between light and dark mode.

import (
	"github.com/soocke/study-buddy-go/ui/palette"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

var darkMode bool

// InitStyles (re)applies styles for the current mode.
func InitStyles() { applyStyles(palette.For(darkMode)) }

// ToggleDark flips dark mode and reapplies styles. Returns the new mode.
func ToggleDark() bool {
	darkMode = !darkMode
	InitStyles()
	return darkMode
}

func applyStyles(p palette.Palette) {
	_ = ActivateTheme("azure light") // baseline metrics
	App.Configure(Background(p.AppBg))

	button := func(name, bg string) {
		StyleConfigure(name, Background(bg), Foreground(p.OnColor), Padding("4p 3p"), Borderwidth(1), Relief("ridge"))
	}
	button(palette.StartButton, p.Primary)
	button(palette.StopButton, p.Danger)

	StyleConfigure(palette.StateLabel, Foreground(p.OnColor), Background(p.Accent), Padding("4p 2p"), Borderwidth(1), Relief("groove"))
	StyleConfigure(palette.IdleBanner, Foreground(p.Text), Background(p.Surface), Padding("6p 4p"), Borderwidth(1), Relief("ridge"))
	StyleConfigure(palette.AlertBanner, Foreground(p.OnColor), Background(p.Danger), Padding("6p 4p"), Borderwidth(1), Relief("ridge"))
}
