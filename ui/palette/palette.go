// Package palette holds the colors and ttk style names of the study monitor
// window. It has no Tk dependency; package theme applies it.
package palette

// Palette is the resolved color set for one mode.
type Palette struct {
	AppBg     string
	Surface   string
	Border    string
	Primary   string
	Danger    string
	Accent    string
	Text      string
	TextMuted string
	OnColor   string // text drawn on Primary, Danger or Accent
}

var (
	Light = Palette{
		AppBg:     "#f7f9fb",
		Surface:   "#ffffff",
		Border:    "#d0d7de",
		Primary:   "#2563eb",
		Danger:    "#dc2626",
		Accent:    "#10b981",
		Text:      "#1e293b",
		TextMuted: "#64748b",
		OnColor:   "white",
	}
	Dark = Palette{
		AppBg:     "#0f172a",
		Surface:   "#1e293b",
		Border:    "#334155",
		Primary:   "#3b82f6",
		Danger:    "#ef4444",
		Accent:    "#10b981",
		Text:      "#f1f5f9",
		TextMuted: "#94a3b8",
		OnColor:   "#f0fdf4",
	}
)

// For returns the palette of the given mode.
func For(dark bool) Palette {
	if dark {
		return Dark
	}
	return Light
}

// ttk style names.
const (
	StartButton = "primary.TButton"
	StopButton  = "danger.TButton"
	StateLabel  = "state.TLabel"
	IdleBanner  = "idle.TLabel"
	AlertBanner = "alert.TLabel"
)

// ToggleStyle is the style of the start/stop button while monitoring is on or off.
func ToggleStyle(monitoring bool) string {
	if monitoring {
		return StopButton
	}
	return StartButton
}

// BannerStyle is the style of the alert banner.
func BannerStyle(alerting bool) string {
	if alerting {
		return AlertBanner
	}
	return IdleBanner
}
