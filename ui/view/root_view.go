package view

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/study-buddy-go/config"
	"github.com/soocke/study-buddy-go/ui/palette"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews but exposes minimal exported fields for presenters.
type RootView struct {
	cfg       *config.Config
	cfgPath   string
	logger    *slog.Logger
	onApplied func(*config.Config)

	// Subviews
	Session     SessionStats
	ConfigPanel ConfigPanel
	Preview     MonitorPreview

	// Widgets
	StateLabel  *TLabelWidget
	BannerLabel *TLabelWidget
	LogLabel    *LabelWidget
	CountsLabel *LabelWidget
	ToggleBtn   *TButtonWidget

	lastBanner   string
	lastAlerting bool
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger, onApplied func(*config.Config)) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger, onApplied: onApplied}
}

// Build constructs the layout for student. Handlers are invoked on user actions.
func (rv *RootView) Build(student string, onToggle, onDarkMode, onExit func()) {
	if rv == nil {
		return
	}
	// Row 0: session stats, state label, buttons frame
	stats := Frame()
	Grid(stats, Row(0), Column(0), Columnspan(2), Sticky("w"), Padx("0.3m"), Pady("0.3m"))
	rv.Session = NewSessionStats(stats, 0, 0)
	rv.StateLabel = TLabel(Txt("Monitoring: off"), Style(palette.StateLabel))
	Grid(rv.StateLabel, Row(0), Column(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(4), Rowspan(3), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	Grid(Label(Txt("Student: "+student), Anchor("w")), In(btnFrame), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	rv.ToggleBtn = TButton(Txt("Start Monitoring"), Style(palette.ToggleStyle(false)), Command(onToggle))
	Grid(rv.ToggleBtn, In(btnFrame), Row(1), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	darkBtn := Button(Txt("Dark Mode"), Command(onDarkMode))
	Grid(darkBtn, In(btnFrame), Row(2), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	exitBtn := Button(Txt("Exit"), Command(onExit))
	Grid(exitBtn, In(btnFrame), Row(3), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	rv.CountsLabel = Label(Txt("Phone: 0  Dozing: 0"), Anchor("w"))
	Grid(rv.CountsLabel, In(btnFrame), Row(4), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	rv.LogLabel = Label(Txt("Distraction Log:\nNo distractions yet."), Anchor("nw"), Borderwidth(1), Relief("groove"))
	Grid(rv.LogLabel, In(btnFrame), Row(5), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.4m"))

	// Row 1: alert banner
	rv.BannerLabel = TLabel(Style(palette.BannerStyle(false)))
	Grid(rv.BannerLabel, Row(1), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	// Config panel rows
	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger, rv.onApplied)
	endRow := rv.ConfigPanel.Build(2)

	rv.Preview = NewMonitorPreview(endRow)
}

// --- ControlPresenter view contract ---

// SetStateLabel updates the state label text.
func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

// ConfigEditable toggles config panel editability.
func (rv *RootView) ConfigEditable(enabled bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(enabled)
	}
}

// PreviewReset clears the live preview.
func (rv *RootView) PreviewReset() {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Reset()
	}
}

// SetMonitoring relabels the toggle button.
func (rv *RootView) SetMonitoring(on bool) {
	if rv == nil || rv.ToggleBtn == nil {
		return
	}
	text := "Start Monitoring"
	if on {
		text = "Stop Monitoring"
	}
	rv.ToggleBtn.Configure(Txt(text), Style(palette.ToggleStyle(on)))
}

// --- MonitorPresenter view contract ---

func (rv *RootView) UpdatePreview(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.UpdatePreview(img)
	}
}

func (rv *RootView) UpdateSnapshot(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.UpdateSnapshot(img)
	}
}

// SetBanner is called every tick; it only touches Tk when the text or state changed.
func (rv *RootView) SetBanner(text string, alerting bool) {
	if rv == nil || rv.BannerLabel == nil {
		return
	}
	if text == rv.lastBanner && alerting == rv.lastAlerting {
		return
	}
	rv.lastBanner, rv.lastAlerting = text, alerting
	rv.RefreshBanner()
}

// RefreshBanner reapplies the banner text and style.
func (rv *RootView) RefreshBanner() {
	if rv == nil || rv.BannerLabel == nil {
		return
	}
	rv.BannerLabel.Configure(Txt(rv.lastBanner), Style(palette.BannerStyle(rv.lastAlerting)))
}

func (rv *RootView) SetLog(text string) {
	if rv != nil && rv.LogLabel != nil {
		rv.LogLabel.Configure(Txt(text))
	}
}

func (rv *RootView) SetCounts(phone, dozing int) {
	if rv != nil && rv.CountsLabel != nil {
		rv.CountsLabel.Configure(Txt(fmt.Sprintf("Phone: %d  Dozing: %d", phone, dozing)))
	}
}

// --- SessionPresenter view contract ---

func (rv *RootView) SetSession(session, total time.Duration) {
	if rv == nil || rv.Session == nil {
		return
	}
	rv.Session.SetSession(session)
	rv.Session.SetTotal(total)
}

func (rv *RootView) SetStreak(current, best time.Duration) {
	if rv != nil && rv.Session != nil {
		rv.Session.SetStreak(current, best)
	}
}
