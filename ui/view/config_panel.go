package view

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/study-buddy-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel encapsulates the detection settings form.
// It writes back into *config.Config on ApplyChanges.
type ConfigPanel interface {
	Build(startRow int) (endRow int) // constructs widgets starting at startRow, returns next free row
	SetEditable(enabled bool)
	ApplyChanges() // parses widget text into underlying config and persists
}

type configPanel struct {
	cfg       *config.Config
	cfgPath   string
	logger    *slog.Logger
	onApplied func(*config.Config)
	applyBtn  *ButtonWidget
	widgets   map[string]*TextWidget // keyed by internal field id
}

// NewConfigPanel creates the view bound to cfg. onApplied runs after a
// successful apply so the loop can pick up the new thresholds.
func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger, onApplied func(*config.Config)) ConfigPanel {
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, onApplied: onApplied, widgets: make(map[string]*TextWidget)}
}

func (v *configPanel) Build(startRow int) (row int) {
	c := v.cfg
	row = startRow
	makeRow := func(id, label, value string) {
		lbl := Label(Txt(label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		w := Text(Height(1), Width(16))
		Grid(w, Row(row), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", value)
		v.widgets[id] = w
		row++
	}
	makeRow("cameraDevice", "Camera Device", fmt.Sprintf("%d", c.CameraDevice))
	makeRow("targetFPS", "Target FPS", fmt.Sprintf("%d", c.TargetFPS))
	makeRow("phoneFrames", "Phone Frames", fmt.Sprintf("%d", c.PhoneFrameThreshold))
	makeRow("eyeAR", "Eye AR Threshold", fmt.Sprintf("%.3f", c.EyeARThreshold))
	makeRow("eyeClosed", "Eyes Closed Seconds", fmt.Sprintf("%.1f", c.EyeClosedSeconds))
	makeRow("cooldown", "Alert Cooldown Seconds", fmt.Sprintf("%.1f", c.AlertCooldownSeconds))
	makeRow("annotate", "Annotate (true/false)", fmt.Sprintf("%t", c.Annotate))
	v.applyBtn = Button(Txt("Apply Changes"), Command(func() { v.ApplyChanges() }))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	row++
	return row
}

func (v *configPanel) SetEditable(enabled bool) {
	state := "disabled"
	if enabled {
		state = "normal"
	}
	for _, w := range v.widgets {
		if w != nil {
			w.Configure(State(state))
		}
	}
	if v.applyBtn != nil {
		v.applyBtn.Configure(State(state))
	}
}

func (v *configPanel) text(id string) (string, bool) {
	w := v.widgets[id]
	if w == nil {
		return "", false
	}
	return strings.TrimSpace(strings.Join(w.Get("1.0", END), "")), true
}

func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	fields := map[string]string{}
	for id := range v.widgets {
		if s, ok := v.text(id); ok {
			fields[id] = s
		}
	}
	cfg, err := applyFields(*v.cfg, fields)
	if err != nil {
		if v.logger != nil {
			v.logger.Warn("config rejected", "error", err)
		}
		return
	}
	*v.cfg = cfg
	if err := v.cfg.Save(v.cfgPath); err != nil {
		if v.logger != nil {
			v.logger.Error("config save failed", "error", err)
		}
	} else if v.logger != nil {
		v.logger.Info("config saved", "path", v.cfgPath)
	}
	if v.onApplied != nil {
		v.onApplied(v.cfg)
	}
}

// applyFields parses the form values into a copy of cfg. Unparseable values
// keep the old setting; the result must still validate.
func applyFields(cfg config.Config, fields map[string]string) (config.Config, error) {
	assignFloat := func(id string, dst *float64) {
		if f, ok := parseFloatField(fields[id]); ok {
			*dst = f
		}
	}
	assignInt := func(id string, dst *int) {
		if i, ok := parseIntField(fields[id]); ok {
			*dst = i
		}
	}
	assignInt("cameraDevice", &cfg.CameraDevice)
	assignInt("targetFPS", &cfg.TargetFPS)
	assignInt("phoneFrames", &cfg.PhoneFrameThreshold)
	assignFloat("eyeAR", &cfg.EyeARThreshold)
	assignFloat("eyeClosed", &cfg.EyeClosedSeconds)
	assignFloat("cooldown", &cfg.AlertCooldownSeconds)
	if b, ok := parseBoolLoose(fields["annotate"]); ok {
		cfg.Annotate = b
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parsing helpers (unexported)
func parseFloatField(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
func parseIntField(s string) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return i, true
}
func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	default:
		return false, false
	}
}
