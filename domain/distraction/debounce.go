package distraction

import (
	"log/slog"
	"time"

	"github.com/soocke/study-buddy-go/config"
)

// Thresholds parameterize the debounce rules.
type Thresholds struct {
	PhoneFrames int           // consecutive phone frames before an alert
	EyeAR       float64       // eye openness below this counts as closed
	ClosedFor   time.Duration // continuous closure before a dozing alert
	Cooldown    time.Duration // minimum spacing between any two alerts
}

// ThresholdsFromConfig reads the debounce parameters from cfg, falling back to defaults.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return Thresholds{
		PhoneFrames: cfg.PhoneFrameThreshold,
		EyeAR:       cfg.EyeARThreshold,
		ClosedFor:   cfg.EyeClosedDuration(),
		Cooldown:    cfg.AlertCooldown(),
	}
}

// Observation is the per-frame input to the engine.
type Observation struct {
	PhoneDetected  bool
	EyeOpenness    float64
	HasEyeOpenness bool
}

// State is a read-only snapshot of the engine counters.
type State struct {
	PhoneFrames     int
	EyesClosedSince time.Time // zero when eyes are not closed
	LastAlert       time.Time // zero when no alert has fired
}

// Engine turns per-frame observations into debounced alerts.
// Not safe for concurrent use; call Feed from a single goroutine.
type Engine struct {
	thr    Thresholds
	logger *slog.Logger

	phoneFrames     int
	eyesClosedSince time.Time
	lastAlert       time.Time
}

// NewEngine returns an engine with a fresh state. Unset or out-of-range
// thresholds take the configuration defaults.
func NewEngine(thr Thresholds, logger *slog.Logger) *Engine {
	return &Engine{thr: thr.withDefaults(), logger: logger}
}

func (t Thresholds) withDefaults() Thresholds {
	def := ThresholdsFromConfig(nil)
	if t.PhoneFrames < 1 {
		t.PhoneFrames = def.PhoneFrames
	}
	if t.EyeAR <= 0 || t.EyeAR >= 1 {
		t.EyeAR = def.EyeAR
	}
	if t.ClosedFor <= 0 {
		t.ClosedFor = def.ClosedFor
	}
	if t.Cooldown < 0 {
		t.Cooldown = 0
	}
	return t
}

// Reset clears all counters and timers.
func (e *Engine) Reset() {
	e.phoneFrames = 0
	e.eyesClosedSince = time.Time{}
	e.lastAlert = time.Time{}
}

// State returns the current counters.
func (e *Engine) State() State {
	return State{PhoneFrames: e.phoneFrames, EyesClosedSince: e.eyesClosedSince, LastAlert: e.lastAlert}
}

// Feed processes one frame observed at t and returns the alert kind, if any.
// At most one alert fires per call and the cooldown is shared by all kinds.
func (e *Engine) Feed(obs Observation, t time.Time) (AlertKind, bool) {
	var fired AlertKind

	if obs.PhoneDetected {
		e.phoneFrames++
	} else {
		e.phoneFrames = 0
	}
	if e.phoneFrames >= e.thr.PhoneFrames && e.cooledDown(t) {
		fired = PhoneUse
		e.phoneFrames = 0
		e.lastAlert = t
	}

	// Closure bookkeeping runs every frame; a phone alert only blocks emission.
	if obs.HasEyeOpenness && obs.EyeOpenness < e.thr.EyeAR {
		switch {
		case e.eyesClosedSince.IsZero():
			e.eyesClosedSince = t
		case fired == 0 && t.Sub(e.eyesClosedSince) >= e.thr.ClosedFor && e.cooledDown(t):
			fired = Dozing
			e.lastAlert = t
			e.eyesClosedSince = time.Time{}
		}
	} else {
		e.eyesClosedSince = time.Time{}
	}

	if fired == 0 {
		return 0, false
	}
	if e.logger != nil {
		e.logger.Info("distraction detected", "kind", fired.String(), "at", t)
	}
	return fired, true
}

func (e *Engine) cooledDown(t time.Time) bool {
	return e.lastAlert.IsZero() || t.Sub(e.lastAlert) > e.thr.Cooldown
}
