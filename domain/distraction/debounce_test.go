package distraction

import (
	"log/slog"
	"testing"
	"time"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var defaultThresholds = Thresholds{PhoneFrames: 5, EyeAR: 0.25, ClosedFor: 5 * time.Second, Cooldown: 5 * time.Second}

type firedAlert struct {
	idx  int
	kind AlertKind
	at   time.Time
}

// feedSeries feeds observations spaced by step starting at base and returns
// every alert that fired.
func feedSeries(e *Engine, base time.Time, step time.Duration, obs []Observation) []firedAlert {
	var out []firedAlert
	for i, o := range obs {
		t := base.Add(time.Duration(i) * step)
		if kind, ok := e.Feed(o, t); ok {
			out = append(out, firedAlert{idx: i, kind: kind, at: t})
		}
	}
	return out
}

func phone(n int) []Observation {
	out := make([]Observation, n)
	for i := range out {
		out[i] = Observation{PhoneDetected: true}
	}
	return out
}

func closed(n int) []Observation {
	out := make([]Observation, n)
	for i := range out {
		out[i] = Observation{EyeOpenness: 0.1, HasEyeOpenness: true}
	}
	return out
}

func open(n int) []Observation {
	out := make([]Observation, n)
	for i := range out {
		out[i] = Observation{EyeOpenness: 0.35, HasEyeOpenness: true}
	}
	return out
}

func concat(parts ...[]Observation) []Observation {
	var out []Observation
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var base = time.Unix(1_700_000_000, 0)

func TestEngine_PhoneAlertOnFifthConsecutiveFrame(t *testing.T) {
	e := NewEngine(defaultThresholds, discardLogger)
	got := feedSeries(e, base, 33*time.Millisecond, phone(5))
	if len(got) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(got))
	}
	if got[0].idx != 4 || got[0].kind != PhoneUse {
		t.Fatalf("expected PhoneUse on frame 4, got %+v", got[0])
	}
	if e.State().PhoneFrames != 0 {
		t.Fatalf("counter not reset after alert: %d", e.State().PhoneFrames)
	}
}

func TestEngine_PhoneGapResetsCounter(t *testing.T) {
	e := NewEngine(defaultThresholds, nil)
	obs := concat(phone(4), []Observation{{}}, phone(5))
	got := feedSeries(e, base, 33*time.Millisecond, obs)
	if len(got) != 1 || got[0].idx != 9 {
		t.Fatalf("expected one alert at frame 9, got %+v", got)
	}
}

func TestEngine_FourPhoneFramesNoAlert(t *testing.T) {
	e := NewEngine(defaultThresholds, nil)
	if got := feedSeries(e, base, 33*time.Millisecond, phone(4)); len(got) != 0 {
		t.Fatalf("unexpected alerts %+v", got)
	}
}

func TestEngine_DozingAfterContinuousClosure(t *testing.T) {
	e := NewEngine(defaultThresholds, discardLogger)
	// 6s of closed eyes sampled every 100ms.
	got := feedSeries(e, base, 100*time.Millisecond, closed(61))
	if len(got) != 1 {
		t.Fatalf("expected exactly one dozing alert, got %+v", got)
	}
	if got[0].kind != Dozing || got[0].idx != 50 {
		t.Fatalf("expected Dozing at frame 50 (5s), got %+v", got[0])
	}
	// The timer restarts on the first closed frame after the alert.
	if want := base.Add(5100 * time.Millisecond); !e.State().EyesClosedSince.Equal(want) {
		t.Fatalf("closure timer = %v, want %v", e.State().EyesClosedSince, want)
	}
}

func TestEngine_ReopeningResetsClosureTimer(t *testing.T) {
	e := NewEngine(defaultThresholds, nil)
	obs := concat(closed(40), open(1), closed(40))
	if got := feedSeries(e, base, 100*time.Millisecond, obs); len(got) != 0 {
		t.Fatalf("unexpected alerts %+v", got)
	}
}

func TestEngine_MissingFaceResetsClosureTimer(t *testing.T) {
	e := NewEngine(defaultThresholds, nil)
	obs := concat(closed(30), []Observation{{}}, closed(30))
	if got := feedSeries(e, base, 100*time.Millisecond, obs); len(got) != 0 {
		t.Fatalf("unexpected alerts %+v", got)
	}
}

func TestEngine_CooldownSharedAcrossKinds(t *testing.T) {
	e := NewEngine(defaultThresholds, nil)
	// Phone for the first 5 frames and eyes closed the whole time.
	obs := closed(120)
	for i := 0; i < 5; i++ {
		obs[i].PhoneDetected = true
	}
	got := feedSeries(e, base, 100*time.Millisecond, obs)
	if len(got) < 2 {
		t.Fatalf("expected phone then dozing alert, got %+v", got)
	}
	if got[0].kind != PhoneUse || got[0].idx != 4 {
		t.Fatalf("first alert should be PhoneUse at frame 4, got %+v", got[0])
	}
	// Closure reached at 5.0s but the cooldown runs until strictly after 5.4s.
	if got[1].kind != Dozing || got[1].idx != 55 {
		t.Fatalf("second alert should be Dozing at frame 55, got %+v", got[1])
	}
	for i := 1; i < len(got); i++ {
		if gap := got[i].at.Sub(got[i-1].at); gap <= defaultThresholds.Cooldown {
			t.Fatalf("alerts %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestEngine_OneAlertPerFramePhoneWins(t *testing.T) {
	e := NewEngine(defaultThresholds, nil)
	obs := closed(102)
	// Fifth phone frame lands exactly when the closure reaches 5s.
	for i := 46; i <= 50; i++ {
		obs[i].PhoneDetected = true
	}
	got := feedSeries(e, base, 100*time.Millisecond, obs)
	if len(got) != 2 {
		t.Fatalf("expected two alerts, got %+v", got)
	}
	if got[0].idx != 50 || got[0].kind != PhoneUse {
		t.Fatalf("expected PhoneUse at frame 50, got %+v", got[0])
	}
	// Closure kept running, so dozing fires as soon as the cooldown expires.
	if got[1].idx != 101 || got[1].kind != Dozing {
		t.Fatalf("expected Dozing at frame 101, got %+v", got[1])
	}
}

func TestEngine_ResetClearsState(t *testing.T) {
	e := NewEngine(defaultThresholds, nil)
	feedSeries(e, base, 100*time.Millisecond, concat(phone(5), closed(3)))
	e.Reset()
	st := e.State()
	if st.PhoneFrames != 0 || !st.EyesClosedSince.IsZero() || !st.LastAlert.IsZero() {
		t.Fatalf("state not cleared: %+v", st)
	}
	// Fresh engine state means the next phone run alerts without cooldown.
	got := feedSeries(e, base.Add(time.Second), 33*time.Millisecond, phone(5))
	if len(got) != 1 {
		t.Fatalf("expected alert after reset, got %+v", got)
	}
}

func TestEngine_ZeroThresholdsUseDefaults(t *testing.T) {
	e := NewEngine(Thresholds{}, nil)
	if got := feedSeries(e, base, 33*time.Millisecond, make([]Observation, 3)); len(got) != 0 {
		t.Fatalf("empty observations fired %+v", got)
	}
	if got := feedSeries(e, base.Add(time.Second), 33*time.Millisecond, phone(4)); len(got) != 0 {
		t.Fatalf("four phone frames fired %+v", got)
	}
	e.Reset()
	got := feedSeries(e, base.Add(2*time.Second), 33*time.Millisecond, phone(5))
	if len(got) != 1 || got[0].idx != 4 || got[0].kind != PhoneUse {
		t.Fatalf("expected phone alert on fifth frame, got %+v", got)
	}
	e.Reset()
	if got := feedSeries(e, base.Add(3*time.Second), time.Second, closed(5)); len(got) != 0 {
		t.Fatalf("closure shorter than default fired %+v", got)
	}
}

func TestAlertKind_Text(t *testing.T) {
	if PhoneUse.String() != "Mobile Phone" || Dozing.String() != "Dozing" {
		t.Fatalf("unexpected names %q %q", PhoneUse, Dozing)
	}
	if PhoneUse.Message() != "Put your phone away and focus!" {
		t.Fatalf("phone message %q", PhoneUse.Message())
	}
	if Dozing.Message() != "Wake up! You are dozing off!" {
		t.Fatalf("dozing message %q", Dozing.Message())
	}
}
