package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/soocke/study-buddy-go/config"
	"github.com/soocke/study-buddy-go/domain/capture"
	"github.com/soocke/study-buddy-go/domain/distraction"
	"github.com/soocke/study-buddy-go/domain/overlay"
)

// ErrDetectorFailed ends a run after too many consecutive detector failures.
var ErrDetectorFailed = errors.New("monitor: detector failed repeatedly")

const defaultDispatchQueue = 16

// LoopOptions are read at Start and stay fixed for the run.
type LoopOptions struct {
	RecipientKey        string
	FrameInterval       time.Duration
	DetectorTimeout     time.Duration // per detector call, zero disables
	MaxDetectorFailures int           // consecutive failures before giving up, zero means never
	Thresholds          distraction.Thresholds
	PhoneLabel          string
	LeftEye, RightEye   [6]int
	Annotate            bool
	DispatchQueue       int
}

// OptionsFromConfig derives loop options from cfg for the given recipient.
func OptionsFromConfig(cfg *config.Config, recipientKey string) LoopOptions {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return LoopOptions{
		RecipientKey:        recipientKey,
		FrameInterval:       cfg.FrameInterval(),
		DetectorTimeout:     cfg.DetectorTimeout(),
		MaxDetectorFailures: cfg.MaxDetectorFailures,
		Thresholds:          distraction.ThresholdsFromConfig(cfg),
		PhoneLabel:          cfg.PhoneLabel,
		LeftEye:             cfg.LeftEye,
		RightEye:            cfg.RightEye,
		Annotate:            cfg.Annotate,
		DispatchQueue:       defaultDispatchQueue,
	}
}

// LoopDeps are the collaborators of a Loop. Sink, Hub and Metrics may be nil.
type LoopDeps struct {
	Open    capture.Opener
	Objects distraction.ObjectDetector
	Faces   distraction.FaceLandmarker
	Sink    distraction.EventSink
	Hub     *Hub
	Metrics *Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Loop runs capture, inference, debouncing and alert dispatch on one goroutine.
// Sink calls happen on a separate dispatcher goroutine so they never stall capture.
type Loop struct {
	deps LoopDeps

	mu   sync.Mutex
	opts LoopOptions
	run  *run
}

type run struct {
	cancel       context.CancelFunc
	done         chan struct{}
	dispatch     chan distraction.AlertEvent
	dispatchDone chan struct{}
	recipient    string
	err          error // written by the loop goroutine before done closes
}

// NewLoop returns a stopped loop.
func NewLoop(deps LoopDeps, opts LoopOptions) *Loop {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(deps.Hub)
	}
	return &Loop{deps: deps, opts: opts}
}

// Reconfigure replaces the options used by the next Start.
func (l *Loop) Reconfigure(opts LoopOptions) {
	l.mu.Lock()
	l.opts = opts
	l.mu.Unlock()
}

// Metrics returns the loop counters.
func (l *Loop) Metrics() *Metrics { return l.deps.Metrics }

// Start opens the capture source and launches the loop. An open failure is
// returned and nothing is started. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run != nil && !closed(l.run.done) {
		return nil
	}
	if l.deps.Open == nil || l.deps.Objects == nil || l.deps.Faces == nil {
		return errors.New("monitor: loop is missing a source or detector")
	}
	src, err := l.deps.Open()
	if err != nil {
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
		}
		return err
	}
	opts := l.opts
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 30
	}
	if opts.DispatchQueue <= 0 {
		opts.DispatchQueue = defaultDispatchQueue
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		cancel:       cancel,
		done:         make(chan struct{}),
		dispatch:     make(chan distraction.AlertEvent, opts.DispatchQueue),
		dispatchDone: make(chan struct{}),
		recipient:    opts.RecipientKey,
	}
	l.run = r
	engine := distraction.NewEngine(opts.Thresholds, l.deps.Logger)

	go l.dispatchLoop(r)
	go l.loop(runCtx, r, src, engine, opts)
	l.logInfo("monitor started", "recipient", opts.RecipientKey, "interval", opts.FrameInterval)
	return nil
}

// Stop cancels the run and blocks until the loop has exited and the source
// is closed. An iteration already in progress completes first.
func (l *Loop) Stop() {
	l.mu.Lock()
	r := l.run
	l.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Flush waits until queued alerts have been handed to the sink or ctx ends.
// It only returns early after the loop itself has finished.
func (l *Loop) Flush(ctx context.Context) error {
	l.mu.Lock()
	r := l.run
	l.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.dispatchDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the current run ends. It is closed already when no run exists.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return l.run.done
}

// Err reports why the last run ended: nil for a stop or end of stream.
func (l *Loop) Err() error {
	l.mu.Lock()
	r := l.run
	l.mu.Unlock()
	if r == nil || !closed(r.done) {
		return nil
	}
	return r.err
}

// Running reports whether a run is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.run != nil && !closed(l.run.done)
}

func (l *Loop) loop(ctx context.Context, r *run, src capture.Source, engine *distraction.Engine, opts LoopOptions) {
	defer func() {
		if rec := recover(); rec != nil {
			r.err = fmt.Errorf("monitor: panic: %v", rec)
			l.logError("monitor panic", "error", rec, "stack", string(debug.Stack()))
		}
		if err := src.Close(); err != nil {
			l.logError("capture close", "error", err)
		}
		close(r.dispatch)
		close(r.done)
	}()

	ticker := time.NewTicker(opts.FrameInterval)
	defer ticker.Stop()

	first := true
	failures := 0
	for {
		if ctx.Err() != nil {
			l.logInfo("monitor stopped")
			return
		}
		frame, err := src.Read(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				l.logInfo("monitor stopped")
			case first:
				r.err = fmt.Errorf("%w: first frame: %v", capture.ErrDeviceUnavailable, err)
				l.logError("capture failed on first frame", "error", err)
			default:
				l.logInfo("capture ended", "reason", err)
			}
			return
		}
		first = false
		l.deps.Metrics.FramesRead.Add(1)

		if err := l.process(ctx, r, frame, engine, opts); err != nil {
			failures++
			l.deps.Metrics.FramesSkipped.Add(1)
			l.logWarn("frame skipped", "sequence", frame.Sequence, "error", err, "consecutive", failures)
			if opts.MaxDetectorFailures > 0 && failures >= opts.MaxDetectorFailures {
				r.err = fmt.Errorf("%w: %d consecutive failures: %v", ErrDetectorFailed, failures, err)
				l.logError("monitor giving up on detector", "error", err)
				return
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			l.logInfo("monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// process runs both detectors on frame and feeds the engine. On a detector
// error the raw frame is still published and the engine is left untouched.
func (l *Loop) process(ctx context.Context, r *run, frame capture.Frame, engine *distraction.Engine, opts LoopOptions) error {
	start := l.deps.Now()

	dctx, cancel := l.detectContext(ctx, opts)
	dets, err := l.deps.Objects.Detect(dctx, frame)
	cancel()
	if err != nil {
		l.deps.Metrics.DetectorErrors.Add(1)
		l.publishFrame(frame)
		return fmt.Errorf("object detection: %w", err)
	}
	dctx, cancel = l.detectContext(ctx, opts)
	faces, err := l.deps.Faces.Locate(dctx, frame)
	cancel()
	if err != nil {
		l.deps.Metrics.DetectorErrors.Add(1)
		l.publishFrame(frame)
		return fmt.Errorf("face landmarks: %w", err)
	}

	obs := distraction.Observation{PhoneDetected: distraction.PhoneDetected(dets, opts.PhoneLabel)}
	obs.EyeOpenness, obs.HasEyeOpenness = distraction.EyeOpennessFromFaces(faces, opts.LeftEye, opts.RightEye)
	l.deps.Metrics.SetEyeOpenness(obs.EyeOpenness, obs.HasEyeOpenness)

	at := frame.CapturedAt
	if at.IsZero() {
		at = start
	}
	if kind, fired := engine.Feed(obs, at); fired {
		alert := distraction.NewAlertEvent(kind, frame, at)
		l.deps.Metrics.CountAlert(kind)
		l.enqueue(r, alert)
		if l.deps.Hub != nil {
			l.deps.Hub.PublishAlert(alert)
		}
	}

	out := frame
	if opts.Annotate {
		out.Image = overlay.Annotate(frame.Image, dets, overlay.Status{
			EyeOpenness:    obs.EyeOpenness,
			HasEyeOpenness: obs.HasEyeOpenness,
			Threshold:      opts.Thresholds.EyeAR,
			PhoneLabel:     opts.PhoneLabel,
		})
	}
	l.publishFrame(out)
	l.deps.Metrics.FramesProcessed.Add(1)
	l.deps.Metrics.FrameLatencyMs.Store(uint64(l.deps.Now().Sub(start).Milliseconds()))
	return nil
}

func (l *Loop) detectContext(ctx context.Context, opts LoopOptions) (context.Context, context.CancelFunc) {
	if opts.DetectorTimeout > 0 {
		return context.WithTimeout(ctx, opts.DetectorTimeout)
	}
	return context.WithCancel(ctx)
}

func (l *Loop) publishFrame(f capture.Frame) {
	if l.deps.Hub != nil {
		l.deps.Hub.PublishFrame(f)
	}
}

// enqueue hands alert to the dispatcher without blocking.
func (l *Loop) enqueue(r *run, alert distraction.AlertEvent) {
	if l.deps.Sink == nil {
		return
	}
	select {
	case r.dispatch <- alert:
	default:
		l.deps.Metrics.SinkDropped.Add(1)
		l.logWarn("alert dropped, sink queue full", "kind", alert.Kind.String(), "id", alert.ID.String(), "recipient", r.recipient)
	}
}

func (l *Loop) dispatchLoop(r *run) {
	defer close(r.dispatchDone)
	for alert := range r.dispatch {
		l.record(alert, r.recipient)
	}
}

func (l *Loop) record(alert distraction.AlertEvent, recipient string) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logError("event sink panic", "error", rec, "stack", string(debug.Stack()))
		}
	}()
	l.deps.Sink.Record(alert, recipient)
	l.deps.Metrics.SinkRecords.Add(1)
}

func (l *Loop) logInfo(msg string, args ...any) {
	if l.deps.Logger != nil {
		l.deps.Logger.Info(msg, args...)
	}
}

func (l *Loop) logWarn(msg string, args ...any) {
	if l.deps.Logger != nil {
		l.deps.Logger.Warn(msg, args...)
	}
}

func (l *Loop) logError(msg string, args ...any) {
	if l.deps.Logger != nil {
		l.deps.Logger.Error(msg, args...)
	}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
