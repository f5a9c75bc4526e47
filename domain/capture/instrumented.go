package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const captureStatsLogInterval = 5 * time.Second

// Instrumented wraps a Source and records read counts and latency.
type Instrumented struct {
	src          Source
	logger       *slog.Logger
	captures     atomic.Uint64
	failures     atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
	last         atomic.Int64 // unix nanos of the last successful read
	lastLog      atomic.Int64
	closeOnce    sync.Once
	closeErr     error
}

// Instrument returns src wrapped with capture statistics.
func Instrument(src Source, logger *slog.Logger) *Instrumented {
	return &Instrumented{src: src, logger: logger}
}

// InstrumentOpener wraps every Source returned by open. onOpen, when set,
// receives the wrapper so callers can poll Stats.
func InstrumentOpener(open Opener, logger *slog.Logger, onOpen func(*Instrumented)) Opener {
	return func() (Source, error) {
		src, err := open()
		if err != nil {
			return nil, err
		}
		in := Instrument(src, logger)
		if onOpen != nil {
			onOpen(in)
		}
		return in, nil
	}
}

func (s *Instrumented) Read(ctx context.Context) (Frame, error) {
	start := time.Now()
	f, err := s.src.Read(ctx)
	if err != nil {
		s.failures.Add(1)
		return f, err
	}
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	s.sequence.Store(f.Sequence)
	s.last.Store(f.CapturedAt.UnixNano())
	s.maybeLogStats(start)
	return f, nil
}

// Close closes the wrapped source exactly once.
func (s *Instrumented) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.src.Close() })
	return s.closeErr
}

func (s *Instrumented) Stats() CaptureStats {
	captures := s.captures.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	avgMicros := 0.0
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	var last time.Time
	if ns := s.last.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return CaptureStats{
		Captures:         captures,
		Failures:         s.failures.Load(),
		AvgCapture:       avg,
		AvgCaptureMicros: avgMicros,
		LastCapture:      last,
		Sequence:         s.sequence.Load(),
	}
}

func (s *Instrumented) maybeLogStats(now time.Time) {
	if s.logger == nil {
		return
	}
	prev := s.lastLog.Load()
	if prev != 0 && now.Sub(time.Unix(0, prev)) < captureStatsLogInterval {
		return
	}
	if !s.lastLog.CompareAndSwap(prev, now.UnixNano()) {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"failures", stats.Failures,
		"avg_capture", stats.AvgCapture,
		"sequence", stats.Sequence,
	)
}
