package capture

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrDeviceUnavailable reports that the camera could not be opened or
	// delivered no first frame.
	ErrDeviceUnavailable = errors.New("capture: device unavailable")
	// ErrReadFailed reports a failed frame read, treated as end of stream.
	ErrReadFailed = errors.New("capture: frame read failed")
	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("capture: source closed")
)

// Frame is a single captured image. It must not be mutated after creation.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool { return f.Image == nil || f.Image.Rect.Empty() }

// Source yields frames from an opened device. Read blocks until a frame is
// available. Close releases the device and is safe to call more than once.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Opener opens a Source. The monitor loop calls it once per run.
type Opener func() (Source, error)

// CaptureStats summarises capture behaviour for instrumentation.
type CaptureStats struct {
	Captures         uint64
	Failures         uint64
	AvgCapture       time.Duration
	AvgCaptureMicros float64
	LastCapture      time.Time
	Sequence         uint64
}
