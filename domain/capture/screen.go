package capture

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"
)

// ScreenOptions restricts screen capture to Region when it is non-empty.
type ScreenOptions struct {
	Region image.Rectangle
}

type screenSource struct {
	region image.Rectangle
	seq    atomic.Uint64
	closed atomic.Bool
}

// OpenScreen returns a Source that grabs the desktop instead of a camera.
func OpenScreen(opts ScreenOptions) (Source, error) {
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("%w: screen: %v", ErrDeviceUnavailable, err)
	}
	region := screen
	if !opts.Region.Empty() {
		region = opts.Region.Intersect(screen)
		if region.Empty() {
			return nil, fmt.Errorf("%w: region %v outside screen %v", ErrDeviceUnavailable, opts.Region, screen)
		}
	}
	return &screenSource{region: region}, nil
}

func (s *screenSource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.closed.Load() {
		return Frame{}, ErrClosed
	}
	img, err := screenshot.CaptureRect(s.region)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return Frame{Image: toRGBA(img), CapturedAt: time.Now(), Sequence: s.seq.Add(1)}, nil
}

func (s *screenSource) Close() error {
	s.closed.Store(true)
	return nil
}
