package capture

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// WebcamOptions selects the video device and an optional capture size.
type WebcamOptions struct {
	Device int
	Width  int
	Height int
}

type webcam struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
	closed bool
}

// OpenWebcam opens the given video device through OpenCV.
func OpenWebcam(opts WebcamOptions) (Source, error) {
	vc, err := gocv.OpenVideoCapture(opts.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrDeviceUnavailable, opts.Device, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrDeviceUnavailable, opts.Device)
	}
	if opts.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	}
	if opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	return &webcam{vc: vc, mat: gocv.NewMat()}, nil
}

func (w *webcam) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Frame{}, ErrClosed
	}
	if ok := w.vc.Read(&w.mat); !ok || w.mat.Empty() {
		return Frame{}, ErrReadFailed
	}
	img, err := w.mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	w.seq++
	return Frame{Image: toRGBA(img), CapturedAt: time.Now(), Sequence: w.seq}, nil
}

func (w *webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.mat.Close()
	return w.vc.Close()
}

// toRGBA returns img as *image.RGBA anchored at the origin, copying only when needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
