package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/soocke/study-buddy-go/domain/capture"
	"github.com/soocke/study-buddy-go/domain/distraction"
	"github.com/soocke/study-buddy-go/domain/geometry"
)

var (
	// ErrWorkerGone reports that the worker stream ended.
	ErrWorkerGone = errors.New("inference: worker unavailable")
	// ErrInference wraps an error reported by the worker for one request.
	ErrInference = errors.New("inference: worker error")
)

const jpegQuality = 85

// Client speaks the worker protocol over a reader/writer pair. Responses are
// routed to callers by request id, so a timed out call never blocks later ones.
// It implements distraction.ObjectDetector and distraction.FaceLandmarker.
type Client struct {
	w      io.Writer
	writes chan writeReq
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uint64]chan response
	err     error
	done    chan struct{}

	nextID atomic.Uint64
	calls  atomic.Uint64
	fails  atomic.Uint64
}

var (
	_ distraction.ObjectDetector = (*Client)(nil)
	_ distraction.FaceLandmarker = (*Client)(nil)
)

type writeReq struct {
	payload []byte
	done    chan error
}

// NewClient starts reading responses from r and writes requests to w.
// A single goroutine owns w, so at most one request is in flight on the pipe.
func NewClient(r io.Reader, w io.Writer, logger *slog.Logger) *Client {
	c := &Client{
		w:       w,
		writes:  make(chan writeReq),
		logger:  logger,
		pending: make(map[uint64]chan response),
		done:    make(chan struct{}),
	}
	go c.readLoop(r)
	go c.writeLoop()
	return c
}

// Done is closed once the response stream has ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the stream ended, or nil while it is alive.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stats returns total calls and failed calls.
func (c *Client) Stats() (calls, failures uint64) { return c.calls.Load(), c.fails.Load() }

// Detect runs the object detector on frame.
func (c *Client) Detect(ctx context.Context, frame capture.Frame) ([]distraction.Detection, error) {
	resp, err := c.roundTrip(ctx, opDetect, frame)
	if err != nil {
		return nil, err
	}
	out := make([]distraction.Detection, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		out = append(out, distraction.Detection{
			Label:      d.Label,
			Confidence: d.Confidence,
			Box:        image.Rect(int(d.Box[0]), int(d.Box[1]), int(d.Box[2]), int(d.Box[3])),
		})
	}
	return out, nil
}

// Locate runs the face landmarker on frame and returns pixel coordinates.
func (c *Client) Locate(ctx context.Context, frame capture.Frame) ([]distraction.Face, error) {
	resp, err := c.roundTrip(ctx, opLandmarks, frame)
	if err != nil {
		return nil, err
	}
	b := frame.Image.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	faces := make([]distraction.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		pts := make([]geometry.Point, len(f))
		for i, p := range f {
			pts[i] = geometry.Point{X: p[0] * w, Y: p[1] * h}
		}
		faces = append(faces, distraction.Face{Landmarks: pts})
	}
	return faces, nil
}

func (c *Client) roundTrip(ctx context.Context, op string, frame capture.Frame) (response, error) {
	if frame.Empty() {
		return response{}, fmt.Errorf("%w: empty frame", ErrInference)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return response{}, fmt.Errorf("inference: encode frame: %w", err)
	}
	b := frame.Image.Bounds()
	resp, err := c.call(ctx, request{Op: op, JPEG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()})
	c.calls.Add(1)
	if err != nil {
		c.fails.Add(1)
	}
	return resp, err
}

func (c *Client) call(ctx context.Context, req request) (response, error) {
	req.ID = c.nextID.Add(1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return response{}, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return response{}, fmt.Errorf("inference: marshal request: %w", err)
	}
	writeErr := make(chan error, 1)
	select {
	case c.writes <- writeReq{payload: payload, done: writeErr}:
	case <-ctx.Done():
		return response{}, fmt.Errorf("inference %s: %w", req.Op, ctx.Err())
	case <-c.done:
		return response{}, c.Err()
	}

	for {
		select {
		case err := <-writeErr:
			if err != nil {
				c.fail(err)
				return response{}, fmt.Errorf("%w: %v", ErrWorkerGone, err)
			}
			writeErr = nil
		case resp := <-ch:
			if !resp.OK {
				return resp, fmt.Errorf("%w: %s", ErrInference, resp.Error)
			}
			return resp, nil
		case <-ctx.Done():
			if writeErr != nil {
				// A write still pending means the worker stopped reading its input.
				c.fail(fmt.Errorf("write stalled: %w", ctx.Err()))
			}
			return response{}, fmt.Errorf("inference %s: %w", req.Op, ctx.Err())
		case <-c.done:
			return response{}, c.Err()
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case wr := <-c.writes:
			wr.done <- writeFrame(c.w, wr.payload)
		case <-c.done:
			return
		}
	}
}

func (c *Client) readLoop(r io.Reader) {
	for {
		payload, err := readFrame(r)
		if err != nil {
			c.fail(err)
			return
		}
		var resp response
		if err := msgpack.Unmarshal(payload, &resp); err != nil {
			if c.logger != nil {
				c.logger.Error("inference response decode", "error", err, "bytes", len(payload))
			}
			continue
		}
		c.mu.Lock()
		ch := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ch == nil {
			if c.logger != nil {
				c.logger.Debug("inference late response dropped", "id", resp.ID)
			}
			continue
		}
		ch <- resp
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	if errors.Is(err, io.EOF) {
		c.err = ErrWorkerGone
	} else {
		c.err = fmt.Errorf("%w: %v", ErrWorkerGone, err)
	}
	close(c.done)
	if c.logger != nil {
		c.logger.Warn("inference stream closed", "error", err)
	}
}
