package inference

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/soocke/study-buddy-go/domain/capture"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeWorker answers requests read from its side of the pipes using handle.
// Returning ok=false from handle skips the reply.
type fakeWorker struct {
	reqR   *io.PipeReader
	respW  *io.PipeWriter
	handle func(req request) (response, bool)
	seen   chan request
}

func newFakePair(t *testing.T, handle func(req request) (response, bool)) (*Client, *fakeWorker) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	fw := &fakeWorker{reqR: reqR, respW: respW, handle: handle, seen: make(chan request, 16)}
	go fw.serve()
	c := NewClient(respR, reqW, discardLogger)
	t.Cleanup(func() {
		reqW.Close()
		respW.Close()
	})
	return c, fw
}

func (f *fakeWorker) serve() {
	for {
		payload, err := readFrame(f.reqR)
		if err != nil {
			return
		}
		var req request
		if err := msgpack.Unmarshal(payload, &req); err != nil {
			return
		}
		resp, ok := f.handle(req)
		f.seen <- req
		if !ok {
			continue
		}
		resp.ID = req.ID
		f.reply(resp)
	}
}

func (f *fakeWorker) reply(resp response) {
	out, _ := msgpack.Marshal(&resp)
	_ = writeFrame(f.respW, out)
}

func testFrame(w, h int) capture.Frame {
	return capture.Frame{Image: image.NewRGBA(image.Rect(0, 0, w, h)), CapturedAt: time.Now(), Sequence: 1}
}

func TestClient_DetectMapsDetections(t *testing.T) {
	c, fw := newFakePair(t, func(req request) (response, bool) {
		return response{OK: true, Detections: []wireDetection{
			{Label: "cell phone", Confidence: 0.42, Box: [4]float64{10.6, 20, 30, 40.9}},
			{Label: "person", Confidence: 0.9, Box: [4]float64{0, 0, 64, 48}},
		}}, true
	})
	dets, err := c.Detect(context.Background(), testFrame(64, 48))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(dets) != 2 || dets[0].Label != "cell phone" || dets[0].Confidence != 0.42 {
		t.Fatalf("unexpected detections %+v", dets)
	}
	if dets[0].Box != image.Rect(10, 20, 30, 40) {
		t.Fatalf("box = %v", dets[0].Box)
	}
	req := <-fw.seen
	if req.Op != opDetect || req.Width != 64 || req.Height != 48 || len(req.JPEG) == 0 {
		t.Fatalf("unexpected request op=%q w=%d h=%d jpeg=%d", req.Op, req.Width, req.Height, len(req.JPEG))
	}
}

func TestClient_LocateScalesLandmarks(t *testing.T) {
	c, _ := newFakePair(t, func(req request) (response, bool) {
		return response{OK: true, Faces: [][][2]float64{{{0.5, 0.25}, {1, 1}}}}, true
	})
	faces, err := c.Locate(context.Background(), testFrame(200, 100))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(faces) != 1 || len(faces[0].Landmarks) != 2 {
		t.Fatalf("unexpected faces %+v", faces)
	}
	p := faces[0].Landmarks[0]
	if p.X != 100 || p.Y != 25 {
		t.Fatalf("landmark = %+v, want (100,25)", p)
	}
}

func TestClient_WorkerErrorIsWrapped(t *testing.T) {
	c, _ := newFakePair(t, func(req request) (response, bool) {
		return response{OK: false, Error: "model not loaded"}, true
	})
	_, err := c.Detect(context.Background(), testFrame(8, 8))
	if !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
	if calls, fails := c.Stats(); calls != 1 || fails != 1 {
		t.Fatalf("stats calls=%d fails=%d", calls, fails)
	}
}

func TestClient_TimeoutThenLateResponseDropped(t *testing.T) {
	var late *request
	c, fw := newFakePair(t, func(req request) (response, bool) {
		if req.ID == 1 {
			r := req
			late = &r
			return response{}, false
		}
		return response{OK: true}, true
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := c.Detect(ctx, testFrame(8, 8)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	<-fw.seen
	if late == nil {
		t.Fatalf("first request not observed")
	}
	// Answer the timed out request now; the client must discard it.
	fw.reply(response{ID: late.ID, OK: true, Detections: []wireDetection{{Label: "stale"}}})
	dets, err := c.Detect(context.Background(), testFrame(8, 8))
	if err != nil {
		t.Fatalf("second detect: %v", err)
	}
	if len(dets) != 0 {
		t.Fatalf("late response leaked into next call: %+v", dets)
	}
}

func TestClient_StreamEndFailsPendingAndFutureCalls(t *testing.T) {
	c, fw := newFakePair(t, func(req request) (response, bool) { return response{}, false })
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Detect(context.Background(), testFrame(8, 8))
		errCh <- err
	}()
	<-fw.seen
	fw.respW.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrWorkerGone) {
			t.Fatalf("expected ErrWorkerGone, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("pending call not released")
	}
	<-c.Done()
	if _, err := c.Locate(context.Background(), testFrame(8, 8)); !errors.Is(err, ErrWorkerGone) {
		t.Fatalf("expected ErrWorkerGone after close, got %v", err)
	}
}

func TestClient_StalledWriteFailsClient(t *testing.T) {
	respR, respW := io.Pipe()
	reqR, reqW := io.Pipe() // nobody reads requests
	c := NewClient(respR, reqW, discardLogger)
	t.Cleanup(func() {
		reqR.Close()
		respW.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Detect(ctx, testFrame(8, 8)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("client not failed after stalled write")
	}
	start := time.Now()
	if _, err := c.Detect(context.Background(), testFrame(8, 8)); !errors.Is(err, ErrWorkerGone) {
		t.Fatalf("expected ErrWorkerGone, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("call after stall blocked")
	}
	if calls, fails := c.Stats(); calls != 2 || fails != 2 {
		t.Fatalf("stats calls=%d fails=%d", calls, fails)
	}
}

func TestClient_EmptyFrameRejected(t *testing.T) {
	c, _ := newFakePair(t, func(req request) (response, bool) { return response{OK: true}, true })
	if _, err := c.Detect(context.Background(), capture.Frame{}); !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference for empty frame, got %v", err)
	}
}

func TestReadFrame_RejectsOversizedMessage(t *testing.T) {
	r, w := io.Pipe()
	go func() {
		_, _ = w.Write([]byte{0xff, 0xff, 0xff, 0xff})
		w.Close()
	}()
	if _, err := readFrame(r); err == nil {
		t.Fatalf("expected error for oversized prefix")
	}
}

func TestStderrLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"2024 [ERROR] boom":      slog.LevelError,
		"Traceback (most recent": slog.LevelError,
		"[WARNING] slow":         slog.LevelWarn,
		"[INFO] loaded model":    slog.LevelInfo,
		"plain output":           slog.LevelDebug,
	}
	for line, want := range cases {
		if got := stderrLevel(line); got != want {
			t.Fatalf("%q: level %v, want %v", line, got, want)
		}
	}
}
