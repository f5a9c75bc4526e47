package monitor

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/soocke/study-buddy-go/domain/capture"
	"github.com/soocke/study-buddy-go/domain/distraction"
)

const alertBuffer = 32

// Handler receives loop events on a per-subscriber goroutine.
type Handler interface {
	OnFrame(capture.Frame)
	OnAlert(distraction.AlertEvent)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	Frame func(capture.Frame)
	Alert func(distraction.AlertEvent)
}

func (h HandlerFuncs) OnFrame(f capture.Frame) {
	if h.Frame != nil {
		h.Frame(f)
	}
}

func (h HandlerFuncs) OnAlert(a distraction.AlertEvent) {
	if h.Alert != nil {
		h.Alert(a)
	}
}

// Hub fans loop events out to subscribers. Publishing never blocks: each
// subscriber keeps only the newest frame and a bounded alert queue.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	logger  *slog.Logger
	dropped atomic.Uint64
}

type subscriber struct {
	h      Handler
	frames chan capture.Frame
	alerts chan distraction.AlertEvent
	quit   chan struct{}
	once   sync.Once
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[uint64]*subscriber), logger: logger}
}

// Subscribe registers h and returns a function that removes it.
func (hub *Hub) Subscribe(h Handler) (unsubscribe func()) {
	s := &subscriber{
		h:      h,
		frames: make(chan capture.Frame, 1),
		alerts: make(chan distraction.AlertEvent, alertBuffer),
		quit:   make(chan struct{}),
	}
	hub.mu.Lock()
	hub.nextID++
	id := hub.nextID
	hub.subs[id] = s
	hub.mu.Unlock()

	go hub.deliver(s)

	return func() {
		hub.mu.Lock()
		delete(hub.subs, id)
		hub.mu.Unlock()
		s.once.Do(func() { close(s.quit) })
	}
}

// PublishFrame offers f to every subscriber, replacing any undelivered frame.
func (hub *Hub) PublishFrame(f capture.Frame) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for _, s := range hub.subs {
		offerLatest(s.frames, f, &hub.dropped)
	}
}

// PublishAlert queues a to every subscriber, dropping the oldest when full.
func (hub *Hub) PublishAlert(a distraction.AlertEvent) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for _, s := range hub.subs {
		offerLatest(s.alerts, a, &hub.dropped)
	}
}

// Subscribers returns the number of active subscribers.
func (hub *Hub) Subscribers() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subs)
}

// Dropped returns how many events were discarded for slow subscribers.
func (hub *Hub) Dropped() uint64 { return hub.dropped.Load() }

// Close removes every subscriber.
func (hub *Hub) Close() {
	hub.mu.Lock()
	subs := hub.subs
	hub.subs = make(map[uint64]*subscriber)
	hub.mu.Unlock()
	for _, s := range subs {
		s.once.Do(func() { close(s.quit) })
	}
}

func (hub *Hub) deliver(s *subscriber) {
	for {
		select {
		case <-s.quit:
			return
		case a := <-s.alerts:
			hub.safeCall(func() { s.h.OnAlert(a) })
		case f := <-s.frames:
			hub.safeCall(func() { s.h.OnFrame(f) })
		}
	}
}

func (hub *Hub) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil && hub.logger != nil {
			hub.logger.Error("subscriber panic", "error", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// offerLatest sends v on ch, discarding the oldest queued value when ch is full.
func offerLatest[T any](ch chan T, v T, dropped *atomic.Uint64) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
		dropped.Add(1)
	default:
	}
	select {
	case ch <- v:
	default:
		dropped.Add(1)
	}
}
