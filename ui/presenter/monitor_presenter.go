package presenter

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/study-buddy-go/domain/capture"
	"github.com/soocke/study-buddy-go/domain/distraction"
	"github.com/soocke/study-buddy-go/domain/monitor"
	"github.com/soocke/study-buddy-go/ui/images"
	"github.com/soocke/study-buddy-go/ui/model"
)

const (
	maxPendingAlerts = 32
	snapshotSide     = 160
)

// MonitorView is the UI surface fed by loop events.
type MonitorView interface {
	UpdatePreview(img image.Image)
	UpdateSnapshot(img image.Image)
	SetBanner(text string, alerting bool)
	SetLog(text string)
	SetCounts(phone, dozing int)
}

// MonitorPresenter subscribes to the loop hub. Hub callbacks run on delivery
// goroutines and only store data; Tick pushes it to Tk on the UI thread.
type MonitorPresenter struct {
	view    MonitorView
	alerts  *model.AlertModel
	session *model.SessionModel

	latest atomic.Pointer[capture.Frame]
	shown  *capture.Frame

	mu      sync.Mutex
	pending []distraction.AlertEvent
}

var _ monitor.Handler = (*MonitorPresenter)(nil)

func NewMonitorPresenter(view MonitorView, alerts *model.AlertModel, session *model.SessionModel) *MonitorPresenter {
	return &MonitorPresenter{view: view, alerts: alerts, session: session}
}

// OnFrame keeps only the newest frame.
func (p *MonitorPresenter) OnFrame(f capture.Frame) {
	if p == nil || f.Empty() {
		return
	}
	p.latest.Store(&f)
}

// OnAlert queues alert for the next Tick, dropping the oldest when full.
func (p *MonitorPresenter) OnAlert(a distraction.AlertEvent) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if len(p.pending) >= maxPendingAlerts {
		p.pending = p.pending[1:]
	}
	p.pending = append(p.pending, a)
	p.mu.Unlock()
}

// Tick flushes queued alerts and the newest frame to the view.
func (p *MonitorPresenter) Tick(now time.Time) {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, a := range batch {
		p.alerts.Record(a, now)
		p.session.OnDistraction(a.At)
	}
	if n := len(batch); n > 0 {
		last := batch[n-1]
		if !last.Frame.Empty() {
			p.view.UpdateSnapshot(images.Thumbnail(last.Frame.Image, snapshotSide))
		}
		p.view.SetLog(p.alerts.Log())
		p.view.SetCounts(p.alerts.Counts())
	}
	p.view.SetBanner(p.alerts.Banner(now))

	if f := p.latest.Load(); f != nil && f != p.shown {
		p.shown = f
		p.view.UpdatePreview(f.Image)
	}
}

// Reset drops any undelivered frame so a stale image is not shown after a stop.
func (p *MonitorPresenter) Reset() {
	if p == nil {
		return
	}
	p.latest.Store(nil)
	p.shown = nil
}
