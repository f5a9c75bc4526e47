package presenter

import (
	"time"

	"github.com/soocke/study-buddy-go/ui/model"
)

// MonitoringModel reports whether monitoring is enabled.
type MonitoringModel interface{ Enabled() bool }

// SessionView displays formatted session, total and focus streak durations.
type SessionView interface {
	SetSession(session, total time.Duration)
	SetStreak(current, best time.Duration)
}

// SessionPresenter pushes session and streak durations from the model to the view.
type SessionPresenter struct {
	sess *model.SessionModel
	ctl  MonitoringModel
	view SessionView
}

// NewSessionPresenter returns a new SessionPresenter.
func NewSessionPresenter(sess *model.SessionModel, ctl MonitoringModel, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, ctl: ctl, view: view}
}

// Tick advances the session model and pushes values to the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.ctl == nil || p.view == nil {
		return
	}
	p.sess.OnTick(p.ctl.Enabled(), now)
	s, t := p.sess.Values()
	p.view.SetSession(s, t)
	p.view.SetStreak(p.sess.Streak(now))
}
