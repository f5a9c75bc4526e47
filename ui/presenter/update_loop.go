package presenter

import "time"

// Loop aggregates feature presenters and drives periodic updates.
//
// It calls Tick on the sub-presenters in order and then invokes the
// scheduler callback. The zero value is usable (methods are nil-safe).
type Loop struct {
	Control  *ControlPresenter
	Monitor  *MonitorPresenter
	Session  *SessionPresenter
	Schedule func()
	Now      func() time.Time
}

func NewLoop(ctl *ControlPresenter, mon *MonitorPresenter, sess *SessionPresenter, schedule func()) *Loop {
	return &Loop{Control: ctl, Monitor: mon, Session: sess, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	// Alerts first so a distraction in this tick resets the streak before it is shown.
	if l.Monitor != nil {
		l.Monitor.Tick(now)
	}
	if l.Control != nil {
		l.Control.Tick()
	}
	if l.Session != nil {
		l.Session.Tick(now)
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
