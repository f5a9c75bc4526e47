package model

import (
	"time"
)

// SessionModel tracks the current study session, the accumulated monitored
// time and how long the student has stayed focused since the last alert.
// Presenters poll Values() and Streak(); the zero value is ready to use.
type SessionModel struct {
	active          bool
	sessionStart    time.Time
	sessionDuration time.Duration
	accumulated     time.Duration

	focusSince time.Time
	bestStreak time.Duration
}

// NewSessionModel returns a pointer to a ready-to-use SessionModel.
func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnTick advances the model with the monitoring state at now.
func (m *SessionModel) OnTick(monitoring bool, now time.Time) {
	if m == nil {
		return
	}
	if monitoring {
		if !m.active { // off -> on
			m.active = true
			m.sessionStart = now
			m.sessionDuration = 0
			m.focusSince = now
		}
		m.sessionDuration = now.Sub(m.sessionStart)
		m.updateBest(now)
	} else if m.active { // on -> off
		m.sessionDuration = now.Sub(m.sessionStart)
		m.accumulated += m.sessionDuration
		m.updateBest(now)
		m.active = false
	}
}

// OnDistraction restarts the focus streak.
func (m *SessionModel) OnDistraction(at time.Time) {
	if m == nil || !m.active {
		return
	}
	m.updateBest(at)
	m.focusSince = at
}

func (m *SessionModel) updateBest(now time.Time) {
	if s := now.Sub(m.focusSince); s > m.bestStreak {
		m.bestStreak = s
	}
}

// Values returns the current session duration and the total accumulated duration.
// The total includes the ongoing session when active.
func (m *SessionModel) Values() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	session = m.sessionDuration
	total = m.accumulated
	if m.active {
		total += session
	}
	return
}

// Streak returns the current focus streak (zero when idle) and the best one so far.
func (m *SessionModel) Streak(now time.Time) (current, best time.Duration) {
	if m == nil {
		return 0, 0
	}
	if m.active {
		current = now.Sub(m.focusSince)
	}
	best = m.bestStreak
	if current > best {
		best = current
	}
	return
}
