package model

import (
	"fmt"
	"time"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

const (
	// IdleBanner is shown when no alert is active.
	IdleBanner = "Keeping you on track..."
	// BannerHold is how long an alert message stays visible.
	BannerHold = 5 * time.Second

	logEntries = 5
)

// AlertModel keeps per-kind counters, the banner state and a short log of
// recent distractions. Only the Tk goroutine touches it.
type AlertModel struct {
	phone, dozing int
	banner        string
	bannerAt      time.Time
	recent        []string // newest last
}

// NewAlertModel returns an empty model.
func NewAlertModel() *AlertModel { return &AlertModel{} }

// Record counts alert and makes its message the banner as of now.
func (m *AlertModel) Record(alert distraction.AlertEvent, now time.Time) {
	if m == nil {
		return
	}
	switch alert.Kind {
	case distraction.PhoneUse:
		m.phone++
	case distraction.Dozing:
		m.dozing++
	}
	m.banner = alert.Message
	m.bannerAt = now
	entry := fmt.Sprintf("%s - %s", alert.At.Format("15:04:05"), alert.Kind.String())
	m.recent = append(m.recent, entry)
	if len(m.recent) > logEntries {
		m.recent = m.recent[len(m.recent)-logEntries:]
	}
}

// Banner returns the text to display at now.
func (m *AlertModel) Banner(now time.Time) (text string, alerting bool) {
	if m == nil || m.banner == "" || now.Sub(m.bannerAt) >= BannerHold {
		return IdleBanner, false
	}
	return m.banner, true
}

// Counts returns alerts seen per kind.
func (m *AlertModel) Counts() (phone, dozing int) {
	if m == nil {
		return 0, 0
	}
	return m.phone, m.dozing
}

// Log renders the recent entries, newest first.
func (m *AlertModel) Log() string {
	if m == nil || len(m.recent) == 0 {
		return "Distraction Log:\nNo distractions yet."
	}
	s := "Distraction Log:"
	for i := len(m.recent) - 1; i >= 0; i-- {
		s += "\n" + m.recent[i]
	}
	return s
}

// Reset clears everything.
func (m *AlertModel) Reset() {
	if m == nil {
		return
	}
	*m = AlertModel{}
}
