package app

import (
	"context"
	"time"

	"github.com/soocke/study-buddy-go/domain/distraction"
	"github.com/soocke/study-buddy-go/domain/monitor"
)

const statsInterval = time.Minute

// RunHeadless monitors without a window until ctx ends or the loop stops on
// its own. It returns the loop error, nil for a clean end.
func RunHeadless(ctx context.Context, s *Services) error {
	unsubscribe := s.Hub.Subscribe(monitor.HandlerFuncs{
		Alert: func(a distraction.AlertEvent) {
			s.Logger.Info("distraction", "kind", a.Kind.String(), "at", a.At, "frame", a.Frame.Sequence)
		},
	})
	defer unsubscribe()

	if err := s.Loop.Start(ctx); err != nil {
		return err
	}
	t := time.NewTicker(statsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Loop.Stop()
			return s.Loop.Err()
		case <-s.Loop.Done():
			return s.Loop.Err()
		case <-t.C:
			if st, ok := s.CaptureStats(); ok {
				s.Logger.Info("capture stats", "captures", st.Captures, "failures", st.Failures, "avg", st.AvgCapture)
			}
		}
	}
}
