//go:build unix

package debug

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// StartMemLogger logs memory stats every interval until ctx ends. RSS is the
// peak resident size reported by getrusage.
func StartMemLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var ru unix.Rusage
			rss := uint64(0)
			if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err == nil {
				rss = maxRSSBytes(int64(ru.Maxrss))
			} else if !rssErrLogged {
				logger.Warn("memlog: getrusage failed", slog.String("err", err.Error()))
				rssErrLogged = true
			}
			logMemStats(logger, rss)
		}
	}()
}

// maxRSSBytes normalizes ru_maxrss, which is bytes on darwin and KiB elsewhere.
func maxRSSBytes(v int64) uint64 {
	if v < 0 {
		return 0
	}
	if runtime.GOOS == "darwin" {
		return uint64(v)
	}
	return uint64(v) * 1024
}
