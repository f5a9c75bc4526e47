package alerting

import (
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

const (
	// LogFileName is the append-only distraction log inside the log directory.
	LogFileName = "distraction_log.txt"
	// TimestampLayout formats alert times in file names, log lines and messages.
	TimestampLayout = "2006-01-02_15-04-05"

	jpegQuality = 90
)

// RecorderOptions configures a Recorder. Resolver and Notifier are optional;
// without them alerts are only written to disk.
type RecorderOptions struct {
	Dir      string
	Resolver RecipientResolver
	Notifier Notifier
	Timeout  time.Duration // per notification
	Logger   *slog.Logger
}

// Recorder is the EventSink that persists alert evidence and tells the guardian.
type Recorder struct {
	dir      string
	resolver RecipientResolver
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger

	mu sync.Mutex // serializes appends to the log file
}

var _ distraction.EventSink = (*Recorder)(nil)

// NewRecorder creates the log directory if needed.
func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("alerting: create log dir: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Recorder{
		dir:      opts.Dir,
		resolver: opts.Resolver,
		notifier: opts.Notifier,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}, nil
}

// LogPath returns the distraction log location.
func (r *Recorder) LogPath() string { return filepath.Join(r.dir, LogFileName) }

// ImagePath returns where the evidence image for alert is written.
func (r *Recorder) ImagePath(alert distraction.AlertEvent) string {
	id := alert.ID.String()
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s_%s_%s.jpg", alert.Kind.String(), alert.At.Format(TimestampLayout), id)
	return filepath.Join(r.dir, name)
}

// LogLine renders the log entry for alert.
func LogLine(alert distraction.AlertEvent, imagePath string) string {
	return fmt.Sprintf("%s - %s detected - Image: %s", alert.At.Format(TimestampLayout), alert.Kind.String(), imagePath)
}

// MessageBody renders the guardian notification text.
func MessageBody(name string, alert distraction.AlertEvent) string {
	return fmt.Sprintf("Study Buddy Alert: %s was caught %s at %s.", name, alert.Kind.String(), alert.At.Format(TimestampLayout))
}

// Record writes the image, appends the log line and notifies the recipient.
// Failures are logged and never reach the caller.
func (r *Recorder) Record(alert distraction.AlertEvent, recipientKey string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logError("alert record panic", "error", rec, "stack", string(debug.Stack()))
		}
	}()

	path := r.ImagePath(alert)
	if err := r.writeImage(alert, path); err != nil {
		r.logError("alert image write failed", "path", path, "error", err)
	}
	if err := r.appendLog(LogLine(alert, path)); err != nil {
		r.logError("alert log append failed", "error", err)
	}
	if r.logger != nil {
		r.logger.Info("alert recorded", "kind", alert.Kind.String(), "id", alert.ID.String(), "image", path)
	}
	if err := r.notify(alert, recipientKey); err != nil {
		r.logError("guardian notification failed", "recipient", recipientKey, "error", err)
	}
}

func (r *Recorder) writeImage(alert distraction.AlertEvent, path string) error {
	if alert.Frame.Empty() {
		return fmt.Errorf("no frame")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, alert.Frame.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *Recorder) appendLog(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *Recorder) notify(alert distraction.AlertEvent, key string) error {
	if r.notifier == nil || r.resolver == nil || key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	rcpt, err := r.resolver.Recipient(ctx, key)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", key, err)
	}
	return r.notifier.Notify(ctx, Notification{
		To:   rcpt.Contact,
		Name: rcpt.Name,
		Body: MessageBody(rcpt.Name, alert),
		Kind: alert.Kind,
		At:   alert.At,
	})
}

func (r *Recorder) logError(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}
