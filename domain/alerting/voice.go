package alerting

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

const (
	voiceQueue   = 4
	voiceTimeout = 15 * time.Second
)

// ErrNoVoice reports that no speech program is installed.
var ErrNoVoice = errors.New("alerting: no speech program found")

// Speaker reads alert messages aloud. Speak must not block.
type Speaker interface {
	Speak(text string)
}

// SpeakAlerts returns an alert callback that reads each alert's message aloud.
func SpeakAlerts(sp Speaker) func(distraction.AlertEvent) {
	return func(a distraction.AlertEvent) {
		if sp == nil {
			return
		}
		msg := a.Message
		if msg == "" {
			msg = a.Kind.Message()
		}
		sp.Speak(msg)
	}
}

// VoiceCommand is a text-to-speech program. The text is appended as the last
// argument, or written to stdin when Stdin is set.
type VoiceCommand struct {
	Name  string
	Args  []string
	Stdin bool
}

func (c VoiceCommand) command(ctx context.Context, text string) *exec.Cmd {
	if c.Stdin {
		cmd := exec.CommandContext(ctx, c.Name, c.Args...)
		cmd.Stdin = strings.NewReader(text)
		return cmd
	}
	args := append(append([]string(nil), c.Args...), text)
	return exec.CommandContext(ctx, c.Name, args...)
}

// ParseVoiceCommand splits a configured command line such as "espeak -s 150".
func ParseVoiceCommand(line string) (VoiceCommand, bool) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return VoiceCommand{}, false
	}
	return VoiceCommand{Name: f[0], Args: f[1:]}, true
}

func platformVoices() []VoiceCommand {
	switch runtime.GOOS {
	case "darwin":
		return []VoiceCommand{{Name: "say"}}
	case "windows":
		return []VoiceCommand{{
			Name:  "powershell",
			Args:  []string{"-NoProfile", "-Command", "Add-Type -AssemblyName System.Speech; (New-Object System.Speech.Synthesis.SpeechSynthesizer).Speak([Console]::In.ReadToEnd())"},
			Stdin: true,
		}}
	default:
		return []VoiceCommand{{Name: "espeak-ng"}, {Name: "espeak"}, {Name: "spd-say", Args: []string{"--wait"}}}
	}
}

// DefaultVoiceCommand returns the first installed speech program for this platform.
func DefaultVoiceCommand() (VoiceCommand, error) {
	for _, c := range platformVoices() {
		if _, err := exec.LookPath(c.Name); err == nil {
			return c, nil
		}
	}
	return VoiceCommand{}, ErrNoVoice
}

// Voice speaks queued messages one at a time on its own goroutine. When the
// queue is full new messages are dropped.
type Voice struct {
	run    func(ctx context.Context, text string) error
	logger *slog.Logger

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	spoken  atomic.Uint64
	dropped atomic.Uint64
}

var _ Speaker = (*Voice)(nil)

// NewVoice starts a speaker that runs cmd for every message.
func NewVoice(cmd VoiceCommand, logger *slog.Logger) *Voice {
	return newVoice(func(ctx context.Context, text string) error {
		return cmd.command(ctx, text).Run()
	}, logger)
}

func newVoice(run func(ctx context.Context, text string) error, logger *slog.Logger) *Voice {
	ctx, cancel := context.WithCancel(context.Background())
	v := &Voice{run: run, logger: logger, queue: make(chan string, voiceQueue), ctx: ctx, cancel: cancel}
	v.wg.Add(1)
	go v.loop()
	return v
}

// Speak queues text.
func (v *Voice) Speak(text string) {
	if v == nil || text == "" || v.ctx.Err() != nil {
		return
	}
	select {
	case v.queue <- text:
	default:
		v.dropped.Add(1)
		if v.logger != nil {
			v.logger.Debug("voice alert dropped", "text", text)
		}
	}
}

// Stats returns spoken and dropped message counts.
func (v *Voice) Stats() (spoken, dropped uint64) { return v.spoken.Load(), v.dropped.Load() }

// Close interrupts the current message and stops the speaker.
func (v *Voice) Close() error {
	v.once.Do(func() {
		v.cancel()
		v.wg.Wait()
	})
	return nil
}

func (v *Voice) loop() {
	defer v.wg.Done()
	for {
		select {
		case <-v.ctx.Done():
			return
		case text := <-v.queue:
			ctx, cancel := context.WithTimeout(v.ctx, voiceTimeout)
			err := v.run(ctx, text)
			cancel()
			if err != nil {
				if v.logger != nil && v.ctx.Err() == nil {
					v.logger.Warn("voice alert failed", "error", err)
				}
				continue
			}
			v.spoken.Add(1)
		}
	}
}
