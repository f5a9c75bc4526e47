package alerting

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

type recordingVoice struct {
	mu    sync.Mutex
	said  []string
	block chan struct{}
}

func (r *recordingVoice) run(ctx context.Context, text string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.said = append(r.said, text)
	r.mu.Unlock()
	return nil
}

func (r *recordingVoice) spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.said...)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestVoice_SpeaksInOrder(t *testing.T) {
	rec := &recordingVoice{}
	v := newVoice(rec.run, discardLogger)
	defer v.Close()

	v.Speak("Put your phone away and focus!")
	v.Speak("")
	v.Speak("Wake up! You are dozing off!")
	eventually(t, func() bool { return len(rec.spoken()) == 2 })
	got := rec.spoken()
	if got[0] != "Put your phone away and focus!" || got[1] != "Wake up! You are dozing off!" {
		t.Fatalf("spoken %q", got)
	}
	if spoken, dropped := v.Stats(); spoken != 2 || dropped != 0 {
		t.Fatalf("stats spoken=%d dropped=%d", spoken, dropped)
	}
}

func TestVoice_DropsWhenBusyAndCloseInterrupts(t *testing.T) {
	rec := &recordingVoice{block: make(chan struct{})}
	v := newVoice(rec.run, discardLogger)

	v.Speak("first")
	// Wait until the loop has taken "first" so the queue is empty.
	eventually(t, func() bool { return len(v.queue) == 0 })
	for i := 0; i < voiceQueue+3; i++ {
		v.Speak("again")
	}
	if _, dropped := v.Stats(); dropped != 3 {
		t.Fatalf("dropped=%d", dropped)
	}

	done := make(chan struct{})
	go func() {
		_ = v.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("close blocked on a running message")
	}
	v.Speak("after close")
	if len(rec.spoken()) != 0 {
		t.Fatalf("spoke while blocked: %q", rec.spoken())
	}
}

func TestVoiceCommand_PassesText(t *testing.T) {
	arg := VoiceCommand{Name: "espeak", Args: []string{"-s", "150"}}
	cmd := arg.command(context.Background(), "hello")
	if got := cmd.Args; len(got) != 4 || got[1] != "-s" || got[3] != "hello" {
		t.Fatalf("args %q", got)
	}
	if len(arg.Args) != 2 {
		t.Fatalf("command mutated Args: %q", arg.Args)
	}

	stdin := VoiceCommand{Name: "powershell", Args: []string{"-Command", "x"}, Stdin: true}
	cmd = stdin.command(context.Background(), "hello")
	if len(cmd.Args) != 3 || cmd.Stdin == nil {
		t.Fatalf("stdin command %q", cmd.Args)
	}
	if b, _ := io.ReadAll(cmd.Stdin); string(b) != "hello" {
		t.Fatalf("stdin %q", b)
	}

	if c, ok := ParseVoiceCommand("  say -v Alex "); !ok || c.Name != "say" || len(c.Args) != 2 {
		t.Fatalf("parse %+v %v", c, ok)
	}
	if _, ok := ParseVoiceCommand("   "); ok {
		t.Fatalf("blank command parsed")
	}
}

type speakerFunc func(string)

func (f speakerFunc) Speak(text string) { f(text) }

func TestSpeakAlerts_UsesAlertMessage(t *testing.T) {
	var said []string
	fn := SpeakAlerts(speakerFunc(func(s string) { said = append(said, s) }))
	fn(distraction.AlertEvent{Kind: distraction.PhoneUse})
	fn(distraction.AlertEvent{Kind: distraction.Dozing})
	if len(said) != 2 || said[0] != distraction.PhoneUse.Message() || said[1] != distraction.Dozing.Message() {
		t.Fatalf("said %q", said)
	}
	SpeakAlerts(nil)(distraction.AlertEvent{Kind: distraction.PhoneUse})
}
