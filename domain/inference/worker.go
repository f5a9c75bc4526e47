package inference

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const stopTimeout = 2 * time.Second

// WorkerConfig describes how to launch the inference subprocess.
type WorkerConfig struct {
	Command string   // interpreter, e.g. python3
	Args    []string // replaces the default script invocation when set
	Script  []byte   // script written to a temp file when Args is empty
	Model   string   // object detection weights passed as --model
}

// Worker is a running inference subprocess. It embeds the protocol client.
type Worker struct {
	*Client

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	scriptPath string
	logger     *slog.Logger
	exited     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// StartWorker spawns the subprocess and starts the protocol client.
func StartWorker(ctx context.Context, cfg WorkerConfig, logger *slog.Logger) (*Worker, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("inference: worker command is required")
	}
	w := &Worker{logger: logger, exited: make(chan struct{})}
	args := cfg.Args
	if len(args) == 0 {
		if len(cfg.Script) == 0 {
			return nil, fmt.Errorf("inference: no worker script or args")
		}
		f, err := os.CreateTemp("", "study-buddy-worker-*.py")
		if err != nil {
			return nil, fmt.Errorf("inference: write worker script: %w", err)
		}
		if _, err := f.Write(cfg.Script); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("inference: write worker script: %w", err)
		}
		f.Close()
		w.scriptPath = f.Name()
		args = []string{"-u", w.scriptPath}
		if cfg.Model != "" {
			args = append(args, "--model", cfg.Model)
		}
	}

	w.cmd = exec.CommandContext(ctx, cfg.Command, args...)
	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		w.cleanup()
		return nil, fmt.Errorf("inference: stdin pipe: %w", err)
	}
	stdout, err := w.cmd.StdoutPipe()
	if err != nil {
		w.cleanup()
		return nil, fmt.Errorf("inference: stdout pipe: %w", err)
	}
	stderr, err := w.cmd.StderrPipe()
	if err != nil {
		w.cleanup()
		return nil, fmt.Errorf("inference: stderr pipe: %w", err)
	}
	if err := w.cmd.Start(); err != nil {
		w.cleanup()
		return nil, fmt.Errorf("inference: start worker: %w", err)
	}
	w.stdin = stdin
	w.Client = NewClient(stdout, stdin, logger)
	if logger != nil {
		logger.Info("inference worker spawned", "command", cfg.Command, "pid", w.cmd.Process.Pid)
	}

	w.wg.Add(1)
	go w.logStderr(stderr)
	go w.waitProcess(ctx)
	return w, nil
}

// Close stops the subprocess, killing it if it does not exit in time.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		if w.stdin != nil {
			_ = w.stdin.Close()
		}
		select {
		case <-w.exited:
		case <-time.After(stopTimeout):
			if w.logger != nil {
				w.logger.Warn("inference worker stop timeout, killing")
			}
			if w.cmd.Process != nil {
				_ = w.cmd.Process.Kill()
			}
			<-w.exited
		}
		w.wg.Wait()
		w.cleanup()
	})
	return nil
}

func (w *Worker) cleanup() {
	if w.scriptPath != "" {
		_ = os.Remove(w.scriptPath)
	}
}

// waitProcess reaps the subprocess once both output pipes are drained;
// cmd.Wait closes them.
func (w *Worker) waitProcess(ctx context.Context) {
	w.wg.Wait()
	<-w.Client.Done()
	err := w.cmd.Wait()
	close(w.exited)
	if w.logger == nil {
		return
	}
	switch {
	case err == nil:
		w.logger.Debug("inference worker exited")
	case ctx.Err() != nil:
		w.logger.Debug("inference worker stopped", "error", err)
	default:
		w.logger.Error("inference worker crashed", "error", err)
	}
}

func (w *Worker) logStderr(r io.Reader) {
	defer w.wg.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if w.logger != nil && line != "" {
			w.logger.Log(context.Background(), stderrLevel(line), "inference worker", "line", line)
		}
	}
}

// stderrLevel maps the worker's log prefixes onto slog levels.
func stderrLevel(line string) slog.Level {
	switch {
	case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"), strings.HasPrefix(line, "Traceback"):
		return slog.LevelError
	case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
		return slog.LevelWarn
	case strings.Contains(line, "[INFO]"):
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
