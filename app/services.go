package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/soocke/study-buddy-go/assets"
	"github.com/soocke/study-buddy-go/config"
	"github.com/soocke/study-buddy-go/domain/account"
	"github.com/soocke/study-buddy-go/domain/alerting"
	"github.com/soocke/study-buddy-go/domain/capture"
	"github.com/soocke/study-buddy-go/domain/inference"
	"github.com/soocke/study-buddy-go/domain/monitor"
)

const flushTimeout = 15 * time.Second

// Services holds the long-lived, UI independent parts of a monitoring session.
type Services struct {
	Config   *config.Config
	Logger   *slog.Logger
	Student  string
	Accounts *account.Store
	Worker   *inference.Worker
	Notifier alerting.Notifier
	Voice    *alerting.Voice
	Recorder *alerting.Recorder
	Hub      *monitor.Hub
	Loop     *monitor.Loop

	source  atomic.Pointer[capture.Instrumented]
	closers []func() error
}

// BuildServices starts the inference worker, opens the account store, connects
// the configured notifier and assembles the detection loop for student.
// On error everything started so far is closed again.
func BuildServices(ctx context.Context, cfg *config.Config, logger *slog.Logger, student string) (svc *Services, err error) {
	s := &Services{Config: cfg, Logger: logger, Student: student}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.Accounts, err = account.Open(ctx, cfg.AccountsDB, account.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Accounts.Close)
	if _, err = s.Accounts.Lookup(ctx, student); err != nil {
		return nil, fmt.Errorf("student %q: %w", student, err)
	}

	s.Notifier, err = s.buildNotifier(ctx)
	if err != nil {
		return nil, err
	}
	s.Recorder, err = alerting.NewRecorder(alerting.RecorderOptions{
		Dir:      cfg.LogDir,
		Resolver: s.Accounts,
		Notifier: s.Notifier,
		Timeout:  cfg.NotifyTimeout(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	s.Worker, err = inference.StartWorker(ctx, inference.WorkerConfig{
		Command: cfg.WorkerCommand,
		Args:    cfg.WorkerArgs,
		Script:  assets.DetectorWorkerPy,
		Model:   cfg.ObjectModel,
	}, logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Worker.Close)

	s.Hub = monitor.NewHub(logger)
	if cfg.VoiceAlerts {
		s.startVoice()
	}
	s.Loop = monitor.NewLoop(monitor.LoopDeps{
		Open:    capture.InstrumentOpener(OpenerFor(cfg), logger, s.source.Store),
		Objects: s.Worker,
		Faces:   s.Worker,
		Sink:    s.Recorder,
		Hub:     s.Hub,
		Logger:  logger,
	}, monitor.OptionsFromConfig(cfg, student))
	return s, nil
}

func (s *Services) buildNotifier(ctx context.Context) (alerting.Notifier, error) {
	cfg := s.Config
	notifiers := alerting.Multi{alerting.LogNotifier{Logger: s.Logger}}
	switch cfg.Notifier {
	case config.NotifierTwilio:
		tw, err := alerting.NewTwilioNotifier(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, s.Logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tw)
	case config.NotifierMQTT:
		mq, err := alerting.ConnectMQTT(ctx, alerting.MQTTOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Topic:    cfg.MQTTTopic,
		}, s.Logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, mq.Close)
		notifiers = append(notifiers, mq)
	}
	return notifiers, nil
}

// startVoice reads alerts aloud through the configured or platform speech program.
func (s *Services) startVoice() {
	cmd, ok := alerting.ParseVoiceCommand(s.Config.VoiceCommand)
	if !ok {
		var err error
		if cmd, err = alerting.DefaultVoiceCommand(); err != nil {
			s.Logger.Warn("voice alerts disabled", "error", err)
			return
		}
	}
	s.Voice = alerting.NewVoice(cmd, s.Logger)
	s.closers = append(s.closers, s.Voice.Close)
	s.Hub.Subscribe(monitor.HandlerFuncs{Alert: alerting.SpeakAlerts(s.Voice)})
	s.Logger.Info("voice alerts enabled", "command", cmd.Name)
}

// OpenerFor returns the capture opener selected by cfg. Settings are read at
// open time so changes made while stopped apply to the next start.
func OpenerFor(cfg *config.Config) capture.Opener {
	return func() (capture.Source, error) {
		if cfg.CameraSource == config.SourceScreen {
			return capture.OpenScreen(capture.ScreenOptions{})
		}
		return capture.OpenWebcam(capture.WebcamOptions{
			Device: cfg.CameraDevice,
			Width:  cfg.FrameWidth,
			Height: cfg.FrameHeight,
		})
	}
}

// Reconfigure pushes edited settings to the loop for its next start.
func (s *Services) Reconfigure(cfg *config.Config) {
	if s == nil || s.Loop == nil {
		return
	}
	s.Loop.Reconfigure(monitor.OptionsFromConfig(cfg, s.Student))
}

// CaptureStats returns counters of the most recently opened source.
func (s *Services) CaptureStats() (capture.CaptureStats, bool) {
	src := s.source.Load()
	if src == nil {
		return capture.CaptureStats{}, false
	}
	return src.Stats(), true
}

// Close stops the loop, lets pending alerts reach the recorder and releases
// everything in reverse start order.
func (s *Services) Close() error {
	if s == nil {
		return nil
	}
	if s.Loop != nil {
		s.Loop.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := s.Loop.Flush(ctx); err != nil && s.Logger != nil {
			s.Logger.Warn("pending alerts not delivered", "error", err)
		}
		cancel()
	}
	if s.Hub != nil {
		s.Hub.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
