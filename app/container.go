package app

import (
	"context"
	"log/slog"

	"github.com/soocke/study-buddy-go/config"
	"github.com/soocke/study-buddy-go/ui/model"
	"github.com/soocke/study-buddy-go/ui/presenter"
	"github.com/soocke/study-buddy-go/ui/view"
)

// AppContainer assembles models, presenters and the root view around Services.
type AppContainer struct {
	Config   *config.Config
	Logger   *slog.Logger
	Services *Services

	Control  *model.ControlModel
	Session  *model.SessionModel
	Alerts   *model.AlertModel
	RootView *view.RootView

	// Presenters
	ControlPresenter *presenter.ControlPresenter
	MonitorPresenter *presenter.MonitorPresenter
	SessionPresenter *presenter.SessionPresenter
	Loop             *presenter.Loop

	unsubscribe func()
}

// BuildContainer constructs models and the view. Presenters are wired by Wire
// once the Tk widgets exist.
func BuildContainer(cfg *config.Config, logger *slog.Logger, svc *Services, cfgPath string) *AppContainer {
	c := &AppContainer{Config: cfg, Logger: logger, Services: svc}
	c.Control = &model.ControlModel{}
	c.Session = model.NewSessionModel()
	c.Alerts = model.NewAlertModel()
	c.RootView = view.NewRootView(cfg, cfgPath, logger, svc.Reconfigure)
	return c
}

// Wire creates the presenters and subscribes the monitor presenter to the hub.
func (c *AppContainer) Wire(ctx context.Context, schedule func()) {
	c.ControlPresenter = presenter.NewControlPresenter(ctx, c.Control, c.Services.Loop, c.RootView)
	c.MonitorPresenter = presenter.NewMonitorPresenter(c.RootView, c.Alerts, c.Session)
	c.SessionPresenter = presenter.NewSessionPresenter(c.Session, c.Control, c.RootView)
	c.Loop = presenter.NewLoop(c.ControlPresenter, c.MonitorPresenter, c.SessionPresenter, schedule)
	c.unsubscribe = c.Services.Hub.Subscribe(c.MonitorPresenter)
}

// Shutdown detaches the UI from the hub and stops monitoring.
func (c *AppContainer) Shutdown() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.ControlPresenter.Disable()
	c.MonitorPresenter.Reset()
}
