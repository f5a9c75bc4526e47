package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"

	"github.com/soocke/study-buddy-go/config"
	"github.com/soocke/study-buddy-go/ui/theme"
)

const tick = 100 * time.Millisecond

type app struct {
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	c       *AppContainer
	afterID string
	exiting bool
}

// NewApp prepares the main window. Services must already be built.
func NewApp(ctx context.Context, title string, width, height int, cfg *config.Config, cfgPath string, logger *slog.Logger, svc *Services) *app {
	inner, cancel := context.WithCancel(ctx)
	a := &app{parent: ctx, ctx: inner, cancel: cancel, logger: logger}
	a.c = BuildContainer(cfg, logger, svc, cfgPath)

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a
}

// Start builds the widgets, starts the UI tick and blocks until the window closes.
func (a *app) Start() {
	theme.InitStyles()
	a.c.RootView.Build(a.c.Services.Student, a.toggle, a.toggleDark, a.exitHandler)
	a.c.Wire(a.ctx, a.scheduleUpdate)
	a.scheduleUpdate()

	App.Wait()
}

func (a *app) toggle() { a.c.ControlPresenter.Toggle() }

func (a *app) toggleDark() {
	dark := theme.ToggleDark()
	a.c.RootView.RefreshBanner()
	if a.logger != nil {
		a.logger.Debug("theme changed", "dark", dark)
	}
}

func (a *app) update() {
	if a.exiting {
		return
	}
	// A cancelled parent context (e.g. SIGINT) closes the window too.
	if a.parent.Err() != nil {
		a.exitHandler()
		return
	}
	a.c.Loop.Tick()
}

func (a *app) scheduleUpdate() {
	if a.exiting {
		return
	}
	// TclAfter keeps the update on Tk's event loop thread.
	a.afterID = TclAfter(tick, func() { a.update() })
}

func (a *app) exitHandler() {
	if a.exiting {
		return
	}
	a.exiting = true
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
	}
	a.c.Shutdown()
	a.cancel()
	Destroy(App)
}
