package presenter

import (
	"context"
	"errors"

	"github.com/soocke/study-buddy-go/domain/capture"
	"github.com/soocke/study-buddy-go/domain/monitor"
)

// ControlModel provides monitoring state access.
type ControlModel interface {
	Enabled() bool
	SetEnabled(bool) bool
}

// LoopController narrows what the presenter needs from the detection loop.
type LoopController interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Err() error
}

// ControlView updates UI elements affected by starting and stopping monitoring.
type ControlView interface {
	PreviewReset()
	ConfigEditable(bool)
	SetStateLabel(string)
	SetMonitoring(bool)
}

// Status texts shown in the state label.
const (
	StatusIdle       = "Monitoring: off"
	StatusActive     = "Monitoring: on"
	StatusNoCamera   = "Camera unavailable"
	StatusDetectFail = "Detector stopped responding"
	StatusEnded      = "Video source ended"
)

// ControlPresenter starts and stops the detection loop from the UI and notices
// when the loop ends on its own.
type ControlPresenter struct {
	ctx   context.Context
	model ControlModel
	loop  LoopController
	view  ControlView
}

func NewControlPresenter(ctx context.Context, model ControlModel, loop LoopController, view ControlView) *ControlPresenter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ControlPresenter{ctx: ctx, model: model, loop: loop, view: view}
}

func (c *ControlPresenter) ready() bool {
	return c != nil && c.model != nil && c.loop != nil && c.view != nil
}

// Enable starts the loop. A start failure leaves monitoring off and shows why. Idempotent.
func (c *ControlPresenter) Enable() {
	if !c.ready() || c.model.Enabled() {
		return
	}
	if err := c.loop.Start(c.ctx); err != nil {
		c.view.SetStateLabel(statusFor(err))
		return
	}
	c.model.SetEnabled(true)
	c.view.ConfigEditable(false)
	c.view.SetMonitoring(true)
	c.view.SetStateLabel(StatusActive)
}

// Disable stops the loop, waiting for the current iteration, and resets the preview. Idempotent.
func (c *ControlPresenter) Disable() {
	if !c.ready() || !c.model.Enabled() {
		return
	}
	c.loop.Stop()
	c.settle(StatusIdle)
}

// Toggle flips monitoring delegating to Enable/Disable.
func (c *ControlPresenter) Toggle() {
	if !c.ready() {
		return
	}
	if c.model.Enabled() {
		c.Disable()
		return
	}
	c.Enable()
}

// Tick reconciles the model with a loop that terminated by itself.
func (c *ControlPresenter) Tick() {
	if !c.ready() || !c.model.Enabled() || c.loop.Running() {
		return
	}
	status := StatusEnded
	if err := c.loop.Err(); err != nil {
		status = statusFor(err)
	}
	c.settle(status)
}

func (c *ControlPresenter) settle(status string) {
	c.model.SetEnabled(false)
	c.view.PreviewReset()
	c.view.ConfigEditable(true)
	c.view.SetMonitoring(false)
	c.view.SetStateLabel(status)
}

func statusFor(err error) string {
	switch {
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return StatusNoCamera
	case errors.Is(err, monitor.ErrDetectorFailed):
		return StatusDetectFail
	default:
		return "Error: " + err.Error()
	}
}
