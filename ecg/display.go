package main

import (
	"context"
	"errors"
	"sync/atomic"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/itohio/goecg/pkg/pipeline"
	"github.com/itohio/goecg/pkg/scope"
)

// runDisplay runs the continuous pipeline behind a live scope window. Closing
// the window stops the run without an error.
func runDisplay(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	application := fyneapp.NewWithID("com.itohio.goecg")
	window := application.NewWindow("ECG")
	window.Resize(fyne.NewSize(1200, 600))
	window.CenterOnScreen()

	scopeWidget := scope.New(a.cfg.Sampling.SampleTime)
	a.driver.OnCycle(scopeWidget.Observe)

	stateLabel := widget.NewLabel(pipeline.StateIdle.String())
	a.driver.OnState(func(s pipeline.State) {
		fyne.Do(func() { stateLabel.SetText(s.String()) })
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(a, window)
	})

	toolbar := container.NewBorder(
		nil,
		nil,
		container.NewHBox(settingsBtn),
		stateLabel,
		nil,
	)
	window.SetContent(container.NewBorder(toolbar, nil, nil, nil, scopeWidget))

	var closed atomic.Bool
	window.SetOnClosed(func() {
		closed.Store(true)
		cancel()
	})

	errCh := make(chan error, 1)
	go func() {
		err := a.driver.RunContinuous(ctx)
		errCh <- err
		if !closed.Load() {
			fyne.Do(application.Quit)
		}
	}()

	window.ShowAndRun()
	cancel()

	err := <-errCh
	if closed.Load() && errors.Is(err, context.Canceled) {
		a.log.Info("display closed", zap.String("run", a.driver.Run()))
		return nil
	}
	return err
}
