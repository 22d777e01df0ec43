package main

import (
	"fmt"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goecg/pkg/config"
	"github.com/itohio/goecg/pkg/device"
)

// showSettingsDialog edits a copy of the configuration. Saved settings apply
// to the next run; the running pipeline keeps its parameters.
func showSettingsDialog(a *app, window fyne.Window) {
	cfg := *a.cfg

	save := func() {
		if err := cfg.Validate(); err != nil {
			dialog.ShowError(err, window)
			return
		}
		if err := cfg.Save(a.opts.configFile); err != nil {
			dialog.ShowError(fmt.Errorf("failed to save config: %w", err), window)
			return
		}
		dialog.ShowInformation("Settings", "Saved to "+a.opts.configFile+", applied on next start", window)
	}

	tabs := container.NewAppTabs(
		createSerialTab(&cfg, save),
		createSamplingTab(&cfg, save),
		createAnalysisTab(&cfg, save),
		createOutputTab(&cfg, save),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	d := dialog.NewCustom("Settings", "Close", content, window)
	d.Resize(fyne.NewSize(600, 450))
	d.Show()
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(cfg *config.Config, save func()) *container.TabItem {
	var options []string
	if ports, err := device.Ports(); err == nil {
		for _, p := range ports {
			options = append(options, p.Name)
		}
	}
	found := false
	for _, o := range options {
		found = found || o == cfg.Serial.Port
	}
	if !found && cfg.Serial.Port != "" {
		options = append(options, cfg.Serial.Port)
	}

	portSelect := widget.NewSelect(options, nil)
	portSelect.SetSelected(cfg.Serial.Port)

	baudEntry := intEntry(cfg.Serial.Baud)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				cfg.Serial.Port = portSelect.Selected
			}
			setInt(&cfg.Serial.Baud, baudEntry)
			save()
		},
	}
	return container.NewTabItem("Serial", form)
}

// createSamplingTab creates the acquisition window tab.
func createSamplingTab(cfg *config.Config, save func()) *container.TabItem {
	timeEntry := floatEntry(cfg.Sampling.SampleTime)
	delayEntry := floatEntry(cfg.Sampling.SampleDelay)
	upsampleEntry := intEntry(cfg.Sampling.Upsample)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sample Time (s)", Widget: timeEntry},
			{Text: "Sample Delay (s)", Widget: delayEntry},
			{Text: "Upsample Factor", Widget: upsampleEntry},
		},
		OnSubmit: func() {
			setFloat(&cfg.Sampling.SampleTime, timeEntry)
			setFloat(&cfg.Sampling.SampleDelay, delayEntry)
			setInt(&cfg.Sampling.Upsample, upsampleEntry)
			save()
		},
	}
	return container.NewTabItem("Sampling", form)
}

// createAnalysisTab creates the peak detection tab.
func createAnalysisTab(cfg *config.Config, save func()) *container.TabItem {
	windowEntry := floatEntry(cfg.Analysis.WindowSize)
	minEntry := floatEntry(cfg.Analysis.BPMMin)
	maxEntry := floatEntry(cfg.Analysis.BPMMax)
	segmentwise := widget.NewCheck("", nil)
	segmentwise.SetChecked(cfg.Analysis.RejectSegmentwise)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Rolling Window (s)", Widget: windowEntry},
			{Text: "Min BPM", Widget: minEntry},
			{Text: "Max BPM", Widget: maxEntry},
			{Text: "Reject Segmentwise", Widget: segmentwise},
		},
		OnSubmit: func() {
			setFloat(&cfg.Analysis.WindowSize, windowEntry)
			setFloat(&cfg.Analysis.BPMMin, minEntry)
			setFloat(&cfg.Analysis.BPMMax, maxEntry)
			cfg.Analysis.RejectSegmentwise = segmentwise.Checked
			save()
		},
	}
	return container.NewTabItem("Analysis", form)
}

// createOutputTab creates the reporting tab.
func createOutputTab(cfg *config.Config, save func()) *container.TabItem {
	pathEntry := widget.NewEntry()
	pathEntry.SetText(cfg.Output.Path)
	prefixEntry := widget.NewEntry()
	prefixEntry.SetText(cfg.Output.Prefix)
	tagEntry := widget.NewEntry()
	tagEntry.SetText(cfg.Output.BPMTag)
	formatSelect := widget.NewSelect([]string{"png", "svg", "pdf", "jpg"}, nil)
	formatSelect.SetSelected(cfg.Output.Format)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Path", Widget: pathEntry},
			{Text: "Prefix", Widget: prefixEntry},
			{Text: "BPM Tag", Widget: tagEntry},
			{Text: "Format", Widget: formatSelect},
		},
		OnSubmit: func() {
			cfg.Output.Path = pathEntry.Text
			cfg.Output.Prefix = prefixEntry.Text
			cfg.Output.BPMTag = tagEntry.Text
			if formatSelect.Selected != "" {
				cfg.Output.Format = formatSelect.Selected
			}
			save()
		},
	}
	return container.NewTabItem("Output", form)
}

func floatEntry(v float64) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.FormatFloat(v, 'g', -1, 64))
	return e
}

func intEntry(v int) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.Itoa(v))
	return e
}

func setFloat(dst *float64, e *widget.Entry) {
	if v, err := strconv.ParseFloat(e.Text, 64); err == nil {
		*dst = v
	}
}

func setInt(dst *int, e *widget.Entry) {
	if v, err := strconv.Atoi(e.Text); err == nil {
		*dst = v
	}
}
