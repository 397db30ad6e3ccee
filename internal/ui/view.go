package ui

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/lux-logger/internal/go_func_utils"
	"github.com/lowaak/lux-logger/internal/sensor"
)

// View is the terminal dashboard: lifetime aggregates, time-window counts,
// link status, and the rolling status log, updated from model events.
type View struct {
	app        *tview.Application
	controller *Controller
	model      *sensor.Model
	logger     *log.Logger

	statsPanel      *tview.TextView
	timeRangePanel  *tview.TextView
	connectionPanel *tview.TextView
	statusPanel     *tview.TextView

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewView(app *tview.Application, controller *Controller, model *sensor.Model, logger *log.Logger) *View {
	if app == nil {
		panic("View: app cannot be nil")
	}
	if controller == nil {
		panic("View: controller cannot be nil")
	}
	if model == nil {
		panic("View: model cannot be nil")
	}
	if logger == nil {
		panic("View: logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		app:        app,
		controller: controller,
		model:      model,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	v.buildLayout()
	v.setupKeyboardHandlers()
	v.listenToModel()
	return v
}

func (v *View) buildLayout() {
	v.statsPanel = tview.NewTextView().SetDynamicColors(true)
	v.statsPanel.SetBorder(true).SetTitle(" Exposure ")

	v.timeRangePanel = tview.NewTextView().SetDynamicColors(true)
	v.timeRangePanel.SetBorder(true).SetTitle(" Windows ")

	v.connectionPanel = tview.NewTextView().SetDynamicColors(true)
	v.connectionPanel.SetBorder(true).SetTitle(" Link ")

	v.statusPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	v.statusPanel.SetBorder(true).SetTitle(" Device Log ")

	instructions := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	instructions.SetText("[yellow]C[white] Connect  |  [yellow]X[white] Clear Data  |  [yellow]Esc/Q[white] Quit")

	topRow := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(v.statsPanel, 0, 2, false).
		AddItem(v.timeRangePanel, 0, 1, false).
		AddItem(v.connectionPanel, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(instructions, 2, 0, false).
		AddItem(topRow, 0, 1, false).
		AddItem(v.statusPanel, 0, 2, false)

	v.app.SetRoot(root, true)

	v.renderStats(v.model.Stats(), v.model.StorageStats())
	v.renderTimeRange(v.model.TimeRangeStats())
	v.renderConnection(v.model.Connection())
	v.renderStatusTail()
}

func (v *View) setupKeyboardHandlers() {
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			v.controller.QuitRequested()
			return nil
		}
		switch event.Rune() {
		case 'c', 'C':
			v.controller.ConnectRequested()
			return nil
		case 'x', 'X':
			v.controller.ClearRequested()
			return nil
		case 'q', 'Q':
			v.controller.QuitRequested()
			return nil
		}
		return event
	})
}

func (v *View) listenToModel() {
	statsCh := make(chan sensor.Stats, 4)
	storageCh := make(chan sensor.StorageStats, 4)
	rangeCh := make(chan sensor.TimeRangeStats, 4)
	connCh := make(chan sensor.ConnectionInfo, 4)
	statusCh := make(chan sensor.StatusEntry, 16)

	unregisters := []func(){
		v.model.ListenToStats(statsCh),
		v.model.ListenToStorageStats(storageCh),
		v.model.ListenToTimeRangeStats(rangeCh),
		v.model.ListenToConnection(connCh),
		v.model.ListenToStatus(statusCh),
	}

	v.wg.Add(1)
	go_func_utils.SafeGo(v.logger, func() {
		defer v.wg.Done()
		defer func() {
			for _, unregister := range unregisters {
				unregister()
			}
		}()

		for {
			select {
			case <-v.ctx.Done():
				return
			case stats := <-statsCh:
				storage := v.model.StorageStats()
				v.app.QueueUpdateDraw(func() {
					v.renderStats(stats, storage)
				})
			case <-storageCh:
				// Rendered together with stats
			case timeRange := <-rangeCh:
				v.app.QueueUpdateDraw(func() {
					v.renderTimeRange(timeRange)
				})
			case info := <-connCh:
				v.app.QueueUpdateDraw(func() {
					v.renderConnection(info)
				})
			case <-statusCh:
				v.app.QueueUpdateDraw(func() {
					v.renderStatusTail()
				})
			}
		}
	})
}

func (v *View) renderStats(stats sensor.Stats, storage sensor.StorageStats) {
	v.statsPanel.SetText(fmt.Sprintf(
		"Total exposure:   [green]%.2f[white]\n"+
			"Avg intensity:    %.2f\n"+
			"Max intensity:    %.2f\n"+
			"Latest intensity: %.2f\n"+
			"Readings:         %d\n"+
			"Peak at:          %s\n"+
			"Storage:          %.1f KB",
		stats.TotalExposure,
		stats.AvgIntensity,
		stats.MaxIntensity,
		stats.LatestIntensity,
		stats.NumberReadings,
		formatPeakTime(stats.PeakTime),
		storage.SizeKB,
	))
}

func (v *View) renderTimeRange(timeRange sensor.TimeRangeStats) {
	v.timeRangePanel.SetText(fmt.Sprintf(
		"Today: %d\nWeek:  %d\nMonth: %d",
		timeRange.ReadingsToday,
		timeRange.ReadingsWeek,
		timeRange.ReadingsMonth,
	))
}

func (v *View) renderConnection(info sensor.ConnectionInfo) {
	if info.Connected {
		v.connectionPanel.SetText("[green]Connected[white]")
		return
	}
	text := "[red]Disconnected[white]"
	if info.Error != "" {
		text += "\n" + tview.Escape(info.Error)
	}
	v.connectionPanel.SetText(text)
}

func (v *View) renderStatusTail() {
	entries := v.model.StatusTail(50)
	text := ""
	for _, entry := range entries {
		ts := time.UnixMilli(entry.Timestamp).Format("15:04:05")
		if entry.Command != "" {
			text += fmt.Sprintf("[gray]%s[white] [yellow]%s[white] %s\n", ts, entry.Command, tview.Escape(entry.Text))
		} else {
			text += fmt.Sprintf("[gray]%s[white] %s\n", ts, tview.Escape(entry.Text))
		}
	}
	v.statusPanel.SetText(text)
}

func formatPeakTime(peakTime int64) string {
	if peakTime == 0 {
		return "-"
	}
	return time.UnixMilli(peakTime).Format("2006-01-02 15:04:05")
}

// Run starts the terminal UI and blocks until it exits
func (v *View) Run() error {
	return v.app.Run()
}

// Stop ends the UI loop
func (v *View) Stop() {
	v.app.Stop()
}

// Shutdown stops the event listeners
func (v *View) Shutdown() {
	v.cancel()
	v.wg.Wait()
}
