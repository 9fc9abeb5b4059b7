// Package dashboard composes the live bindings, status computation and
// write actions into the state of one dashboard page.
package dashboard

import (
	"context"
	"sync"
	"time"

	"slope-monitor-backend/internal/auth"
	"slope-monitor-backend/internal/live"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/parse"
	"slope-monitor-backend/internal/realtime"
	"slope-monitor-backend/internal/store"
)

// Options tunes the bindings behind a page.
type Options struct {
	WindowHours  int
	ReadingLimit int
	AlertLimit   int
	// Location is used for display times. Defaults to time.Local.
	Location *time.Location
}

// Page is one client's dashboard. It owns the selected device and every
// subscription made on its behalf; Close releases them all.
type Page struct {
	store store.Store
	gate  *auth.Gate
	opts  Options

	sensors *live.SensorData
	alerts  *live.Alerts

	// actionMu serialises Open, Select and Close.
	actionMu sync.Mutex

	mu         sync.Mutex
	selected   string
	devices    live.State[[]string]
	thresholds live.State[*model.Thresholds]
	message    string
	closed     bool
	onChange   func()
}

// NewPage creates a page. Nothing is subscribed until Open.
func NewPage(s store.Store, feed *realtime.Feed, gate *auth.Gate, opts Options) *Page {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WindowHours <= 0 {
		opts.WindowHours = live.DefaultWindowHours
	}
	p := &Page{
		store:   s,
		gate:    gate,
		opts:    opts,
		sensors: live.NewSensorData(s, feed, opts.ReadingLimit),
		alerts:  live.NewAlerts(s, feed, opts.AlertLimit),
	}
	p.sensors.OnChange(func(live.State[[]model.SensorReading]) { p.changed() })
	p.alerts.OnChange(func(live.State[[]model.Alert]) { p.changed() })
	return p
}

// OnChange registers fn to be called whenever the view may have changed.
// fn may run on subscription goroutines and must not block.
func (p *Page) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Open loads the device list and subscribes to unacknowledged alerts of all devices.
// A closed page stays closed.
func (p *Page) Open(ctx context.Context) {
	p.actionMu.Lock()
	defer p.actionMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.devices = live.State[[]string]{Loading: true}
	p.mu.Unlock()

	devices := live.FetchDevices(ctx, p.store)

	p.mu.Lock()
	p.devices = devices
	selected := p.selected
	p.mu.Unlock()

	p.sensors.Start(live.SensorFilter{DeviceID: selected, WindowHours: p.opts.WindowHours})
	p.alerts.Start(live.AlertFilter{DeviceID: selected, Acknowledged: false})
	p.changed()
}

// Select switches the page to deviceID. An empty id clears the selection.
// Selecting the current device again changes nothing.
func (p *Page) Select(ctx context.Context, deviceID string) {
	p.actionMu.Lock()
	defer p.actionMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	same := p.selected == deviceID
	p.selected = deviceID
	if !same {
		p.message = ""
	}
	p.mu.Unlock()

	p.sensors.Start(live.SensorFilter{DeviceID: deviceID, WindowHours: p.opts.WindowHours})
	p.alerts.Start(live.AlertFilter{DeviceID: deviceID, Acknowledged: false})

	if !same {
		p.refreshThresholds(ctx, deviceID)
	}
	p.changed()
}

// Selected returns the selected device id.
func (p *Page) Selected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Acknowledge marks an alert as acknowledged. Errors are only logged.
func (p *Page) Acknowledge(ctx context.Context, alertID string) {
	_ = AcknowledgeAlert(ctx, p.store, alertID)
}

// SaveThresholds saves the form for the selected device and sets the page message.
func (p *Page) SaveThresholds(ctx context.Context, form parse.ThresholdForm) error {
	p.mu.Lock()
	deviceID := p.selected
	current := model.DefaultThresholds(deviceID)
	if p.thresholds.Data != nil {
		current = *p.thresholds.Data
	}
	p.mu.Unlock()

	msg, err := SaveThresholds(ctx, p.store, deviceID, form, current)

	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()

	if err == nil {
		p.refreshThresholds(ctx, deviceID)
	}
	p.changed()
	return err
}

// DismissMessage clears the save status message.
func (p *Page) DismissMessage() {
	p.mu.Lock()
	p.message = ""
	p.mu.Unlock()
	p.changed()
}

func (p *Page) refreshThresholds(ctx context.Context, deviceID string) {
	st := live.FetchThresholds(ctx, p.store, deviceID)
	p.mu.Lock()
	if p.selected == deviceID {
		p.thresholds = st
	}
	p.mu.Unlock()
}

// Close cancels every subscription of the page. It is idempotent.
func (p *Page) Close() {
	p.actionMu.Lock()
	defer p.actionMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.onChange = nil
	p.mu.Unlock()

	p.sensors.Stop()
	p.alerts.Stop()
}

// View builds the current view model.
func (p *Page) View() View {
	p.mu.Lock()
	selected := p.selected
	devices := p.devices
	thresholds := p.thresholds
	message := p.message
	p.mu.Unlock()

	sensors := p.sensors.State()
	alerts := p.alerts.State()

	v := View{
		Devices:        devices.Data,
		DevicesLoading: devices.Loading,
		SelectedDevice: selected,
		Thresholds:     thresholds.Data,
		Message:        message,
		DataLoading:    sensors.Loading,
		Alerts:         BuildAlertItems(alerts.Data, p.opts.Location),
		AlertsLoading:  alerts.Loading,
	}
	if v.Devices == nil {
		v.Devices = []string{}
	}
	if s := p.gate.Session(); s.User != nil {
		v.User = s.User
	}

	if selected != "" {
		v.Charts = BuildCharts(sensors.Data, p.opts.Location)
		if n := len(sensors.Data); n > 0 {
			v.Cards = BuildCards(sensors.Data[n-1], thresholds.Data)
		}
	}

	errs := map[string]string{}
	for section, err := range map[string]error{
		"devices":    devices.Err,
		"data":       sensors.Err,
		"alerts":     alerts.Err,
		"thresholds": thresholds.Err,
	} {
		if err != nil {
			errs[section] = err.Error()
		}
	}
	if len(errs) > 0 {
		v.Errors = errs
	}
	return v
}

func (p *Page) changed() {
	p.mu.Lock()
	cb := p.onChange
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}
