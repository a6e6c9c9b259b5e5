// Package app wires the device together: persistent store, network state
// machine, captive portal, secure channel, decoder, animation pipeline, and
// status indicator, all hanging off one Application context instead of
// module globals.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/anim"
	"github.com/moneybot/moneybotd/internal/channel"
	"github.com/moneybot/moneybotd/internal/config"
	"github.com/moneybot/moneybotd/internal/display"
	"github.com/moneybot/moneybotd/internal/model"
	"github.com/moneybot/moneybotd/internal/network"
	"github.com/moneybot/moneybotd/internal/portal"
	"github.com/moneybot/moneybotd/internal/sale"
	"github.com/moneybot/moneybotd/internal/status"
	"github.com/moneybot/moneybotd/internal/store"
	"github.com/moneybot/moneybotd/internal/timesync"
)

// ExitRestart asks the process supervisor to restart the daemon, the
// device-class equivalent of a reboot after credential save.
const ExitRestart = 10

// channelClient is the slice of the secure channel the app drives.
type channelClient interface {
	Connect() error
	Disconnect()
}

// Application owns all shared state for the process lifetime.
type Application struct {
	cfg    *config.Configuration
	logger *logrus.Logger
	log    *logrus.Entry

	store   *store.Store
	led     status.LED
	surface display.Surface
	// surfaceMu guards every display-surface mutation. Held only for the
	// mutation itself, never across unbounded work.
	surfaceMu sync.Mutex

	indicator *status.Indicator
	machine   *network.Machine
	queue     *anim.Queue
	worker    *anim.Worker
	decoder   *sale.Handler
	syncer    *timesync.Syncer
	channel   channelClient

	state atomic.Int32

	portalMu     sync.Mutex
	activePortal *portal.Portal

	restartOnce sync.Once
	restartCh   chan struct{}
}

// New assembles the application. The surface is mandatory: the display is
// the product, so running headless without even a logging surface is a
// startup failure.
func New(cfg *config.Configuration, driver network.Driver, surface display.Surface, logger *logrus.Logger) (*Application, error) {
	if surface == nil {
		return nil, fmt.Errorf("no display surface")
	}

	a := &Application{
		cfg:       cfg,
		logger:    logger,
		log:       logger.WithField("component", "app"),
		surface:   surface,
		store:     store.Open(cfg.StorePath, logger),
		restartCh: make(chan struct{}),
	}

	led, err := openLED(cfg.LED)
	if err != nil {
		// The indicator peripheral is core to the product; a configured
		// LED that fails to initialize halts startup.
		return nil, fmt.Errorf("status led init: %w", err)
	}
	a.led = led
	a.indicator = status.NewIndicator(a.led, a, logger)

	timeout := time.Duration(cfg.Wifi.ConnectTimeoutMS) * time.Millisecond
	a.machine = network.NewMachine(driver, a.setState, cfg.Wifi.Attempts, timeout, logger)

	a.queue = anim.NewQueue(cfg.Sale.QueueCapacity)
	a.worker = anim.NewWorker(a.queue, &renderer{a: a}, anim.DefaultPhases(), logger)

	debounce := time.Duration(cfg.Sale.DebounceMS) * time.Millisecond
	a.decoder = sale.NewHandler(a.queue, debounce, *cfg.Sale.TriggerOnParseError, logger)

	a.syncer = timesync.NewSyncer(cfg.NTP.Host, cfg.NTP.Attempts, logger)

	deviceID := a.store.Identity(cfg.DeviceID)
	a.channel = channel.NewClient(channel.Config{
		Broker:   cfg.MQTT.Broker,
		CAFile:   cfg.MQTT.CAFile,
		CertFile: cfg.MQTT.CertFile,
		KeyFile:  cfg.MQTT.KeyFile,
		DeviceID: deviceID,
	}, a.setState, a.decoder.Handle, logger)

	a.log.WithField("device_id", deviceID).Info("moneybot assembled")
	return a, nil
}

func openLED(cfg config.LEDConfig) (status.LED, error) {
	if cfg.RedPin == 0 && cfg.GreenPin == 0 && cfg.BluePin == 0 {
		return status.NopLED(), nil
	}
	return status.NewGPIOLED(cfg.Chip, cfg.RedPin, cfg.GreenPin, cfg.BluePin)
}

// Run executes the startup sequence and blocks until shutdown or a restart
// request. The returned code is the intended process exit code.
func (a *Application) Run(ctx context.Context) (int, error) {
	go a.worker.Run()
	defer a.queue.Close()

	a.setState(model.Disconnected)

	creds, ok, err := a.store.Credentials()
	if err != nil {
		return 1, fmt.Errorf("load credentials: %w", err)
	}

	connected := false
	if ok {
		if err := a.machine.Connect(ctx, creds); err != nil {
			a.log.WithError(err).Warn("station association exhausted, falling back to provisioning")
		} else {
			connected = true
		}
	} else {
		a.log.Info("no stored credentials, entering provisioning")
	}

	if !connected {
		return a.runProvisioning(ctx)
	}

	if _, err := a.syncer.Sync(); err != nil {
		a.log.WithError(err).Warn("proceeding with unverified clock")
	}

	if err := a.channel.Connect(); err != nil {
		// The device stays up without the channel: display and animation
		// still work, but no inbound events will arrive.
		if errors.Is(err, channel.ErrCredentials) {
			a.log.WithError(err).Error("channel credentials invalid, inbound events disabled")
		} else {
			a.log.WithError(err).Error("channel unavailable, inbound events disabled")
		}
	} else {
		defer a.channel.Disconnect()
	}

	select {
	case <-ctx.Done():
		return 0, nil
	case <-a.restartCh:
		return ExitRestart, nil
	}
}

// runProvisioning brings up the access point and captive portal and blocks
// there indefinitely; the only exits are a credential save (restart) or
// process shutdown.
func (a *Application) runProvisioning(ctx context.Context) (int, error) {
	ssid, err := a.machine.StartProvisioning(a.cfg.Portal.SSIDPrefix)
	if err != nil {
		return 1, fmt.Errorf("enter provisioning: %w", err)
	}

	p, err := portal.Start(a.cfg.Portal, a.store, a.requestRestart, a.logger)
	if err != nil {
		a.machine.StopProvisioning()
		return 1, fmt.Errorf("start portal: %w", err)
	}
	defer p.Stop()

	a.portalMu.Lock()
	a.activePortal = p
	a.portalMu.Unlock()

	// Built outside the surface lock: code generation can take a while.
	scr := portal.BuildScreen(ssid, a.cfg.Portal.Address)
	a.surfaceMu.Lock()
	a.surface.ShowProvisioning(scr)
	a.surfaceMu.Unlock()

	select {
	case <-ctx.Done():
		if err := a.machine.StopProvisioning(); err != nil {
			a.log.WithError(err).Warn("stopping access point failed")
		}
		return 0, nil
	case <-a.restartCh:
		return ExitRestart, nil
	}
}

// Close releases hardware resources.
func (a *Application) Close() {
	if err := a.led.Close(); err != nil {
		a.log.WithError(err).Warn("closing led failed")
	}
}

// State reports the current connection state.
func (a *Application) State() model.ConnectionState {
	return model.ConnectionState(a.state.Load())
}

// setState is the single funnel for connection-state transitions; it drives
// the indicator synchronously.
func (a *Application) setState(s model.ConnectionState) {
	a.state.Store(int32(s))
	a.indicator.Update(s)
}

// SetStatusColor implements status.FaceSink, serializing surface access.
func (a *Application) SetStatusColor(c status.Color) {
	a.surfaceMu.Lock()
	defer a.surfaceMu.Unlock()
	a.surface.SetStatusColor(c)
}

func (a *Application) requestRestart() {
	a.restartOnce.Do(func() {
		a.log.Info("restart requested")
		close(a.restartCh)
	})
}

// renderer adapts the display surface to the animation worker, holding the
// surface lock for each phase entry.
type renderer struct {
	a *Application
}

func (r *renderer) Celebrate(ev model.SaleEvent) {
	r.a.surfaceMu.Lock()
	defer r.a.surfaceMu.Unlock()
	r.a.surface.PlayCelebration(ev)
}

func (r *renderer) Success() {
	r.a.surfaceMu.Lock()
	defer r.a.surfaceMu.Unlock()
	r.a.surface.PlaySuccess()
}

func (r *renderer) Idle() {
	r.a.surfaceMu.Lock()
	defer r.a.surfaceMu.Unlock()
	r.a.surface.Reset()
	r.a.surface.SetStatusColor(status.ColorFor(r.a.State()))
}
