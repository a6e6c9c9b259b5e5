// Package network owns WiFi association, the provisioning fallback, and the
// retry policy. Radio events arrive as an explicit event enumeration through
// a single Dispatch function, so every state mutation funnels through one
// place.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/model"
	"github.com/moneybot/moneybotd/internal/portal"
	"github.com/moneybot/moneybotd/internal/store"
)

// Defaults for the association retry budget.
const (
	DefaultAttempts       = 2
	DefaultConnectTimeout = 10 * time.Second
	defaultRetryInterval  = time.Second
)

// ErrProvisioning is returned when a station connect is requested while the
// radio is in access-point mode. Provisioning and station association are
// mutually exclusive; the guard keeps a stray auto-connect from firing
// mid-session.
var ErrProvisioning = errors.New("radio is in provisioning mode")

// Driver abstracts the WiFi radio.
type Driver interface {
	// Associate blocks until station association completes or ctx expires.
	Associate(ctx context.Context, ssid, passphrase string) error
	StartAccessPoint(ssid string) error
	StopAccessPoint() error
	HardwareAddr() (net.HardwareAddr, error)
}

// Event is a radio callback, normalized.
type Event int

const (
	EventAssociated Event = iota
	EventAssociationFailed
	EventLinkLost
)

func (e Event) String() string {
	switch e {
	case EventAssociated:
		return "associated"
	case EventAssociationFailed:
		return "association_failed"
	case EventLinkLost:
		return "link_lost"
	default:
		return "unknown"
	}
}

// StatusSink receives each connection-state transition.
type StatusSink func(model.ConnectionState)

// Machine is the connection state machine.
type Machine struct {
	driver Driver
	status StatusSink

	attempts      int
	timeout       time.Duration
	retryInterval time.Duration

	mu           sync.Mutex
	provisioning bool

	connectOnce sync.Once
	connected   chan struct{}

	log *logrus.Entry
}

func NewMachine(driver Driver, status StatusSink, attempts int, timeout time.Duration, logger *logrus.Logger) *Machine {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Machine{
		driver:        driver,
		status:        status,
		attempts:      attempts,
		timeout:       timeout,
		retryInterval: defaultRetryInterval,
		connected:     make(chan struct{}),
		log:           logger.WithField("component", "network"),
	}
}

// Connect runs station association with the bounded retry budget. On
// exhaustion the caller falls through to provisioning.
func (m *Machine) Connect(ctx context.Context, creds store.Credentials) error {
	m.mu.Lock()
	if m.provisioning {
		m.mu.Unlock()
		return ErrProvisioning
	}
	m.mu.Unlock()

	m.status(model.WifiConnecting)
	m.log.WithField("ssid", creds.SSID).Info("associating")

	attempt := 0
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		if err := m.driver.Associate(actx, creds.SSID, creds.Passphrase); err != nil {
			m.log.WithError(err).WithField("attempt", attempt).Warn("association attempt failed")
			return err
		}
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.retryInterval), uint64(m.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		m.Dispatch(EventAssociationFailed)
		return fmt.Errorf("wifi association after %d attempts: %w", attempt, err)
	}

	m.Dispatch(EventAssociated)
	return nil
}

// StartProvisioning switches the radio to access-point mode and returns the
// advertised SSID. There is no timeout: only a credential save (then
// restart) or an external reset ends the session.
func (m *Machine) StartProvisioning(ssidPrefix string) (string, error) {
	m.mu.Lock()
	m.provisioning = true
	m.mu.Unlock()

	hw, err := m.driver.HardwareAddr()
	if err != nil {
		m.log.WithError(err).Warn("hardware address unavailable, using fallback ssid")
		hw = nil
	}
	ssid := portal.APSSID(ssidPrefix, hw)

	if err := m.driver.StartAccessPoint(ssid); err != nil {
		m.mu.Lock()
		m.provisioning = false
		m.mu.Unlock()
		return "", fmt.Errorf("start access point: %w", err)
	}

	m.status(model.WifiProvisioning)
	m.log.WithField("ssid", ssid).Info("provisioning access point up")
	return ssid, nil
}

// StopProvisioning tears down the access point.
func (m *Machine) StopProvisioning() error {
	m.mu.Lock()
	m.provisioning = false
	m.mu.Unlock()
	if err := m.driver.StopAccessPoint(); err != nil {
		return fmt.Errorf("stop access point: %w", err)
	}
	return nil
}

// Provisioning reports whether the radio is in access-point mode.
func (m *Machine) Provisioning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provisioning
}

// Dispatch consumes one radio event. Association events arriving during a
// provisioning session are ignored.
func (m *Machine) Dispatch(ev Event) {
	if m.Provisioning() {
		m.log.WithField("event", ev.String()).Debug("ignoring radio event during provisioning")
		return
	}
	switch ev {
	case EventAssociated:
		m.status(model.WifiConnected)
		m.connectOnce.Do(func() { close(m.connected) })
	case EventAssociationFailed, EventLinkLost:
		m.status(model.Disconnected)
	}
}

// WaitConnected blocks until the first successful association or ctx
// expiry; used only during the startup sequence.
func (m *Machine) WaitConnected(ctx context.Context) error {
	select {
	case <-m.connected:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for wifi: %w", ctx.Err())
	}
}
