package app

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneybot/moneybotd/internal/config"
	"github.com/moneybot/moneybotd/internal/model"
	"github.com/moneybot/moneybotd/internal/portal"
	"github.com/moneybot/moneybotd/internal/status"
	"github.com/moneybot/moneybotd/internal/store"
)

type fakeDriver struct {
	mu           sync.Mutex
	associateErr error
	associated   []string
	apSSID       string
}

func (d *fakeDriver) Associate(ctx context.Context, ssid, pass string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.associateErr != nil {
		return d.associateErr
	}
	d.associated = append(d.associated, ssid)
	return nil
}

func (d *fakeDriver) StartAccessPoint(ssid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apSSID = ssid
	return nil
}

func (d *fakeDriver) StopAccessPoint() error { return nil }

func (d *fakeDriver) HardwareAddr() (net.HardwareAddr, error) {
	return net.HardwareAddr{0xAA, 0xBB, 0xCC, 0xDD, 0x0E, 0xF1}, nil
}

func (d *fakeDriver) accessPointSSID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.apSSID
}

func (d *fakeDriver) associatedSSIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.associated...)
}

type fakeSurface struct {
	mu           sync.Mutex
	statusColors []status.Color
	provisioning []portal.Screen
}

func (s *fakeSurface) SetStatusColor(c status.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusColors = append(s.statusColors, c)
}
func (s *fakeSurface) PlayCelebration(model.SaleEvent) {}
func (s *fakeSurface) PlaySuccess()                    {}
func (s *fakeSurface) Reset()                          {}
func (s *fakeSurface) ShowProvisioning(scr portal.Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisioning = append(s.provisioning, scr)
}

func (s *fakeSurface) provisioningShown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.provisioning) > 0
}

type fakeChannel struct {
	connectErr error
	connects   atomic.Int32
}

func (c *fakeChannel) Connect() error {
	c.connects.Add(1)
	return c.connectErr
}
func (c *fakeChannel) Disconnect() {}

func testConfig(t *testing.T) *config.Configuration {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	cfg.StorePath = filepath.Join(t.TempDir(), "store.json")
	cfg.Portal.DNSListen = "127.0.0.1:0"
	cfg.Portal.HTTPListen = "127.0.0.1:0"
	cfg.Portal.RestartDelayMS = 10
	cfg.Wifi.ConnectTimeoutMS = 100
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Configuration, driver *fakeDriver, surface *fakeSurface) *Application {
	t.Helper()
	logger := logrus.New()
	a, err := New(cfg, driver, surface, logger)
	require.NoError(t, err)
	a.syncer.Query = func(string) (time.Time, error) { return time.Now(), nil }
	return a
}

func (a *Application) portalHTTPAddr() string {
	a.portalMu.Lock()
	defer a.portalMu.Unlock()
	if a.activePortal == nil {
		return ""
	}
	return a.activePortal.HTTP.Addr().String()
}

func TestRunEntersProvisioningWithoutCredentials(t *testing.T) {
	cfg := testConfig(t)
	driver := &fakeDriver{}
	surface := &fakeSurface{}
	a := newTestApp(t, cfg, driver, surface)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		code, _ := a.Run(ctx)
		done <- code
	}()

	require.Eventually(t, surface.provisioningShown, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "MoneyBot-0EF1", driver.accessPointSSID())
	assert.Equal(t, model.WifiProvisioning, a.State())

	cancel()
	assert.Equal(t, 0, <-done)
}

func TestProvisioningSaveRestartsProcess(t *testing.T) {
	cfg := testConfig(t)
	driver := &fakeDriver{}
	surface := &fakeSurface{}
	a := newTestApp(t, cfg, driver, surface)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() {
		code, _ := a.Run(ctx)
		done <- code
	}()

	require.Eventually(t, surface.provisioningShown, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(
		"http://"+a.portalHTTPAddr()+"/save",
		"application/x-www-form-urlencoded",
		strings.NewReader("ssid=Home&pass=secret"),
	)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case code := <-done:
		assert.Equal(t, ExitRestart, code)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not exit for restart")
	}

	s := store.Open(cfg.StorePath, logrus.New())
	creds, ok, err := s.Credentials()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Home", creds.SSID)
	assert.Equal(t, "secret", creds.Passphrase)
}

func TestRunConnectsWithStoredCredentials(t *testing.T) {
	cfg := testConfig(t)
	s := store.Open(cfg.StorePath, logrus.New())
	require.NoError(t, s.SaveCredentials(store.Credentials{SSID: "Home", Passphrase: "pw"}))

	driver := &fakeDriver{}
	surface := &fakeSurface{}
	a := newTestApp(t, cfg, driver, surface)
	ch := &fakeChannel{}
	a.channel = ch

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		code, _ := a.Run(ctx)
		done <- code
	}()

	require.Eventually(t, func() bool { return ch.connects.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Home"}, driver.associatedSSIDs())
	assert.False(t, surface.provisioningShown())

	cancel()
	assert.Equal(t, 0, <-done)
}

func TestChannelCredentialFailureKeepsDeviceUp(t *testing.T) {
	cfg := testConfig(t)
	s := store.Open(cfg.StorePath, logrus.New())
	require.NoError(t, s.SaveCredentials(store.Credentials{SSID: "Home"}))

	driver := &fakeDriver{}
	surface := &fakeSurface{}
	a := newTestApp(t, cfg, driver, surface)
	ch := &fakeChannel{connectErr: assert.AnError}
	a.channel = ch

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		code, _ := a.Run(ctx)
		done <- code
	}()

	require.Eventually(t, func() bool { return ch.connects.Load() > 0 }, 2*time.Second, 10*time.Millisecond)

	// Still running: the display side stays functional without the channel.
	select {
	case <-done:
		t.Fatal("run exited on channel failure")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	assert.Equal(t, 0, <-done)
}

func TestNewRequiresSurface(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg, &fakeDriver{}, nil, logrus.New())
	assert.Error(t, err)
}
