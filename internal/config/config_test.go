package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cnf, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "info", cnf.LogLevel)
	assert.Equal(t, DefaultDeviceID, cnf.DeviceID)
	assert.Equal(t, "192.168.4.1", cnf.Portal.Address)
	assert.Equal(t, 2, cnf.Wifi.Attempts)
	assert.Equal(t, 1000, cnf.Sale.DebounceMS)
	assert.Equal(t, 5, cnf.Sale.QueueCapacity)
	assert.Equal(t, 3, cnf.NTP.Attempts)
	require.NotNil(t, cnf.Sale.TriggerOnParseError)
	assert.True(t, *cnf.Sale.TriggerOnParseError)
}

func TestLoadFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"device_id":"till-7","mqtt":{"broker":"ssl://broker.local:8883"},"sale":{"debounce_ms":250}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cnf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "till-7", cnf.DeviceID)
	assert.Equal(t, "ssl://broker.local:8883", cnf.MQTT.Broker)
	assert.Equal(t, 250, cnf.Sale.DebounceMS)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"device_id":"from-file"}`), 0o644))

	t.Setenv("MONEYBOT_DEVICE_ID", "from-env")
	t.Setenv("MONEYBOT_WIFI_ATTEMPTS", "4")

	cnf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cnf.DeviceID)
	assert.Equal(t, 4, cnf.Wifi.Attempts)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
