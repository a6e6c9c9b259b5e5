package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultDeviceID   = "moneybot-dev"
	DefaultStorePath  = "/var/lib/moneybotd/store.json"
	DefaultBrokerURL  = "ssl://mqtt.moneybot.example:8883"
	DefaultSSIDPrefix = "MoneyBot-"
)

// MQTTConfig defines the secure channel connection settings.
type MQTTConfig struct {
	Broker   string `json:"broker" envconfig:"MONEYBOT_MQTT_BROKER"`
	CAFile   string `json:"ca_file" envconfig:"MONEYBOT_MQTT_CA_FILE"`
	CertFile string `json:"cert_file" envconfig:"MONEYBOT_MQTT_CERT_FILE"`
	KeyFile  string `json:"key_file" envconfig:"MONEYBOT_MQTT_KEY_FILE"`
}

// PortalConfig defines the captive-portal subsystem settings.
type PortalConfig struct {
	// Address is the IPv4 the DNS responder hands out and the HTTP form
	// binds to while provisioning.
	Address        string `json:"address" envconfig:"MONEYBOT_PORTAL_ADDRESS"`
	DNSListen      string `json:"dns_listen" envconfig:"MONEYBOT_PORTAL_DNS_LISTEN"`
	HTTPListen     string `json:"http_listen" envconfig:"MONEYBOT_PORTAL_HTTP_LISTEN"`
	SSIDPrefix     string `json:"ssid_prefix" envconfig:"MONEYBOT_PORTAL_SSID_PREFIX"`
	RestartDelayMS int    `json:"restart_delay_ms" envconfig:"MONEYBOT_PORTAL_RESTART_DELAY_MS"`
}

// WifiConfig defines station association policy.
type WifiConfig struct {
	Interface        string `json:"interface" envconfig:"MONEYBOT_WIFI_INTERFACE"`
	Attempts         int    `json:"attempts" envconfig:"MONEYBOT_WIFI_ATTEMPTS"`
	ConnectTimeoutMS int    `json:"connect_timeout_ms" envconfig:"MONEYBOT_WIFI_CONNECT_TIMEOUT_MS"`
}

// SaleConfig defines decoder and animation queue policy.
type SaleConfig struct {
	DebounceMS    int `json:"debounce_ms" envconfig:"MONEYBOT_SALE_DEBOUNCE_MS"`
	QueueCapacity int `json:"queue_capacity" envconfig:"MONEYBOT_SALE_QUEUE_CAPACITY"`
	// TriggerOnParseError keeps the integration-era tolerance of playing a
	// default animation when a payload is not valid JSON.
	TriggerOnParseError *bool `json:"trigger_on_parse_error" envconfig:"MONEYBOT_SALE_TRIGGER_ON_PARSE_ERROR"`
}

// LEDConfig defines the RGB status LED GPIO lines.
type LEDConfig struct {
	Chip     string `json:"chip" envconfig:"MONEYBOT_LED_CHIP"`
	RedPin   int    `json:"red_pin" envconfig:"MONEYBOT_LED_RED_PIN"`
	GreenPin int    `json:"green_pin" envconfig:"MONEYBOT_LED_GREEN_PIN"`
	BluePin  int    `json:"blue_pin" envconfig:"MONEYBOT_LED_BLUE_PIN"`
}

// NTPConfig defines startup time sync policy.
type NTPConfig struct {
	Host     string `json:"host" envconfig:"MONEYBOT_NTP_HOST"`
	Attempts int    `json:"attempts" envconfig:"MONEYBOT_NTP_ATTEMPTS"`
}

// Configuration is the root configuration, loaded from an optional JSON file
// and then overridden from the environment.
type Configuration struct {
	LogLevel  string       `json:"log_level" envconfig:"MONEYBOT_LOG_LEVEL"`
	DeviceID  string       `json:"device_id" envconfig:"MONEYBOT_DEVICE_ID"`
	StorePath string       `json:"store_path" envconfig:"MONEYBOT_STORE_PATH"`
	MQTT      MQTTConfig   `json:"mqtt"`
	Portal    PortalConfig `json:"portal"`
	Wifi      WifiConfig   `json:"wifi"`
	Sale      SaleConfig   `json:"sale"`
	LED       LEDConfig    `json:"led"`
	NTP       NTPConfig    `json:"ntp"`
}

// Load reads the configuration file if it exists, applies environment
// overrides, then fills defaults. A missing file is not an error; a present
// but unparseable file is.
func Load(path string) (*Configuration, error) {
	var cnf Configuration

	_, err := os.Stat(path)
	if err == nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cnf); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config file: %w", err)
	}

	if err := envconfig.Process("", &cnf); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}

	cnf.applyDefaults()
	return &cnf, nil
}

func (c *Configuration) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DeviceID == "" {
		c.DeviceID = DefaultDeviceID
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = DefaultBrokerURL
	}
	if c.Portal.Address == "" {
		c.Portal.Address = "192.168.4.1"
	}
	if c.Portal.DNSListen == "" {
		c.Portal.DNSListen = ":53"
	}
	if c.Portal.HTTPListen == "" {
		c.Portal.HTTPListen = ":80"
	}
	if c.Portal.SSIDPrefix == "" {
		c.Portal.SSIDPrefix = DefaultSSIDPrefix
	}
	if c.Portal.RestartDelayMS <= 0 {
		c.Portal.RestartDelayMS = 1500
	}
	if c.Wifi.Interface == "" {
		c.Wifi.Interface = "wlan0"
	}
	if c.Wifi.Attempts <= 0 {
		c.Wifi.Attempts = 2
	}
	if c.Wifi.ConnectTimeoutMS <= 0 {
		c.Wifi.ConnectTimeoutMS = 10000
	}
	if c.Sale.DebounceMS <= 0 {
		c.Sale.DebounceMS = 1000
	}
	if c.Sale.QueueCapacity <= 0 {
		c.Sale.QueueCapacity = 5
	}
	if c.Sale.TriggerOnParseError == nil {
		t := true
		c.Sale.TriggerOnParseError = &t
	}
	if c.LED.Chip == "" {
		c.LED.Chip = "gpiochip0"
	}
	if c.NTP.Host == "" {
		c.NTP.Host = "pool.ntp.org"
	}
	if c.NTP.Attempts <= 0 {
		c.NTP.Attempts = 3
	}
}
