// Package channel wraps the authenticated publish/subscribe session to the
// cloud broker. Reconnection policy stays with the underlying client; this
// layer only validates credentials, subscribes the command topic, and
// forwards inbound payloads to the decoder.
package channel

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/model"
)

// minCredentialSize is the smallest plausible PEM blob; anything under it is
// a misconfiguration, not a certificate.
const minCredentialSize = 128

// ErrCredentials means the trust anchor, device certificate, or private key
// is missing or undersized. Channel init aborts; the rest of the device
// keeps running.
var ErrCredentials = errors.New("channel credential material missing or undersized")

// StatusSink receives connection-state transitions.
type StatusSink func(model.ConnectionState)

// MessageHandler receives each inbound command payload.
type MessageHandler func(payload []byte)

// Config is the secure channel configuration.
type Config struct {
	Broker   string
	CAFile   string
	CertFile string
	KeyFile  string
	DeviceID string
}

// CommandTopic is the device's inbound topic.
func CommandTopic(deviceID string) string {
	return fmt.Sprintf("moneybot/%s/cmd", deviceID)
}

// StatusTopic carries the device's retained online/offline announcement.
func StatusTopic(deviceID string) string {
	return fmt.Sprintf("moneybot/%s/status", deviceID)
}

// Client owns the broker session.
type Client struct {
	cfg       Config
	status    StatusSink
	onMessage MessageHandler
	client    mqtt.Client
	log       *logrus.Entry
}

func NewClient(cfg Config, status StatusSink, onMessage MessageHandler, logger *logrus.Logger) *Client {
	return &Client{
		cfg:       cfg,
		status:    status,
		onMessage: onMessage,
		log:       logger.WithField("component", "channel"),
	}
}

// Connect validates credential material, then opens the session. The broker
// client owns automatic reconnection with its own backoff; on connection
// loss the status reverts to WifiConnected, not Disconnected.
func (c *Client) Connect() error {
	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return err
	}

	commandTopic := CommandTopic(c.cfg.DeviceID)
	statusTopic := StatusTopic(c.cfg.DeviceID)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(fmt.Sprintf("moneybot-%s-%.8s", c.cfg.DeviceID, uuid.NewString()))
	opts.SetTLSConfig(tlsCfg)
	opts.SetAutoReconnect(true)
	opts.SetWill(statusTopic, "offline", 1, true)

	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		c.log.Info("channel connected")
		if token := cl.Subscribe(commandTopic, 1, c.dispatch); token.Wait() && token.Error() != nil {
			c.log.WithError(token.Error()).Error("command topic subscribe failed")
			return
		}
		cl.Publish(statusTopic, 1, true, "online")
		c.status(model.ChannelConnected)
	})
	opts.SetConnectionLostHandler(func(cl mqtt.Client, err error) {
		c.log.WithError(err).Warn("channel lost, client will reconnect")
		c.status(model.WifiConnected)
	})

	c.status(model.ChannelConnecting)
	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("channel connect: %w", token.Error())
	}
	return nil
}

func (c *Client) dispatch(_ mqtt.Client, msg mqtt.Message) {
	c.onMessage(msg.Payload())
}

// Publish sends a payload on topic, waiting for the ack.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Disconnect announces offline and closes the session.
func (c *Client) Disconnect() {
	if c.client == nil {
		return
	}
	c.Publish(StatusTopic(c.cfg.DeviceID), 1, true, []byte("offline"))
	c.client.Disconnect(250)
}

// tlsConfig loads and size-checks the three credential blobs before building
// the mutual-TLS configuration.
func (c *Client) tlsConfig() (*tls.Config, error) {
	blobs := map[string]string{
		"root ca":     c.cfg.CAFile,
		"certificate": c.cfg.CertFile,
		"private key": c.cfg.KeyFile,
	}
	data := map[string][]byte{}
	for name, path := range blobs {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrCredentials, name, err)
		}
		if len(b) <= minCredentialSize {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrCredentials, name, len(b))
		}
		data[name] = b
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data["root ca"]) {
		return nil, fmt.Errorf("%w: root ca not parseable", ErrCredentials)
	}
	pair, err := tls.X509KeyPair(data["certificate"], data["private key"])
	if err != nil {
		return nil, fmt.Errorf("%w: key pair: %v", ErrCredentials, err)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
