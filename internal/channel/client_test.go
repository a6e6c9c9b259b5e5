package channel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneybot/moneybotd/internal/model"
)

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "moneybot/till-7/cmd", CommandTopic("till-7"))
	assert.Equal(t, "moneybot/till-7/status", StatusTopic("till-7"))
}

func writeBlob(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o600))
	return path
}

func newClientWithBlobs(t *testing.T, caSize, certSize, keySize int) *Client {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Broker:   "ssl://localhost:8883",
		CAFile:   writeBlob(t, dir, "ca.pem", caSize),
		CertFile: writeBlob(t, dir, "cert.pem", certSize),
		KeyFile:  writeBlob(t, dir, "key.pem", keySize),
		DeviceID: "till-7",
	}
	return NewClient(cfg, func(model.ConnectionState) {}, func([]byte) {}, logrus.New())
}

func TestUndersizedCredentialsRejected(t *testing.T) {
	tests := []struct {
		name          string
		ca, cert, key int
	}{
		{"tiny ca", 16, 512, 512},
		{"tiny cert", 512, 16, 512},
		{"tiny key", 512, 512, 16},
		{"boundary size rejected", 128, 512, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClientWithBlobs(t, tt.ca, tt.cert, tt.key)
			_, err := c.tlsConfig()
			assert.ErrorIs(t, err, ErrCredentials)
		})
	}
}

func TestMissingCredentialFileRejected(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CAFile:   filepath.Join(dir, "absent-ca.pem"),
		CertFile: writeBlob(t, dir, "cert.pem", 512),
		KeyFile:  writeBlob(t, dir, "key.pem", 512),
	}
	c := NewClient(cfg, func(model.ConnectionState) {}, func([]byte) {}, logrus.New())

	_, err := c.tlsConfig()
	assert.ErrorIs(t, err, ErrCredentials)
}

func TestGarbagePEMRejected(t *testing.T) {
	// Large enough to pass the size gate, still not a certificate.
	c := newClientWithBlobs(t, 512, 512, 512)

	_, err := c.tlsConfig()
	assert.ErrorIs(t, err, ErrCredentials)
}
