package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssociateArgs(t *testing.T) {
	args := associateArgs("wlan0", "Home", "secret")
	assert.Equal(t, []string{"device", "wifi", "connect", "Home", "password", "secret", "ifname", "wlan0"}, args)
}

func TestAssociateArgsOpenNetwork(t *testing.T) {
	args := associateArgs("wlan0", "OpenNet", "")
	assert.Equal(t, []string{"device", "wifi", "connect", "OpenNet", "ifname", "wlan0"}, args)
}

func TestAccessPointArgs(t *testing.T) {
	args := accessPointArgs("wlan0", "MoneyBot-0EF1", "192.168.4.1")

	assert.Contains(t, args, "MoneyBot-0EF1")
	assert.Contains(t, args, apConnectionName)
	assert.Contains(t, args, "192.168.4.1/24")
	assert.Contains(t, args, "ap")
}
