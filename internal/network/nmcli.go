package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
)

// apConnectionName is the NetworkManager profile used for the provisioning
// access point; deleted when provisioning ends.
const apConnectionName = "moneybot-setup"

// NMCLIDriver drives the radio through NetworkManager's CLI.
type NMCLIDriver struct {
	iface     string
	apAddress string
}

func NewNMCLIDriver(iface, apAddress string) *NMCLIDriver {
	return &NMCLIDriver{iface: iface, apAddress: apAddress}
}

func (d *NMCLIDriver) Associate(ctx context.Context, ssid, passphrase string) error {
	out, err := exec.CommandContext(ctx, "nmcli", associateArgs(d.iface, ssid, passphrase)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("nmcli connect: %w: %s", err, out)
	}
	return nil
}

func (d *NMCLIDriver) StartAccessPoint(ssid string) error {
	if out, err := exec.Command("nmcli", accessPointArgs(d.iface, ssid, d.apAddress)...).CombinedOutput(); err != nil {
		return fmt.Errorf("nmcli add ap profile: %w: %s", err, out)
	}
	if out, err := exec.Command("nmcli", "connection", "up", apConnectionName).CombinedOutput(); err != nil {
		return fmt.Errorf("nmcli up ap: %w: %s", err, out)
	}
	return nil
}

func (d *NMCLIDriver) StopAccessPoint() error {
	if out, err := exec.Command("nmcli", "connection", "delete", apConnectionName).CombinedOutput(); err != nil {
		return fmt.Errorf("nmcli delete ap: %w: %s", err, out)
	}
	return nil
}

func (d *NMCLIDriver) HardwareAddr() (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(d.iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", d.iface, err)
	}
	return ifi.HardwareAddr, nil
}

func associateArgs(iface, ssid, passphrase string) []string {
	args := []string{"device", "wifi", "connect", ssid}
	if passphrase != "" {
		args = append(args, "password", passphrase)
	}
	return append(args, "ifname", iface)
}

func accessPointArgs(iface, ssid, address string) []string {
	return []string{
		"connection", "add",
		"type", "wifi",
		"ifname", iface,
		"con-name", apConnectionName,
		"autoconnect", "no",
		"ssid", ssid,
		"802-11-wireless.mode", "ap",
		"802-11-wireless.band", "bg",
		"ipv4.method", "shared",
		"ipv4.addresses", address + "/24",
	}
}
