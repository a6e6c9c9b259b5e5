package portal

import (
	"fmt"
	"net"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// APSSID derives the provisioning access-point name from the device hardware
// address: prefix plus the last two bytes rendered as upper-case hex.
func APSSID(prefix string, hw net.HardwareAddr) string {
	if len(hw) < 2 {
		return prefix + "0000"
	}
	return fmt.Sprintf("%s%02X%02X", prefix, hw[len(hw)-2], hw[len(hw)-1])
}

// JoinDescriptor encodes an open-network join string in the format phone
// cameras understand: WIFI:T:nopass;S:<ssid>;P:;;
func JoinDescriptor(ssid string) string {
	var b strings.Builder
	b.WriteString("WIFI:T:nopass;S:")
	b.WriteString(ssid)
	b.WriteString(";P:;;")
	return b.String()
}

// Screen is everything the display needs to render the provisioning page.
// When QR generation fails, Bitmap is nil and QRFailed is set; the numeric
// address is always present as the fallback.
type Screen struct {
	SSID     string
	Address  string
	Bitmap   [][]bool
	QRFailed bool
}

// BuildScreen assembles the provisioning screen for the given AP name and
// portal address.
func BuildScreen(ssid, address string) Screen {
	scr := Screen{SSID: ssid, Address: address}
	q, err := qrcode.New(JoinDescriptor(ssid), qrcode.Medium)
	if err != nil {
		scr.QRFailed = true
		return scr
	}
	scr.Bitmap = q.Bitmap()
	return scr
}
