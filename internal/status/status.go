// Package status maps the connection state onto the RGB status LED and the
// face indicator tint. The mapping is a pure function; side effects live in
// the LED sink and the display surface.
package status

import (
	"github.com/moneybot/moneybotd/internal/model"
)

// Color is an RGB triple. LED sinks with binary channels treat any non-zero
// component as on.
type Color struct {
	R, G, B uint8
}

var (
	ColorRed   = Color{R: 255}
	ColorGold  = Color{R: 255, G: 180}
	ColorCyan  = Color{G: 255, B: 255}
	ColorGreen = Color{G: 255}
)

// ColorFor maps a connection state to its indicator color.
func ColorFor(s model.ConnectionState) Color {
	switch s {
	case model.WifiProvisioning:
		return ColorGold
	case model.WifiConnected, model.ChannelConnecting:
		return ColorCyan
	case model.ChannelConnected:
		return ColorGreen
	default:
		return ColorRed
	}
}

// LED is a single status LED.
type LED interface {
	Set(c Color) error
	Close() error
}

// FaceSink receives the face indicator tint; implemented by the display
// surface.
type FaceSink interface {
	SetStatusColor(c Color)
}
