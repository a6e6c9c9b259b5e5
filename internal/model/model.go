package model

// ConnectionState tracks where the device sits in the path from powered-on
// to receiving sale events. There is exactly one current value for the
// process; transitions are pushed by the network state machine and the
// secure channel client, never polled.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	WifiConnecting
	WifiProvisioning
	WifiConnected
	ChannelConnecting
	ChannelConnected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case WifiConnecting:
		return "wifi_connecting"
	case WifiProvisioning:
		return "wifi_provisioning"
	case WifiConnected:
		return "wifi_connected"
	case ChannelConnecting:
		return "channel_connecting"
	case ChannelConnected:
		return "channel_connected"
	default:
		return "unknown"
	}
}

// Field limits for decoded sale payloads. Values longer than these are
// truncated, never rejected.
const (
	MaxCurrencyLen = 7
	MaxEventIDLen  = 63
)

// SaleEvent is a decoded payment notification. Value semantics: copied into
// the animation queue, consumed and discarded by the worker.
type SaleEvent struct {
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
	EventID          string `json:"eventId"`
}

// Truncate clamps string fields to their wire limits.
func (e SaleEvent) Truncate() SaleEvent {
	if len(e.Currency) > MaxCurrencyLen {
		e.Currency = e.Currency[:MaxCurrencyLen]
	}
	if len(e.EventID) > MaxEventIDLen {
		e.EventID = e.EventID[:MaxEventIDLen]
	}
	return e
}
