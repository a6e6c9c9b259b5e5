// Package display is the boundary to the round-LCD renderer. The daemon
// treats rendering as a capability: phase entry points plus a status tint.
// The actual drawing lives behind Surface.
package display

import (
	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/model"
	"github.com/moneybot/moneybotd/internal/portal"
	"github.com/moneybot/moneybotd/internal/status"
)

// Surface is the render target. Callers serialize access; implementations
// do not need their own locking.
type Surface interface {
	// SetStatusColor tints the face indicator (eyes, antenna).
	SetStatusColor(c status.Color)
	// PlayCelebration enters the celebratory visual state (token rain,
	// open mouth) for the given event.
	PlayCelebration(ev model.SaleEvent)
	// PlaySuccess enters the success visual state.
	PlaySuccess()
	// Reset returns to the idle face.
	Reset()
	// ShowProvisioning renders the join QR (or its text fallback) and the
	// portal address.
	ShowProvisioning(scr portal.Screen)
}

// LogSurface is a headless Surface that only logs transitions. It stands in
// for the panel during development and when the daemon runs without one.
type LogSurface struct {
	log *logrus.Entry
}

func NewLogSurface(logger *logrus.Logger) *LogSurface {
	return &LogSurface{log: logger.WithField("component", "display")}
}

func (s *LogSurface) SetStatusColor(c status.Color) {
	s.log.WithFields(logrus.Fields{"r": c.R, "g": c.G, "b": c.B}).Debug("status tint")
}

func (s *LogSurface) PlayCelebration(ev model.SaleEvent) {
	s.log.WithFields(logrus.Fields{
		"event_id": ev.EventID,
		"amount":   ev.AmountMinorUnits,
		"currency": ev.Currency,
	}).Info("CHA-CHING")
}

func (s *LogSurface) PlaySuccess() {
	s.log.Info("sale celebrated")
}

func (s *LogSurface) Reset() {
	s.log.Debug("idle face")
}

func (s *LogSurface) ShowProvisioning(scr portal.Screen) {
	entry := s.log.WithFields(logrus.Fields{"ssid": scr.SSID, "address": scr.Address})
	if scr.QRFailed {
		entry.Warn("QR Error, showing address only")
		return
	}
	entry.Info("provisioning screen up")
}
