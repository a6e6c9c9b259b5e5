// Package sale turns raw inbound channel payloads into animation triggers.
// The decoder owns the debounce window, so a burst of notifications plays at
// most one animation per interval; everything past the debounce check is
// cheap enough to run on the channel's dispatch goroutine.
package sale

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/model"
)

// DefaultDebounce is the minimum interval between triggers.
const DefaultDebounce = 1000 * time.Millisecond

// Enqueuer is the animation queue's producer side.
type Enqueuer interface {
	TryEnqueue(ev model.SaleEvent) error
}

// payload is the upstream message shape. Everything except Type is optional.
type payload struct {
	Type     string  `json:"type"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	EventID  string  `json:"eventId"`
}

// Handler decodes, filters, and debounces sale notifications.
type Handler struct {
	queue    Enqueuer
	interval time.Duration

	// triggerOnParseError keeps the integration-era behavior of playing a
	// default animation for payloads that are not JSON at all.
	triggerOnParseError bool

	now  func() time.Time
	last time.Time
	log  *logrus.Entry
}

func NewHandler(queue Enqueuer, interval time.Duration, triggerOnParseError bool, logger *logrus.Logger) *Handler {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	return &Handler{
		queue:               queue,
		interval:            interval,
		triggerOnParseError: triggerOnParseError,
		now:                 time.Now,
		log:                 logger.WithField("component", "sale"),
	}
}

// Handle processes one raw payload. It never blocks beyond JSON parsing plus
// a non-blocking enqueue; the debounce timestamp only advances on a trigger.
func (h *Handler) Handle(raw []byte) {
	now := h.now()
	if !h.last.IsZero() && now.Sub(h.last) < h.interval {
		h.log.WithField("since_last", now.Sub(h.last)).Debug("debounced, dropping message")
		return
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		if !h.triggerOnParseError {
			h.log.WithError(err).Warn("unparseable payload dropped")
			return
		}
		// Tolerated during integration bring-up: unparseable input still
		// celebrates with a default event.
		h.log.WithError(err).Warn("unparseable payload, triggering default event")
		h.trigger(now, model.SaleEvent{})
		return
	}

	if p.Type != "sale" {
		return
	}
	if p.Status != "" && p.Status != "succeeded" {
		h.log.WithField("status", p.Status).Debug("non-succeeded sale ignored")
		return
	}

	ev := model.SaleEvent{
		AmountMinorUnits: int64(p.Amount),
		Currency:         p.Currency,
		EventID:          p.EventID,
	}.Truncate()
	h.trigger(now, ev)
}

func (h *Handler) trigger(now time.Time, ev model.SaleEvent) {
	h.last = now
	if err := h.queue.TryEnqueue(ev); err != nil {
		h.log.WithError(err).WithField("event_id", ev.EventID).Warn("animation queue full, event dropped")
		return
	}
	h.log.WithFields(logrus.Fields{
		"event_id": ev.EventID,
		"amount":   ev.AmountMinorUnits,
		"currency": ev.Currency,
	}).Info("sale event queued")
}
