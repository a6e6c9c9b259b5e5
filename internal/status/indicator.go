package status

import (
	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/model"
)

// Indicator pushes the color for each state transition to the LED and the
// face. Invoked synchronously from whichever component changed the state,
// never polled.
type Indicator struct {
	led  LED
	face FaceSink
	log  *logrus.Entry
}

func NewIndicator(led LED, face FaceSink, logger *logrus.Logger) *Indicator {
	return &Indicator{
		led:  led,
		face: face,
		log:  logger.WithField("component", "status"),
	}
}

// Update applies the color for the new state.
func (i *Indicator) Update(s model.ConnectionState) {
	c := ColorFor(s)
	i.log.WithField("state", s.String()).Debug("state transition")
	if err := i.led.Set(c); err != nil {
		i.log.WithError(err).Warn("led update failed")
	}
	if i.face != nil {
		i.face.SetStatusColor(c)
	}
}
