package status

import (
	"fmt"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// gpioLED drives a common-cathode RGB LED on three GPIO lines. Channels are
// binary, which covers the four indicator colors (red, gold, cyan, green).
type gpioLED struct {
	chip  *gpiod.Chip
	red   *gpiod.Line
	green *gpiod.Line
	blue  *gpiod.Line
}

// NewGPIOLED opens the chip and requests the three lines as outputs, off.
func NewGPIOLED(chipName string, redPin, greenPin, bluePin int) (LED, error) {
	chip, err := gpiod.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open chip %s: %w", chipName, err)
	}

	led := &gpioLED{chip: chip}
	for _, req := range []struct {
		pin  int
		line **gpiod.Line
	}{
		{redPin, &led.red},
		{greenPin, &led.green},
		{bluePin, &led.blue},
	} {
		l, err := chip.RequestLine(req.pin, gpiod.AsOutput(0))
		if err != nil {
			led.Close()
			return nil, fmt.Errorf("request output pin %d: %w", req.pin, err)
		}
		*req.line = l
	}
	return led, nil
}

func (l *gpioLED) Set(c Color) error {
	for _, ch := range []struct {
		line  *gpiod.Line
		value uint8
	}{
		{l.red, c.R},
		{l.green, c.G},
		{l.blue, c.B},
	} {
		v := 0
		if ch.value > 0 {
			v = 1
		}
		if err := ch.line.SetValue(v); err != nil {
			return fmt.Errorf("set led line: %w", err)
		}
	}
	return nil
}

func (l *gpioLED) Close() error {
	for _, line := range []*gpiod.Line{l.red, l.green, l.blue} {
		if line != nil {
			line.Close()
		}
	}
	if l.chip != nil {
		return l.chip.Close()
	}
	return nil
}

// nopLED keeps the daemon running when the LED lines are unavailable.
type nopLED struct{}

func (nopLED) Set(Color) error { return nil }
func (nopLED) Close() error    { return nil }

// NopLED returns a no-op LED sink.
func NopLED() LED { return nopLED{} }
