//go:build rp2040

package main

import (
	"image/color"
	"machine"
	"time"

	"tinygo.org/x/drivers/ws2812"

	"homefw/standalone/firmware"
)

// statusLEDPin drives a single WS2812 pixel
const statusLEDPin = machine.GPIO16

var statusColors = map[firmware.Status]color.RGBA{
	firmware.StatusIdle:   {G: 0x20},
	firmware.StatusHoming: {R: 0x20, G: 0x18},
	firmware.StatusError:  {R: 0x40},
}

// StatusLED shows the firmware status on an addressable LED
type StatusLED struct {
	dev ws2812.Device
}

func NewStatusLED(pin machine.Pin) *StatusLED {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &StatusLED{dev: ws2812.New(pin)}
}

// Show is installed as the firmware status hook
func (l *StatusLED) Show(s firmware.Status) {
	_ = l.dev.WriteColors([]color.RGBA{statusColors[s]})
}

// Fail blinks the error color forever
func (l *StatusLED) Fail() {
	for {
		l.Show(firmware.StatusError)
		time.Sleep(100 * time.Millisecond)
		_ = l.dev.WriteColors([]color.RGBA{{}})
		time.Sleep(100 * time.Millisecond)
	}
}
