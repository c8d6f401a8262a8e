//go:build rp2040

package main

import (
	"machine"
	"time"

	"homefw/core"
	"homefw/standalone/config"
	"homefw/standalone/firmware"
	"homefw/targets/pio"
)

var manager *firmware.Manager

func main() {
	// clear watchdog state left by a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	core.TimerInit()
	UpdateSystemTime()

	core.SetGPIODriver(NewRPGPIODriver())
	pio.InitSteppers()
	led := NewStatusLED(statusLEDPin)

	var err error
	manager, err = firmware.NewManagerWithConfig(config.DefaultCartesianConfig())
	if err != nil {
		led.Fail()
	}
	manager.SetIdle(idle)
	manager.SetStatusHook(led.Show)
	core.SetDiagWriter(func(line string) {
		manager.SendResponse("// " + line + "\n")
	})

	if err := manager.Initialize(); err != nil {
		flush()
		led.Fail()
	}
	if err := manager.Start(); err != nil {
		led.Fail()
	}

	for {
		func() {
			// a panic drops the current line, not the firmware
			defer func() {
				if r := recover(); r != nil {
					manager.EmergencyStop()
				}
			}()

			for USBAvailable() > 0 {
				b, err := USBRead()
				if err != nil {
					break
				}
				manager.ProcessByte(b)
			}
			idle()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// idle runs between bytes and while homing waits for the queue to drain
func idle() {
	UpdateSystemTime()
	core.ProcessTimers()
	flush()
}

func flush() {
	output := manager.GetOutput()
	for len(output) > 0 {
		n, err := USBWriteBytes(output)
		if err != nil || n == 0 {
			return
		}
		output = output[n:]
	}
}
