//go:build rp2040

package pio

// PIO step pulse generation using the tinygo-org/pio package.
// Command word format:
//
//	Bits 0-15:  pulse count minus one
//	Bits 16-23: delay cycles between pulses
//	Bit 24:     direction pin level
import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// stepperPIOOrigin is fixed because the program uses absolute jump targets
const stepperPIOOrigin = 0

var errStepPolarity = errors.New("pio: step polarity differs from the program loaded on this block")

// buildStepperProgram assembles the pulse program. active is the step pin
// level during a pulse.
func buildStepperProgram(active bool) []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	on, off := uint8(1), uint8(0)
	if !active {
		on, off = 0, 1
	}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),   // 1: out x, 16 (pulse count)
		asm.Out(rp2pio.OutDestY, 8).Encode(),    // 2: out y, 8 (delay cycles)
		asm.Out(rp2pio.OutDestPins, 1).Encode(), // 3: out pins, 1 (direction)
		// step_loop:
		asm.Set(rp2pio.SetDestPins, on).Delay(7).Encode(), // 4: set pins, on [7]
		asm.Set(rp2pio.SetDestPins, off).Encode(),         // 5: set pins, off
		// delay_loop:
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 7: jmp x--, 4
		// .wrap
	}
}

// loadedProgram tracks the pulse program of each PIO block. All state
// machines of a block share it.
type loadedProgram struct {
	ok     bool
	active bool
	offset uint8
	length uint8
}

var programs [2]loadedProgram

// PIOStepperBackend drives a stepper from one PIO state machine
type PIOStepperBackend struct {
	pio       *rp2pio.PIO
	pioNum    uint8
	sm        rp2pio.StateMachine
	stepPin   machine.Pin
	dirPin    machine.Pin
	invertDir bool
	dirLevel  bool
}

// NewPIOStepperBackend creates a backend on PIO block pioNum (0 or 1),
// state machine smNum (0-3)
func NewPIOStepperBackend(pioNum, smNum uint8) *PIOStepperBackend {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &PIOStepperBackend{
		pio:    pioHW,
		pioNum: pioNum,
		sm:     pioHW.StateMachine(smNum),
	}
}

// Init loads the pulse program if needed and claims the pins
func (b *PIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)
	b.invertDir = invertDir
	b.dirLevel = invertDir

	prog := &programs[b.pioNum]
	if !prog.ok {
		program := buildStepperProgram(!invertStep)
		offset, err := b.pio.AddProgram(program, stepperPIOOrigin)
		if err != nil {
			return err
		}
		*prog = loadedProgram{ok: true, active: !invertStep, offset: offset, length: uint8(len(program))}
	} else if prog.active == invertStep {
		return errStepPolarity
	}

	b.sm.TryClaim()
	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	// shift right, explicit pull
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(prog.offset+prog.length-1, prog.offset)
	cfg.SetClkDivIntFrac(1000, 0)

	// pin directions only take effect after Init
	b.sm.Init(prog.offset, cfg)
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, invertStep)
	b.sm.SetPinsConsecutive(b.dirPin, 1, b.dirLevel)
	b.sm.SetEnabled(true)
	return nil
}

// Step queues a single pulse with the current direction
func (b *PIOStepperBackend) Step() {
	cmd := uint32(1) << 16
	if b.dirLevel {
		cmd |= 1 << 24
	}
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(cmd)
}

// SetDirection sets the direction for the following pulses. true is reverse.
func (b *PIOStepperBackend) SetDirection(dir bool) {
	b.dirLevel = dir != b.invertDir
}

// Stop discards queued pulses
func (b *PIOStepperBackend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetEnabled(true)
}

func (b *PIOStepperBackend) GetName() string {
	return "PIO"
}
