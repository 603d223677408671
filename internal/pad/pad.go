// Package pad implements the ControllerPorts bit-serial bus described
// in spec.md §4.9: a single 8-bit-at-a-time SIO-style link shared by a
// controller and a memory card per port. It follows the Non-goals'
// "deep class hierarchy" redesign note from spec.md §9 -- a tagged
// Device variant exposing one Communicate operation instead of the
// original_source's separate Controller/MemoryCard classes reached
// through a common base -- grounded on original_source
// ControllerPorts.h/Controller.h/MemoryCard.h for the register layout
// and transfer timing.
package pad

import (
	"log/slog"

	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/sched"
)

// Device is any peripheral attached to a controller port: a
// Controller or a MemoryCard. Communicate exchanges one byte and
// reports whether the device asserts /ACK afterward; Deselect resets
// its internal state machine when the port is no longer selected.
type Device interface {
	Communicate(in byte) (out byte, ack bool)
	Deselect()
}

type state int

const (
	stateIdle state = iota
	stateTransferring
	stateAckPending
	stateAckLow
)

const (
	ackLowCycles = 100 // per spec.md §4.9
	highZByte    = 0xFF
)

// Status register bit positions, per original_source
// ControllerPorts.h's Status union.
const (
	statusTxReadyStarted  = 0
	statusRxFifoNotEmpty  = 1
	statusTxReadyFinished = 2
	statusRxParityError   = 3
	statusAckInputLow     = 7
	statusInterruptReq    = 9
	statusBaudrateTimer   = 11 // 21 bits
)

// Control register bit positions, per original_source
// ControllerPorts.h's Control union.
const (
	ctrlTxEnable           = 0
	ctrlSelectLow          = 1
	ctrlRxEnable           = 2
	ctrlAcknowledge        = 4
	ctrlReset              = 6
	ctrlRxInterruptMode    = 8 // 2 bits
	ctrlTxInterruptEnable  = 10
	ctrlRxInterruptEnable  = 11
	ctrlAckInterruptEnable = 12
	ctrlDesiredSlot        = 13

	controlWriteMask = 0x3F7F
	modeWriteMask    = 0x013F
)

// ControllerPorts is the top-level peripheral; it owns no devices
// (they are attached via SetController/SetMemoryCard non-owning
// references per spec.md §5) and drives the Idle/Transferring/
// AckPending/AckLow state machine over a scheduled transfer event.
type ControllerPorts struct {
	irqCtl *irq.Control
	sched  *sched.Manager

	xferEvt  *sched.Event
	ackEvt   *sched.Event

	mode    uint16
	control uint16
	baud    uint16

	st state

	controllers [2]Device
	memCards    [2]Device
	current     Device

	txBuffer byte
	txFull   bool
	rxBuffer byte
	rxFull   bool

	ackAsserted bool
	interruptRequest bool

	log *slog.Logger
}

// New constructs a reset ControllerPorts.
func New(irqCtl *irq.Control, scheduler *sched.Manager) *ControllerPorts {
	p := &ControllerPorts{
		irqCtl: irqCtl,
		sched:  scheduler,
		log:    slog.With("component", "pad"),
	}
	p.xferEvt = scheduler.CreateEvent("pad-transfer", p.onTransferComplete)
	p.ackEvt = scheduler.CreateEvent("pad-ack", p.onAckComplete)
	p.Reset()
	return p
}

// SetController/SetMemoryCard attach a device to port slot (0 or 1).
// Either may be nil (no device present).
func (p *ControllerPorts) SetController(slot int, d Device) { p.controllers[slot] = d }
func (p *ControllerPorts) SetMemoryCard(slot int, d Device) { p.memCards[slot] = d }

// Reset clears all registers and cancels any in-flight transfer.
func (p *ControllerPorts) Reset() {
	p.xferEvt.Cancel()
	p.ackEvt.Cancel()
	p.mode = 0
	p.control = 0
	p.baud = 0
	p.st = stateIdle
	p.current = nil
	p.txBuffer = 0
	p.txFull = false
	p.rxBuffer = 0
	p.rxFull = false
	p.ackAsserted = false
	p.interruptRequest = false
	for _, d := range p.controllers {
		if d != nil {
			d.Deselect()
		}
	}
	for _, d := range p.memCards {
		if d != nil {
			d.Deselect()
		}
	}
}

// ReadData pops the received byte (0xFF if none has arrived yet,
// matching the HighZ idle level of the data line).
func (p *ControllerPorts) ReadData() uint32 {
	if !p.rxFull {
		return 0xFF
	}
	v := p.rxBuffer
	p.rxFull = false
	return uint32(v)
}

// WriteData buffers a TX byte and, if TX is enabled and the bus is
// idle, schedules the transfer completion event baudrateReload*8
// cycles from now, per spec.md §4.9.
func (p *ControllerPorts) WriteData(value uint32) {
	p.txBuffer = byte(value)
	p.txFull = true
	p.tryTransfer()
}

func (p *ControllerPorts) tryTransfer() {
	if p.st != stateIdle || !p.txFull || p.control&(1<<ctrlTxEnable) == 0 {
		return
	}
	p.txFull = false
	p.st = stateTransferring
	p.xferEvt.Schedule(sched.Cycle(p.transferCycles()))
}

func (p *ControllerPorts) transferCycles() uint32 {
	return uint32(p.baud) * 8 // ignores reload factor/character length, per original_source
}

// onTransferComplete dispatches the buffered byte. The first byte of
// a transfer is the bus address (0x01 selects the controller, 0x81
// the memory card in the currently selected slot) and is consumed
// here rather than forwarded to the device; every subsequent byte is
// handed to the selected device's Communicate.
func (p *ControllerPorts) onTransferComplete(cycles sched.Cycle) {
	txByte := p.txBuffer

	var out byte = highZByte
	var ack bool

	if p.current == nil {
		slot := 0
		if p.control&(1<<ctrlDesiredSlot) != 0 {
			slot = 1
		}
		switch txByte {
		case 0x01:
			p.current = p.controllers[slot]
		case 0x81:
			p.current = p.memCards[slot]
		}
		if p.current != nil {
			ack = true
		} else {
			out = highZByte
		}
	} else {
		out, ack = p.current.Communicate(txByte)
	}

	p.rxBuffer = out
	p.rxFull = true
	p.st = stateIdle

	if ack {
		p.st = stateAckLow
		p.ackAsserted = true
		p.ackEvt.Schedule(sched.Cycle(ackLowCycles))
		if p.control&(1<<ctrlAckInterruptEnable) != 0 {
			p.interruptRequest = true
			p.irqCtl.Raise(irq.ControllerMemCard)
		}
	} else {
		p.current = nil
	}

	p.tryTransfer()
}

func (p *ControllerPorts) onAckComplete(cycles sched.Cycle) {
	p.ackAsserted = false
	p.st = stateIdle
	p.tryTransfer()
}

// ReadMode/ReadControl/ReadBaudrateReloadValue implement the 16-bit
// register reads.
func (p *ControllerPorts) ReadMode() uint16             { return p.mode }
func (p *ControllerPorts) ReadControl() uint16          { return p.control }
func (p *ControllerPorts) ReadBaudrateReloadValue() uint16 { return p.baud }

// WriteMode sets the mode register (masked to its writable bits).
func (p *ControllerPorts) WriteMode(value uint16) { p.mode = value & modeWriteMask }

// WriteBaudrateReloadValue sets the baudrate timer reload value. Per
// original_source, writing this register also reloads the timer
// immediately; the timer itself is not separately modeled here since
// every testable property only depends on the per-transfer cycle
// count derived from this value.
func (p *ControllerPorts) WriteBaudrateReloadValue(value uint16) { p.baud = value }

// WriteControl applies the control register, honoring the
// acknowledge and reset side effects documented for the JOY_CTRL
// register: acknowledge clears the latched interrupt request, and
// reset restores power-on state.
func (p *ControllerPorts) WriteControl(value uint32) {
	v := uint16(value) & controlWriteMask
	if v&(1<<ctrlReset) != 0 {
		p.Reset()
		return
	}
	if v&(1<<ctrlAcknowledge) != 0 {
		p.interruptRequest = false
	}
	if v&(1<<ctrlSelectLow) == 0 {
		// deselecting the port resets whichever device was mid-transfer.
		if p.current != nil {
			p.current.Deselect()
			p.current = nil
		}
	}
	p.control = v
}

// ReadStatus builds the 32-bit JOY_STAT register.
func (p *ControllerPorts) ReadStatus() uint32 {
	var v uint32
	v |= 1 << statusTxReadyStarted
	if p.rxFull {
		v |= 1 << statusRxFifoNotEmpty
	}
	v |= 1 << statusTxReadyFinished
	if p.ackAsserted {
		v |= 1 << statusAckInputLow
	}
	if p.interruptRequest {
		v |= 1 << statusInterruptReq
	}
	return v
}

// ReadRegister/WriteRegister implement memmap.Peripheral over the
// Data/Status/Mode/Control/Baudrate register block at 0x1F801040.
func (p *ControllerPorts) ReadRegister(offset uint32, width int) uint32 {
	switch offset {
	case 0x00:
		return p.ReadData()
	case 0x04:
		return p.ReadStatus()
	case 0x08:
		return uint32(p.ReadMode())
	case 0x0A:
		return uint32(p.ReadControl())
	case 0x0E:
		return uint32(p.ReadBaudrateReloadValue())
	default:
		return 0
	}
}

func (p *ControllerPorts) WriteRegister(offset uint32, width int, value uint32) {
	switch offset {
	case 0x00:
		p.WriteData(value)
	case 0x08:
		p.WriteMode(uint16(value))
	case 0x0A:
		p.WriteControl(value)
	case 0x0E:
		p.WriteBaudrateReloadValue(uint16(value))
	}
}
