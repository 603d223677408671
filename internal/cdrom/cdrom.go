// Package cdrom implements the CD-ROM drive described in spec.md
// §4.6: a two-stage command/response protocol over parameter and
// response FIFOs, a drive state machine, and XA-ADPCM decoding. It
// has no teacher analogue; it is grounded on original_source
// CDRomDrive.h/.cpp for the register/command/status layout, expressed
// with this module's ring.Buffer FIFOs and sched.Event scheduling in
// place of the teacher's Game Boy serial-port idiom (the closest
// teacher analogue for a byte-oriented external device with its own
// event-driven timing).
package cdrom

import (
	"log/slog"

	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/ring"
	"github.com/retrocore/gopsx/internal/sched"
)

const (
	parameterFifoSize = 16
	responseFifoSize  = 16
	numSectorBuffers  = 8
	sectorDataSize    = 2340
)

// Image is the host-facing disc image source (spec.md §6 EXTERNAL
// INTERFACES): raw 2352-byte sector reads by absolute sector index,
// plus TOC metadata. A missing disc is represented by a nil Image.
type Image interface {
	ReadSector(lba uint32) [2352]byte
	TrackCount() int
	TrackStartLBA(track int) uint32
}

// DriveState is the drive's top-level state machine (spec.md §4.6).
type DriveState int

const (
	Idle DriveState = iota
	StartingMotor
	Seeking
	Reading
	Playing
)

// Command identifies a CD-ROM command byte.
type Command byte

const (
	CmdGetStat  Command = 0x01
	CmdSetLoc   Command = 0x02
	CmdPlay     Command = 0x03
	CmdReadN    Command = 0x06
	CmdMotorOn  Command = 0x07
	CmdStop     Command = 0x08
	CmdPause    Command = 0x09
	CmdInit     Command = 0x0A
	CmdSetFilter Command = 0x0D
	CmdSetMode  Command = 0x0E
	CmdGetLocL  Command = 0x10
	CmdGetLocP  Command = 0x11
	CmdGetTD    Command = 0x14
	CmdSeekL    Command = 0x15
	CmdSeekP    Command = 0x16
	CmdTest     Command = 0x19
	CmdGetID    Command = 0x1A
	CmdReadS    Command = 0x1B
	CmdReset    Command = 0x1C
	CmdReadTOC  Command = 0x1E
)

// Interrupt response codes, per spec.md §4.6.
const (
	intReceivedData = 1
	intSecond       = 2
	intFirst        = 3
	intDataEnd      = 4
	intError        = 5
)

// Error codes, per spec.md §4.6.
const (
	errSeekFailed        = 0x04
	errWrongParamCount   = 0x20
	errInvalidCommand    = 0x40
	errCannotRespondYet  = 0x80
)

type pendingInterrupt struct {
	code     byte
	response []byte
}

// Drive is the CD-ROM controller.
type Drive struct {
	image Image

	index byte // status.index: selects which of the 4 register banks index 1.0-3 reads/writes

	paramFifo    *ring.Buffer[byte]
	responseFifo *ring.Buffer[byte]
	dataFifo     *ring.Buffer[byte]
	sectorBuffers [numSectorBuffers][sectorDataSize]byte
	activeSectorBuf int

	interruptEnable byte
	interruptFlags  byte
	queuedInterrupt *pendingInterrupt

	state      DriveState
	statusMotorOn bool
	statusSeek    bool
	statusRead    bool
	statusPlay    bool
	statusError   byte

	mode byte

	pendingCommand    *Command
	pendingCommandArgs []byte
	secondCmd         Command // command whose second-stage response secondEvt will deliver

	seekSector uint32

	filterFile, filterChannel byte

	irqc  *irq.Control
	sched *sched.Manager

	commandEvt *sched.Event
	secondEvt  *sched.Event
	driveEvt   *sched.Event

	log *slog.Logger
}

// New constructs a reset Drive.
func New(irqc *irq.Control, scheduler *sched.Manager) *Drive {
	d := &Drive{
		paramFifo:    ring.New[byte](parameterFifoSize),
		responseFifo: ring.New[byte](responseFifoSize),
		dataFifo:     ring.New[byte](sectorDataSize),
		irqc:         irqc,
		sched:        scheduler,
		log:          slog.With("component", "cdrom"),
	}
	d.commandEvt = scheduler.CreateEvent("cdrom-command", d.onCommandEvent)
	d.secondEvt = scheduler.CreateEvent("cdrom-second-response", d.onSecondResponseEvent)
	d.driveEvt = scheduler.CreateEvent("cdrom-drive", d.onDriveEvent)
	d.Reset()
	return d
}

// SetImage attaches (or detaches, with nil) a disc image. A non-nil
// image is wrapped in a Prefetcher so sequential reads during CD-DA
// playback and streamed data sectors warm ahead of the seek position.
func (d *Drive) SetImage(img Image) {
	if old, ok := d.image.(*Prefetcher); ok {
		old.Close()
	}
	if img != nil {
		img = NewPrefetcher(img)
	}
	d.image = img
}

// Reset restores power-on drive state.
func (d *Drive) Reset() {
	d.index = 0
	d.paramFifo.Reset()
	d.responseFifo.Reset()
	d.dataFifo.Reset()
	d.interruptEnable = 0x1F
	d.interruptFlags = 0
	d.queuedInterrupt = nil
	d.state = Idle
	d.statusMotorOn = false
	d.statusSeek = false
	d.statusRead = false
	d.statusPlay = false
	d.statusError = 0
	d.pendingCommand = nil
}

func (d *Drive) statusByte() byte {
	var s byte
	s |= d.index & 0x3
	if !d.paramFifo.Full() {
		s |= 1 << 4
	}
	if d.paramFifo.Empty() {
		s |= 1 << 3
	}
	if !d.responseFifo.Empty() {
		s |= 1 << 5
	}
	if !d.dataFifo.Empty() {
		s |= 1 << 6
	}
	if d.pendingCommand != nil {
		s |= 1 << 7
	}
	return s
}

func (d *Drive) driveStatusByte() byte {
	var s byte
	if d.statusMotorOn {
		s |= 1 << 1
	}
	if d.statusRead {
		s |= 1 << 5
	}
	if d.statusSeek {
		s |= 1 << 6
	}
	if d.statusPlay {
		s |= 1 << 7
	}
	s |= d.statusError
	return s
}

// ReadRegister implements memmap.Peripheral over the four CD-ROM
// ports at 0x1F801800-0x1F801803, dispatched by the index register.
func (d *Drive) ReadRegister(offset uint32, width int) uint32 {
	switch offset {
	case 0:
		return uint32(d.statusByte())
	case 1:
		v, _ := d.responseFifo.Pop()
		return uint32(v)
	case 2:
		v, _ := d.dataFifo.Pop()
		return uint32(v)
	case 3:
		switch d.index {
		case 1:
			return uint32(d.interruptFlags) | 0xE0
		default:
			return uint32(d.interruptEnable) | 0xE0
		}
	}
	return 0xFF
}

// WriteRegister implements memmap.Peripheral.
func (d *Drive) WriteRegister(offset uint32, width int, value uint32) {
	v := byte(value)
	switch offset {
	case 0:
		d.index = v & 0x3
	case 1:
		switch d.index {
		case 0:
			d.beginCommand(Command(v))
		case 3:
			// right-cd audio volume, not modeled beyond acceptance
		}
	case 2:
		switch d.index {
		case 0:
			d.paramFifo.Push(v)
		case 1:
			d.interruptEnable = v
		}
	case 3:
		switch d.index {
		case 1:
			d.acknowledgeInterrupt(v)
		case 0:
			// request register: data FIFO enable (BFRD) bit 7
		}
	}
}

// acknowledgeInterrupt clears the flag bits set in value and releases
// a queued interrupt, per spec.md §4.6.
func (d *Drive) acknowledgeInterrupt(value byte) {
	d.interruptFlags &^= value & 0x1F
	if value&0x40 != 0 {
		d.paramFifo.Reset()
	}
	if d.interruptFlags == 0 && d.queuedInterrupt != nil {
		d.raiseInterrupt(d.queuedInterrupt.code, d.queuedInterrupt.response)
		d.queuedInterrupt = nil
	}
}

func (d *Drive) raiseInterrupt(code byte, response []byte) {
	if d.interruptFlags != 0 {
		d.queuedInterrupt = &pendingInterrupt{code: code, response: response}
		return
	}
	d.interruptFlags = code & 0x1F
	d.responseFifo.Reset()
	for _, b := range response {
		d.responseFifo.Push(b)
	}
	if d.interruptEnable&d.interruptFlags != 0 {
		d.irqc.Raise(irq.CDROM)
	}
}

// beginCommand latches a command byte and schedules the first-
// response event, per spec.md §4.6's command protocol. A command
// written while one is still pending preempts it onto the same event
// slot (decided Open Question, see DESIGN.md).
func (d *Drive) beginCommand(cmd Command) {
	c := cmd
	args := d.paramFifo.PopBulk(parameterFifoSize)
	d.pendingCommand = &c
	d.pendingCommandArgs = args
	d.commandEvt.Schedule(firstResponseCycles(cmd))
}

func firstResponseCycles(cmd Command) sched.Cycle {
	switch cmd {
	case CmdInit:
		return 120000
	default:
		return 25000
	}
}

// onCommandEvent executes the latched command and populates the
// response FIFO with the first-stage reply.
func (d *Drive) onCommandEvent(cycles sched.Cycle) {
	d.commandEvt.Cancel() // one-shot per command; re-armed by the next beginCommand
	cmd := *d.pendingCommand
	args := d.pendingCommandArgs
	d.pendingCommand = nil

	resp, code, secondDelay := d.execute(cmd, args)
	d.raiseInterrupt(code, resp)
	if secondDelay > 0 {
		d.secondCmd = cmd
		d.secondEvt.Schedule(secondDelay)
	}
}

// execute dispatches one command, returning its first-stage response
// bytes, interrupt code, and (if nonzero) the delay before a second
// completion interrupt should fire.
func (d *Drive) execute(cmd Command, args []byte) (resp []byte, code byte, secondDelay sched.Cycle) {
	switch cmd {
	case CmdGetStat:
		return []byte{d.driveStatusByte()}, intFirst, 0
	case CmdSetLoc:
		if len(args) != 3 {
			return []byte{d.driveStatusByte() | errWrongParamCount}, intError, 0
		}
		d.seekSector = bcdLocationToLBA(args[0], args[1], args[2])
		return []byte{d.driveStatusByte()}, intFirst, 0
	case CmdSeekL, CmdSeekP:
		d.state = Seeking
		d.statusSeek = true
		return []byte{d.driveStatusByte()}, intFirst, 10000
	case CmdReadN, CmdReadS:
		d.statusRead = true
		d.state = Reading
		d.driveEvt.Schedule(sectorPeriod(d.mode))
		return []byte{d.driveStatusByte()}, intFirst, 0
	case CmdMotorOn:
		return []byte{d.driveStatusByte()}, intFirst, 60000
	case CmdStop:
		d.state = Idle
		d.statusMotorOn = false
		d.statusRead = false
		d.statusPlay = false
		return []byte{d.driveStatusByte()}, intFirst, 50000
	case CmdPause:
		d.statusRead = false
		d.statusPlay = false
		d.driveEvt.Cancel()
		return []byte{d.driveStatusByte()}, intFirst, 5000
	case CmdInit:
		d.Reset()
		d.statusMotorOn = true
		return []byte{d.driveStatusByte()}, intFirst, 80000
	case CmdSetMode:
		if len(args) != 1 {
			return []byte{d.driveStatusByte() | errWrongParamCount}, intError, 0
		}
		d.mode = args[0]
		return []byte{d.driveStatusByte()}, intFirst, 0
	case CmdSetFilter:
		if len(args) != 2 {
			return []byte{d.driveStatusByte() | errWrongParamCount}, intError, 0
		}
		d.filterFile, d.filterChannel = args[0], args[1]
		return []byte{d.driveStatusByte()}, intFirst, 0
	case CmdGetID:
		// First response is always just the status byte; the license
		// (or no-disk marker) follows as a delayed second response,
		// per spec.md §8 scenario 4.
		return []byte{d.driveStatusByte()}, intFirst, 0x4A00
	case CmdTest:
		if len(args) >= 1 && args[0] == 0x20 {
			return []byte{0x97, 0x01, 0x10, 0xC2}, intFirst, 0 // BIOS date/version, arbitrary but stable
		}
		return []byte{d.driveStatusByte()}, intFirst, 0
	case CmdGetTD:
		if d.image == nil {
			return []byte{d.driveStatusByte() | errSeekFailed}, intError, 0
		}
		return []byte{0, 0}, intFirst, 0
	case CmdReadTOC:
		return []byte{d.driveStatusByte()}, intFirst, 30000
	case CmdReset:
		d.Reset()
		return nil, 0, 0
	default:
		return []byte{d.driveStatusByte() | errInvalidCommand}, intError, 0
	}
}

func bcdLocationToLBA(mm, ss, sect byte) uint32 {
	toDec := func(b byte) uint32 { return uint32(b>>4)*10 + uint32(b&0xF) }
	const framesPerSecond = 75
	const secondsPerMinute = 60
	const lbaOffset = 150 // 2-second lead-in
	return (toDec(mm)*secondsPerMinute+toDec(ss))*framesPerSecond + toDec(sect) - lbaOffset
}

func sectorPeriod(mode byte) sched.Cycle {
	const cyclesPerSectorSingleSpeed = 33868800 / 75
	if mode&0x80 != 0 { // double speed bit
		return cyclesPerSectorSingleSpeed / 2
	}
	return cyclesPerSectorSingleSpeed
}

// onSecondResponseEvent fires the queued second-stage interrupt for
// commands like Init/GetID/Stop that complete asynchronously.
func (d *Drive) onSecondResponseEvent(cycles sched.Cycle) {
	d.secondEvt.Cancel()
	switch {
	case d.secondCmd == CmdGetID:
		d.statusRead = false
		d.statusSeek = false
		d.statusPlay = false
		d.statusMotorOn = d.image != nil
		if d.image != nil {
			d.raiseInterrupt(intSecond, []byte{0x02, 0x00, 0x20, 0x00, 'S', 'C', 'E', 'A'})
		} else {
			d.raiseInterrupt(intError, []byte{0x08, 0x40, 0, 0, 0, 0, 0, 0})
		}
	case d.state == Seeking:
		d.state = Idle
		d.statusSeek = false
		d.raiseInterrupt(intSecond, []byte{d.driveStatusByte()})
	default:
		d.statusMotorOn = true
		d.raiseInterrupt(intSecond, []byte{d.driveStatusByte()})
	}
}

// onDriveEvent decodes the next sector during Reading/Playing, per
// spec.md §4.6's drive-event sector period.
func (d *Drive) onDriveEvent(cycles sched.Cycle) {
	if d.state != Reading || d.image == nil {
		return
	}
	raw := d.image.ReadSector(d.seekSector)
	d.seekSector++
	d.loadSector(raw)
	d.raiseInterrupt(intReceivedData, []byte{d.driveStatusByte()})
	d.driveEvt.Schedule(sectorPeriod(d.mode))
}

// loadSector copies the data payload (after the 12-byte sync + header
// skipped per mode) into the active sector buffer and data FIFO.
func (d *Drive) loadSector(raw [2352]byte) {
	start := 24 // skip sync(12)+header(4)+subheader(8) for Mode2/Form2 data sectors
	if d.mode&0x20 == 0 {
		start = 16 // Mode1/Form1: skip sync(12)+header(4)
	}
	buf := &d.sectorBuffers[d.activeSectorBuf]
	for i := range buf {
		if start+i < len(raw) {
			buf[i] = raw[start+i]
		}
	}
	d.activeSectorBuf = (d.activeSectorBuf + 1) % numSectorBuffers

	d.dataFifo.Reset()
	for _, b := range buf {
		d.dataFifo.Push(b)
	}
}

// DMAReadWord implements dma.Port for CD-ROM-to-RAM transfers.
func (d *Drive) DMAReadWord() uint32 {
	b0, _ := d.dataFifo.Pop()
	b1, _ := d.dataFifo.Pop()
	b2, _ := d.dataFifo.Pop()
	b3, _ := d.dataFifo.Pop()
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

func (d *Drive) DMAWriteWord(uint32) {} // CD-ROM DMA is read-only

// DMARequest implements dma.Port: ready whenever the data FIFO holds
// a full word.
func (d *Drive) DMARequest() bool { return d.dataFifo.Size() >= 4 }
