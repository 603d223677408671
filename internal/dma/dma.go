// Package dma implements the 7-channel DMA engine described in
// spec.md §4.4: Manual/Request/LinkedList sync modes, per-channel
// control bitfields, priority resolution and chopping. It has no
// teacher analogue (the Game Boy has no DMA controller); it is
// grounded on original_source DMA.h's ChannelState/Control/
// InterruptRegister bitfield layout, expressed with this module's
// bitfield.Word32 wrapper in place of C++ bitfield unions.
package dma

import (
	"log/slog"
	"sort"

	"github.com/retrocore/gopsx/internal/bitfield"
	"github.com/retrocore/gopsx/internal/irq"
	"github.com/retrocore/gopsx/internal/sched"
)

// Channel identifies one of the seven DMA ports.
type Channel int

const (
	MDecIn Channel = iota
	MDecOut
	GPU
	CDROM
	SPU
	ExtensionPort
	RamOrderTable
	ChannelCount
)

func (c Channel) String() string {
	return [ChannelCount]string{"MDecIn", "MDecOut", "GPU", "CDROM", "SPU", "ExtensionPort", "RamOrderTable"}[c]
}

// SyncMode selects how a channel's block transfer is paced.
type SyncMode uint32

const (
	SyncManual SyncMode = iota
	SyncRequest
	SyncLinkedList
	syncUnused
)

const (
	controlWriteMask     = 0x71770703
	baseAddressMask      = 0x00FFFFFF
	linkedListTerminator = 0x00FFFFFF
	controlResetValue    = 0x07654321
	priorityFieldMask    = 0x07777777 // each channel's priority nibble, enable bits zeroed

	regBaseAddress    = 0
	regBlockControl   = 1
	regChannelControl = 2

	// processHeaderCycles and processBlockCycles are the per-node fixed
	// overhead for a linked-list DMA, in addition to cyclesForWords for
	// the node's payload words.
	processHeaderCycles = 10
	processBlockCycles  = 5
)

// result reports how a single dispatch of a channel's transfer ended.
type result int

const (
	finished result = iota
	chopping
	waitRequest
)

// cyclesForWords is the CPU-stall charge for moving n words over the
// DMA bus (spec.md §5: "the CPU is stalled for ceil(words*17/16)
// cycles; peripherals catch up to that cycle count before the
// transfer completes"), grounded on DMA.h's GetCyclesForWords (DRAM
// hyper-page mode: 17 cycles per 16-word burst).
func cyclesForWords(words uint32) sched.Cycle {
	return sched.Cycle((uint64(words)*17 + 15) / 16)
}

// wordsForCycles inverts cyclesForWords, used to convert a chopping
// window's cycle budget into a word threshold for Manual-mode chops.
func wordsForCycles(cycles sched.Cycle) uint32 {
	if cycles <= 0 {
		return 0
	}
	return uint32((uint64(cycles)*16 + 16) / 17)
}

// RAM is the narrow memory surface DMA needs: word-granular access to
// main RAM, the only memory DMA ever moves data through.
type RAM interface {
	ReadWord(addr uint32) uint32
	WriteWord(addr uint32, value uint32)
}

// Port is a DMA-capable peripheral's streaming side: the CPU-visible
// register file lives on the peripheral itself, but DMA pushes/pulls
// words directly through these methods (the teacher's equivalent of a
// direct PPU/FIFO poke bypassing the normal register path).
type Port interface {
	DMAReadWord() uint32
	DMAWriteWord(value uint32)
	// DMARequest reports whether the port currently wants to
	// transfer a word, consulted before an armed channel starts or
	// resumes and between Request sync mode blocks.
	DMARequest() bool
}

type channelState struct {
	baseAddress uint32
	wordCount   uint16
	blockCount  uint16
	control     bitfield.Word32
	request     bool
}

func (s *channelState) syncMode() SyncMode { return SyncMode(s.control.Field(9, 2)) }
func (s *channelState) direction() bool    { return s.control.Bit(0) } // false=to RAM, true=from RAM
func (s *channelState) addressStep() int32 {
	if s.control.Bit(1) {
		return -4
	}
	return 4
}
func (s *channelState) choppingEnabled() bool { return s.control.Bit(8) }
func (s *channelState) choppingDMAWindow() uint32 {
	return 1 << s.control.Field(16, 3)
}
func (s *channelState) choppingCPUWindow() uint32 {
	return 1 << s.control.Field(20, 3)
}
func (s *channelState) startBusy() bool        { return s.control.Bit(24) }
func (s *channelState) startTrigger() bool     { return s.control.Bit(28) }
func (s *channelState) paused() bool           { return s.control.Bit(29) }
func (s *channelState) setStartBusy(v bool)    { s.control = s.control.SetBit(24, v) }
func (s *channelState) setStartTrigger(v bool) { s.control = s.control.SetBit(28, v) }
func (s *channelState) wordCountOrMax() uint32 {
	if s.wordCount != 0 {
		return uint32(s.wordCount)
	}
	return 0x10000
}
func (s *channelState) blockCountOrMax() uint32 {
	if s.blockCount != 0 {
		return uint32(s.blockCount)
	}
	return 0x10000
}

// Controller is the top-level DMA engine owning all seven channels'
// register state and the shared interrupt register.
type Controller struct {
	channels [ChannelCount]channelState
	control  bitfield.Word32 // DMA priority/enable register (0x1F8010F0)

	irqForceMaster   bool
	irqEnables       uint32 // per-channel IRQ enable, 7 bits
	irqMasterEnable  bool
	irqFlags         uint32 // per-channel IRQ flag, 7 bits, write-1-to-clear

	ram   RAM
	ports [ChannelCount]Port
	irqc  *irq.Control
	sched *sched.Manager

	resumeEvent *sched.Event

	log *slog.Logger
}

// New constructs a reset Controller. ports may contain nil entries
// for channels not yet wired by the top-level Machine. sm is the
// shared scheduler the DMA-stall cycle charge and chop-resume event
// are driven through (spec.md §5's DMA ordering guarantee).
func New(ram RAM, irqc *irq.Control, sm *sched.Manager) *Controller {
	c := &Controller{ram: ram, irqc: irqc, sched: sm, log: slog.With("component", "dma")}
	c.resumeEvent = sm.CreateEvent("dma resume", func(sched.Cycle) { c.resumeDMA() })
	c.Reset()
	return c
}

// AttachPort wires a channel's streaming peripheral side.
func (c *Controller) AttachPort(ch Channel, p Port) { c.ports[ch] = p }

// Reset restores the power-on register values (spec.md §4.4).
func (c *Controller) Reset() {
	if c.resumeEvent != nil {
		c.resumeEvent.Cancel()
	}
	for i := range c.channels {
		c.channels[i] = channelState{}
	}
	c.control = bitfield.Word32(controlResetValue)
	c.irqForceMaster = false
	c.irqEnables = 0
	c.irqMasterEnable = false
	c.irqFlags = 0
}

// irqMasterFlag computes the read-only master IRQ bit: force OR
// (master-enable AND any enabled+flagged channel), per DMA.h's
// InterruptRegister::UpdateIrqMasterFlag.
func (c *Controller) irqMasterFlag() bool {
	return c.irqForceMaster || (c.irqMasterEnable && (c.irqEnables&c.irqFlags) != 0)
}

func (c *Controller) readInterruptRegister() uint32 {
	var v uint32
	if c.irqForceMaster {
		v |= 1 << 15
	}
	v |= c.irqEnables << 16
	if c.irqMasterEnable {
		v |= 1 << 23
	}
	v |= c.irqFlags << 24
	if c.irqMasterFlag() {
		v |= 1 << 31
	}
	return v
}

func (c *Controller) writeInterruptRegister(value uint32) {
	before := c.irqMasterFlag()
	c.irqForceMaster = value&(1<<15) != 0
	c.irqEnables = (value >> 16) & 0x7F
	c.irqMasterEnable = value&(1<<23) != 0
	// Ack: writing 1 to a flag bit clears it.
	ackMask := (value >> 24) & 0x7F
	c.irqFlags &^= ackMask
	after := c.irqMasterFlag()
	if !before && after {
		c.irqc.Raise(irq.DMA)
	}
}

func (c *Controller) raiseChannelIRQ(ch Channel) {
	if c.irqEnables&(1<<uint(ch)) == 0 {
		return
	}
	before := c.irqMasterFlag()
	c.irqFlags |= 1 << uint(ch)
	if !before && c.irqMasterFlag() {
		c.irqc.Raise(irq.DMA)
	}
}

// ReadRegister implements memmap.Peripheral.
func (c *Controller) ReadRegister(offset uint32, width int) uint32 {
	if offset >= 0x70 {
		switch (offset - 0x70) / 4 {
		case 0:
			return uint32(c.control)
		case 1:
			return c.readInterruptRegister()
		}
		return 0
	}
	ch := offset / 0x10
	reg := (offset % 0x10) / 4
	if ch >= uint32(ChannelCount) {
		return 0
	}
	s := &c.channels[ch]
	switch reg {
	case regBaseAddress:
		return s.baseAddress
	case regBlockControl:
		return uint32(s.blockCount)<<16 | uint32(s.wordCount)
	case regChannelControl:
		return uint32(s.control)
	default:
		return 0
	}
}

// WriteRegister implements memmap.Peripheral.
func (c *Controller) WriteRegister(offset uint32, width int, value uint32) {
	if offset >= 0x70 {
		switch (offset - 0x70) / 4 {
		case 0:
			c.control = bitfield.Word32(value)
		case 1:
			c.writeInterruptRegister(value)
		}
		return
	}
	ch := Channel(offset / 0x10)
	reg := (offset % 0x10) / 4
	if int(ch) >= int(ChannelCount) {
		return
	}
	s := &c.channels[ch]
	switch reg {
	case regBaseAddress:
		s.baseAddress = value & baseAddressMask
	case regBlockControl:
		s.wordCount = uint16(value)
		s.blockCount = uint16(value >> 16)
	case regChannelControl:
		s.control = bitfield.Word32(value).Masked(s.control, controlWriteMask)
		c.runIfReady(ch)
	}
}

// SetRequest records a peripheral's DMA request line, consulted by
// Request-sync channels before transferring their next block.
func (c *Controller) SetRequest(ch Channel, request bool) {
	c.channels[ch].request = request
	c.runIfReady(ch)
}

// canTransferChannel reports whether a channel is both globally
// enabled and locally armed to start (or resume) a transfer, mirroring
// DMA.cpp's CanTransferChannel: start_busy set, not paused, and either
// the start trigger, a SetRequest request, or the attached port's
// DMARequest line.
func (c *Controller) canTransferChannel(ch Channel) bool {
	if !c.channelEnabled(ch) {
		return false
	}
	s := &c.channels[ch]
	if !s.startBusy() || s.paused() {
		return false
	}
	if s.request || s.startTrigger() {
		return true
	}
	p := c.port(ch)
	return p != nil && p.DMARequest()
}

// runIfReady starts a channel's transfer immediately if it is ready;
// otherwise it is left armed for the next SetRequest/resume event to
// pick it up.
func (c *Controller) runIfReady(ch Channel) {
	if c.canTransferChannel(ch) {
		c.startDMA(ch)
	}
}

// channelEnabled reads the per-channel enable bit out of the priority
// register (bit 3 of each channel's 4-bit priority nibble).
func (c *Controller) channelEnabled(ch Channel) bool {
	return c.control.Bit(uint(ch)*4 + 3)
}

// channelPriority reads the 3-bit priority field of a channel's
// nibble in the priority/enable register.
func (c *Controller) channelPriority(ch Channel) uint32 {
	return c.control.Field(uint(ch)*4, 3)
}

func (c *Controller) port(ch Channel) Port {
	p := c.ports[ch]
	return p
}

// startDMA dispatches one channel's transfer per its sync mode,
// charges the resulting CPU-stall cycles to the scheduler, and either
// finishes the channel or arms a chop-resume event, grounded on
// DMA.cpp's StartDma/ResumeDma pair.
func (c *Controller) startDMA(ch Channel) result {
	s := &c.channels[ch]
	s.setStartTrigger(false)

	var res result
	var cycles sched.Cycle
	switch s.syncMode() {
	case SyncManual:
		res, cycles = c.startManual(ch)
	case SyncRequest:
		res, cycles = c.startRequest(ch)
	case SyncLinkedList:
		res, cycles = c.startLinkedList(ch)
	default:
		c.log.Warn("dma: unused sync mode, ignoring", "channel", ch)
		res = finished
	}

	if cycles > 0 {
		c.sched.AddCycles(cycles)
	}

	switch res {
	case finished:
		c.finishTransfer(ch)
	case chopping:
		c.resumeEvent.Schedule(sched.Cycle(s.choppingCPUWindow()))
	}
	return res
}

// finishTransfer clears start_busy and raises the channel's IRQ flag,
// per spec.md §4.4's completion contract.
func (c *Controller) finishTransfer(ch Channel) {
	c.channels[ch].setStartBusy(false)
	c.raiseChannelIRQ(ch)
}

// resumeDMA is the chop-resume event's callback: it re-polls every
// channel that can still transfer, in priority order, dispatching each
// one until the first that chops again. Grounded on DMA.cpp's
// ResumeDma, including its fast path for the unconfigured (reset
// value) priority register.
func (c *Controller) resumeDMA() {
	if uint32(c.control)&priorityFieldMask == controlResetValue&priorityFieldMask {
		for i := int(ChannelCount) - 1; i >= 0; i-- {
			ch := Channel(i)
			if c.canTransferChannel(ch) {
				if c.startDMA(ch) == chopping {
					return
				}
			}
		}
		return
	}

	type candidate struct {
		ch       Channel
		priority uint32
	}
	var ready []candidate
	for i := 0; i < int(ChannelCount); i++ {
		ch := Channel(i)
		if c.canTransferChannel(ch) {
			ready = append(ready, candidate{ch, c.channelPriority(ch)})
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].priority != ready[j].priority {
			return ready[i].priority > ready[j].priority
		}
		return ready[i].ch > ready[j].ch
	})
	for _, cand := range ready {
		if c.startDMA(cand.ch) == chopping {
			return
		}
	}
}

// startManual performs a single fixed-size block transfer, chopping it
// to the window's word threshold if chopping is enabled and the block
// is larger than that threshold.
func (c *Controller) startManual(ch Channel) (result, sched.Cycle) {
	s := &c.channels[ch]
	total := s.wordCountOrMax()
	words := total
	res := finished
	if s.choppingEnabled() {
		if chopWords := wordsForCycles(sched.Cycle(s.choppingDMAWindow())); chopWords < words {
			words = chopWords
			res = chopping
		}
	}
	c.transferBlock(ch, words)
	s.wordCount = uint16(total - words)
	return res, cyclesForWords(words)
}

// startRequest performs block-by-block transfer gated on the port's
// DMA request line, honoring chopping windows per spec.md §4.4.
func (c *Controller) startRequest(ch Channel) (result, sched.Cycle) {
	s := &c.channels[ch]
	p := c.port(ch)
	blockSize := s.wordCountOrMax()
	blockCycles := cyclesForWords(blockSize)
	blocksRemaining := s.blockCountOrMax()

	budget := sched.InfiniteCycles
	if s.choppingEnabled() {
		budget = sched.Cycle(s.choppingDMAWindow())
	}

	var totalCycles sched.Cycle
	requestUp := p == nil || p.DMARequest()
	for requestUp && blocksRemaining > 0 && budget > 0 {
		c.transferBlock(ch, blockSize)
		blocksRemaining--
		budget -= blockCycles
		totalCycles += blockCycles
		requestUp = p == nil || p.DMARequest()
	}
	s.blockCount = uint16(blocksRemaining % 0x10000)

	switch {
	case blocksRemaining == 0:
		return finished, totalCycles
	case requestUp:
		return chopping, totalCycles
	default:
		return waitRequest, totalCycles
	}
}

// startLinkedList walks GPU order-table nodes, charging a fixed
// per-node header cost plus cyclesForWords for each node's payload,
// and chopping at the window's cycle budget. Grounded on DMA.cpp's
// StartDma LinkedList case (header/block cycle constants are
// duckstation-derived, per that file's comment).
func (c *Controller) startLinkedList(ch Channel) (result, sched.Cycle) {
	s := &c.channels[ch]
	if !s.direction() {
		c.log.Warn("dma: linked-list transfer to RAM is invalid, ignoring", "channel", ch)
		return finished, 0
	}

	p := c.port(ch)
	addr := s.baseAddress & baseAddressMask

	budget := sched.InfiniteCycles
	if s.choppingEnabled() {
		budget = sched.Cycle(s.choppingDMAWindow())
	}

	var totalCycles sched.Cycle
	for budget > 0 && addr != linkedListTerminator {
		cur := sched.Cycle(processHeaderCycles)
		header := c.ram.ReadWord(addr)
		count := header >> 24
		if count > 0 {
			node := addr + 4
			for i := uint32(0); i < count; i++ {
				word := c.ram.ReadWord(node & baseAddressMask)
				if p != nil {
					p.DMAWriteWord(word)
				}
				node += 4
			}
			cur += processBlockCycles + cyclesForWords(count)
		}
		addr = header & baseAddressMask
		totalCycles += cur
		budget -= cur
	}

	s.baseAddress = addr
	if addr == linkedListTerminator {
		return finished, totalCycles
	}
	return chopping, totalCycles
}

// transferBlock moves n words between RAM (at the channel's current
// base address, stepping by addressStep) and the attached port.
func (c *Controller) transferBlock(ch Channel, n uint32) {
	s := &c.channels[ch]
	p := c.port(ch)
	addr := s.baseAddress
	step := s.addressStep()
	for i := uint32(0); i < n; i++ {
		if s.direction() { // from RAM to the port
			word := c.ram.ReadWord(addr & baseAddressMask)
			if p != nil {
				p.DMAWriteWord(word)
			}
		} else { // from the port to RAM
			var word uint32
			if p != nil {
				word = p.DMAReadWord()
			}
			c.ram.WriteWord(addr&baseAddressMask, word)
		}
		addr = uint32(int64(addr) + int64(step))
	}
	s.baseAddress = addr & baseAddressMask
}
