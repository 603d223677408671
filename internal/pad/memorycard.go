package pad

import "github.com/retrocore/gopsx/internal/memcard"

// memory card command bytes, per the well-known nocash protocol
// documentation matching original_source MemoryCard.h's State enum
// ordering (Read/Write/ID sub-states): no .cpp is present in the
// retrieval pack for this device, only the header's state/frame
// declarations.
const (
	cmdRead = 'R'
	cmdWrite = 'W'
	cmdID    = 'S'

	flagGood        = 0x47
	flagBadChecksum = 0x4E
	flagBadSector   = 0xFF
)

const cardID = 0x5A

type mcState int

const (
	mcIdle mcState = iota
	mcCommand
	mcReadID1
	mcReadID2
	mcReadAddrHigh
	mcReadAddrLow
	mcReadAck1
	mcReadAck2
	mcReadConfirmHigh
	mcReadConfirmLow
	mcReadData
	mcReadChecksum
	mcReadEnd
	mcWriteID1
	mcWriteID2
	mcWriteAddrHigh
	mcWriteAddrLow
	mcWriteData
	mcWriteChecksum
	mcWriteAck1
	mcWriteAck2
	mcWriteEnd
	mcIDID1
	mcIDID2
	mcIDAck1
	mcIDAck2
	mcIDSectorCountHigh
	mcIDSectorCountLow
	mcIDSectorSizeHigh
	mcIDSectorSizeLow
)

// MemoryCard adapts a memcard.Card's raw sector storage onto the
// controller-port bit-serial protocol.
type MemoryCard struct {
	card *memcard.Card

	state mcState

	sector   uint16
	addrHigh byte
	buf      [memcard.SectorSize]byte
	bufPos   int
	checksum byte
	writeErr bool
}

// NewMemoryCard wraps an existing card image in the bus protocol.
func NewMemoryCard(card *memcard.Card) *MemoryCard {
	return &MemoryCard{card: card}
}

// Deselect resets the in-flight command when the port deselects this
// device mid-transfer.
func (m *MemoryCard) Deselect() { m.state = mcIdle }

// Communicate advances whichever command sequence is in flight.
func (m *MemoryCard) Communicate(in byte) (out byte, ack bool) {
	switch m.state {
	case mcIdle:
		switch in {
		case cmdRead:
			m.state = mcReadID1
		case cmdWrite:
			m.state = mcWriteID1
		case cmdID:
			m.state = mcIDID1
		default:
			return highZ, false
		}
		return cardID, true

	// -- Read sector --
	case mcReadID1:
		m.state = mcReadID2
		return 0x5D, true
	case mcReadID2:
		m.state = mcReadAddrHigh
		return 0x5C, true
	case mcReadAddrHigh:
		m.addrHigh = in
		m.state = mcReadAddrLow
		return 0x00, true
	case mcReadAddrLow:
		m.sector = uint16(m.addrHigh)<<8 | uint16(in)
		m.state = mcReadAck1
		return 0x5C, true
	case mcReadAck1:
		m.state = mcReadAck2
		return 0x5D, true
	case mcReadAck2:
		var flag byte = flagGood
		if int(m.sector) >= memcard.SectorCount {
			flag = flagBadSector
		}
		m.state = mcReadConfirmHigh
		return flag, true
	case mcReadConfirmHigh:
		m.state = mcReadConfirmLow
		return byte(m.sector >> 8), true
	case mcReadConfirmLow:
		m.card.ReadSector(m.sector, &m.buf)
		m.bufPos = 0
		m.checksum = byte(m.sector>>8) ^ byte(m.sector)
		m.state = mcReadData
		return byte(m.sector), true
	case mcReadData:
		b := m.buf[m.bufPos]
		m.checksum ^= b
		m.bufPos++
		if m.bufPos >= memcard.SectorSize {
			m.state = mcReadChecksum
		}
		return b, true
	case mcReadChecksum:
		m.state = mcReadEnd
		return m.checksum, true
	case mcReadEnd:
		m.state = mcIdle
		return flagGood, false

	// -- Write sector --
	case mcWriteID1:
		m.state = mcWriteID2
		return 0x5D, true
	case mcWriteID2:
		m.state = mcWriteAddrHigh
		return 0x5C, true
	case mcWriteAddrHigh:
		m.addrHigh = in
		m.state = mcWriteAddrLow
		return 0x00, true
	case mcWriteAddrLow:
		m.sector = uint16(m.addrHigh)<<8 | uint16(in)
		m.bufPos = 0
		m.checksum = byte(m.sector>>8) ^ byte(m.sector)
		m.state = mcWriteData
		return 0x00, true
	case mcWriteData:
		m.buf[m.bufPos] = in
		m.checksum ^= in
		m.bufPos++
		if m.bufPos >= memcard.SectorSize {
			m.state = mcWriteChecksum
		}
		return 0x00, true
	case mcWriteChecksum:
		m.writeErr = in != m.checksum || int(m.sector) >= memcard.SectorCount
		if !m.writeErr {
			m.card.WriteSector(m.sector, &m.buf)
		}
		m.state = mcWriteAck1
		return 0x5C, true
	case mcWriteAck1:
		m.state = mcWriteAck2
		return 0x5D, true
	case mcWriteAck2:
		var flag byte = flagGood
		if m.writeErr {
			flag = flagBadChecksum
		}
		m.state = mcWriteEnd
		return flag, true
	case mcWriteEnd:
		m.state = mcIdle
		return flagGood, false

	// -- ID query --
	case mcIDID1:
		m.state = mcIDID2
		return 0x5D, true
	case mcIDID2:
		m.state = mcIDAck1
		return 0x5C, true
	case mcIDAck1:
		m.state = mcIDAck2
		return 0x5D, true
	case mcIDAck2:
		m.state = mcIDSectorCountHigh
		return flagGood, true
	case mcIDSectorCountHigh:
		m.state = mcIDSectorCountLow
		return byte(memcard.SectorCount >> 8), true
	case mcIDSectorCountLow:
		m.state = mcIDSectorSizeHigh
		return byte(memcard.SectorCount), true
	case mcIDSectorSizeHigh:
		m.state = mcIDSectorSizeLow
		return byte(memcard.SectorSize >> 8), true
	case mcIDSectorSizeLow:
		m.state = mcIdle
		return byte(memcard.SectorSize), false

	default:
		m.state = mcIdle
		return highZ, false
	}
}
