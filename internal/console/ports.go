// Package console wires every peripheral package into the top-level
// Machine described in spec.md §9's arena-ownership model, and defines
// the host-facing collaborator interfaces from spec.md §6. It is
// grounded on the teacher's jeebie.Emulator/DMG (construction,
// RunUntilFrame, debugger-control methods) generalized from a single
// GPU+MMU pair to the full PSX peripheral set.
package console

import (
	"github.com/retrocore/gopsx/internal/gpu"
	"github.com/retrocore/gopsx/internal/spu"
)

// Renderer is the host-facing sink for completed frames and VRAM
// peeks, per spec.md §6. It embeds gpu.Renderer so a single
// implementation can satisfy both the GPU's narrow per-primitive
// callback surface and the console's higher-level "frame ready" hook.
type Renderer interface {
	gpu.Renderer
}

// AudioQueue is the host-facing sink for finished stereo sample
// frames, per spec.md §6.
type AudioQueue interface {
	spu.AudioSink
}

// CDImage is the host-facing disc image backing the CD-ROM drive, per
// spec.md §6. It is satisfied by any cdrom.Image (BIN/CUE loader,
// in-memory test fixture, etc).
type CDImage interface {
	ReadSector(lba uint32) [2352]byte
	TrackCount() int
	TrackStartLBA(track int) uint32
}

// SaveStateStream is the host-facing byte sink/source a save/load
// operation reads or writes its serialized snapshot through, per
// spec.md §6 and §9's save-state versioning note.
type SaveStateStream interface {
	Write(p []byte) (n int, err error)
	Read(p []byte) (n int, err error)
}

// NullRenderer discards every draw call; used by headless tests and
// as the Machine's default Renderer before a host attaches one,
// mirroring the teacher's backend/headless null-backend pattern.
type NullRenderer struct {
	Presented int
}

func (r *NullRenderer) DrawPixel(x, y int, color uint16) {}
func (r *NullRenderer) PresentFrame()                    { r.Presented++ }

// NullAudioQueue discards every audio frame.
type NullAudioQueue struct {
	Frames int
}

func (a *NullAudioQueue) PushFrame(left, right int16) { a.Frames++ }

// MemCDImage is an in-memory CDImage backed by a flat sector slice,
// useful for tests and for side-loaded PS-X EXEs that never touch the
// disc drive.
type MemCDImage struct {
	Sectors [][2352]byte
	Tracks  []uint32 // starting LBA per track; at least one entry
}

func (m *MemCDImage) ReadSector(lba uint32) [2352]byte {
	if int(lba) >= len(m.Sectors) {
		return [2352]byte{}
	}
	return m.Sectors[lba]
}

func (m *MemCDImage) TrackCount() int { return len(m.Tracks) }

func (m *MemCDImage) TrackStartLBA(track int) uint32 {
	if track < 0 || track >= len(m.Tracks) {
		return 0
	}
	return m.Tracks[track]
}
