// Package hostterm is a tcell-based terminal frontend: a Renderer the
// console package can drive directly, plus a small VRAM-peek/status
// view for headless-adjacent debugging sessions that never open a
// graphical window. It is grounded on the teacher's
// backend/terminal.Backend, generalized from a fixed 160x144 Game Boy
// framebuffer rendered with half-block characters to an arbitrary
// PS-X display resolution, with the VRAM-peek pane additionally
// downscaled through golang.org/x/image/draw rather than sampled
// 1:1, since VRAM (1024x512) rarely matches the terminal's cell grid.
package hostterm

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/image/draw"

	"github.com/retrocore/gopsx/internal/gpu"
)

const (
	minWidth  = 80
	minHeight = 24
	logPane   = 6
)

// ViewMode selects what the VRAM pane shows, toggled by the F6 hotkey
// from spec.md §6.
type ViewMode int

const (
	ViewDisplay ViewMode = iota // the GPU's current scan-out region
	ViewVRAM                    // the entire 1024x512 VRAM bank
)

// Event is a host-level input notification; Action names mirror
// spec.md §6's hotkey list so cmd/psxcore can dispatch on them
// without this package knowing about Machine.
type Event struct {
	Action string
}

// Backend is a terminal Renderer (satisfies console.Renderer) backed
// by tcell. It owns no emulator state beyond a *gpu.GPU reference,
// used only to pull pixels out of VRAM when a frame is presented or
// the VRAM-peek view is active.
type Backend struct {
	screen tcell.Screen
	gpu    *gpu.GPU
	logs   *logBuffer

	mu          sync.Mutex
	mode        ViewMode
	realColor   bool
	maskOverlay bool
	frames      uint64

	prevLogger *slog.Logger
}

// New constructs a Backend. Call SetSource and Init before using it as
// a Renderer.
func New(g *gpu.GPU) *Backend {
	return &Backend{
		gpu:  g,
		logs: newLogBuffer(200),
	}
}

// SetSource (re)points the view at a GPU to pull VRAM from. Machine
// construction wires a Renderer before its GPU exists, so a terminal
// frontend built ahead of time attaches its source right after.
func (b *Backend) SetSource(g *gpu.GPU) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gpu = g
}

// Init opens the terminal screen and redirects the process-wide
// logger into this view's log pane, matching the teacher's pattern of
// installing a log-buffer-backed slog handler for the duration of the
// terminal session.
func (b *Backend) Init() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("hostterm: opening terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("hostterm: initializing terminal: %w", err)
	}
	b.screen = screen
	b.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	b.screen.Clear()

	b.prevLogger = slog.Default()
	slog.SetDefault(slog.New(newLogHandler(b.logs, slog.LevelInfo)))

	return nil
}

// Cleanup restores the terminal and the prior default logger.
func (b *Backend) Cleanup() error {
	if b.prevLogger != nil {
		slog.SetDefault(b.prevLogger)
	}
	if b.screen != nil {
		b.screen.Fini()
	}
	return nil
}

// DrawPixel satisfies gpu.Renderer. The view pulls the whole display
// region out of VRAM on PresentFrame instead of tracking individual
// writes, so this is a no-op — matching console.NullRenderer's
// contract for the same method.
func (b *Backend) DrawPixel(x, y int, color uint16) {}

// PresentFrame satisfies gpu.Renderer, rendering one terminal frame.
func (b *Backend) PresentFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames++
	b.render()
}

// ToggleVRAMView flips between the live display area and the full
// VRAM bank (the F6 hotkey from spec.md §6).
func (b *Backend) ToggleVRAMView() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mode == ViewDisplay {
		b.mode = ViewVRAM
	} else {
		b.mode = ViewDisplay
	}
}

// ToggleRealColor flips the 15-bit-channel vs smoothed color
// reconstruction (the F7 hotkey from spec.md §6).
func (b *Backend) ToggleRealColor() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realColor = !b.realColor
}

// ToggleMaskOverlay highlights VRAM pixels with the mask bit set, in
// both ViewVRAM and the display view.
func (b *Backend) ToggleMaskOverlay() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maskOverlay = !b.maskOverlay
}

// PollEvents drains pending terminal input and translates it into
// host-level Events, mirroring the teacher's Update loop's key
// mapping without owning any emulator input state itself.
func (b *Backend) PollEvents() []Event {
	var out []Event
	for b.screen.HasPendingEvent() {
		switch ev := b.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if act, ok := keyActions[ev.Key()]; ok {
				out = append(out, Event{Action: act})
				continue
			}
			if act, ok := runeActions[ev.Rune()]; ok {
				out = append(out, Event{Action: act})
			}
		case *tcell.EventResize:
			b.screen.Sync()
		}
	}
	return out
}

// keyActions maps terminal keys to the host hotkeys from spec.md §6.
var keyActions = map[tcell.Key]string{
	tcell.KeyF1:     "pause",
	tcell.KeyF2:     "step_frame",
	tcell.KeyF3:     "mute",
	tcell.KeyF5:     "quicksave",
	tcell.KeyF6:     "vram_view",
	tcell.KeyF7:     "real_color",
	tcell.KeyF9:     "quickload",
	tcell.KeyF11:    "fullscreen",
	tcell.KeyEscape: "reset",
	tcell.KeyCtrlC:  "quit",
}

var runeActions = map[rune]string{
	'+': "scale_up",
	'-': "scale_down",
}

func (b *Backend) render() {
	termW, termH := b.screen.Size()
	if termW < minWidth || termH < minHeight {
		b.renderTooSmall(termW, termH)
		return
	}

	b.screen.Clear()

	frameH := termH - logPane - 1
	if frameH < 1 {
		frameH = termH
	}

	var src image.Image
	if b.mode == ViewVRAM {
		src = &vramRegion{gpu: b.gpu, w: gpu.VRAMWidth, h: gpu.VRAMHeight, maskBit: b.maskOverlay, realColor: b.realColor}
	} else {
		ox, oy := b.gpu.DisplayOrigin()
		dw, dh := b.gpu.DisplayResolution()
		src = &vramRegion{gpu: b.gpu, x0: ox, y0: oy, w: dw, h: dh, maskBit: b.maskOverlay, realColor: b.realColor}
	}

	// Half-block characters double vertical resolution: each terminal
	// row draws two source rows, so the scaled destination is twice
	// frameH tall. The real-color toggle also picks the scaler: a
	// smoothed kernel suits the interpolated colors, nearest-neighbor
	// keeps the naive/blocky view honestly blocky.
	dst := image.NewRGBA(image.Rect(0, 0, termW, frameH*2))
	scaler := draw.Scaler(draw.NearestNeighbor)
	if b.realColor {
		scaler = draw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	for cellY := 0; cellY < frameH; cellY++ {
		for cellX := 0; cellX < termW; cellX++ {
			top := dst.RGBAAt(cellX, cellY*2)
			bottom := dst.RGBAAt(cellX, cellY*2+1)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top.R), int32(top.G), int32(top.B))).
				Background(tcell.NewRGBColor(int32(bottom.R), int32(bottom.G), int32(bottom.B)))
			b.screen.SetContent(cellX, cellY, '▀', nil, style)
		}
	}

	b.renderLogs(termW, frameH+1, termH)
	b.screen.Show()
}

func (b *Backend) renderTooSmall(termW, termH int) {
	b.screen.Clear()
	msg := fmt.Sprintf("terminal too small, need at least %dx%d", minWidth, minHeight)
	style := tcell.StyleDefault.Foreground(tcell.ColorRed)
	for i, ch := range msg {
		if i >= termW {
			break
		}
		b.screen.SetContent(i, termH/2, ch, nil, style)
	}
	b.screen.Show()
}

func (b *Backend) renderLogs(termW, startY, termH int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorSilver)
	entries := b.logs.recent(termH - startY)
	for row, e := range entries {
		y := startY + row
		if y >= termH {
			break
		}
		line := fmt.Sprintf("%s %-5s %s", e.Time.Format(time.TimeOnly), e.Level, e.Message)
		for i, ch := range line {
			if i >= termW {
				break
			}
			b.screen.SetContent(i, y, ch, nil, style)
		}
	}
}
