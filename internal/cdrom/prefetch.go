package cdrom

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// prefetchDepth is how many sectors ahead of the last requested one
// the background goroutine keeps warm.
const prefetchDepth = 4

// Prefetcher wraps an Image with a small ahead-of-read cache filled by
// a background goroutine, per spec.md §5's concurrency model: one
// mutex/cond-guarded piece of shared state, no channels on the hot
// path, mirroring the teacher's debugger-state pattern in core.go
// generalized from a read-write mutex over debug fields to a cache
// over disc sectors. It is optional: Drive works identically against
// a bare Image, just without the read-ahead.
type Prefetcher struct {
	img Image

	mu     sync.Mutex
	cond   *sync.Cond
	cache  map[uint32][2352]byte
	want   uint32
	closed bool
}

// NewPrefetcher wraps img and starts its background fill goroutine.
func NewPrefetcher(img Image) *Prefetcher {
	p := &Prefetcher{
		img:   img,
		cache: make(map[uint32][2352]byte, prefetchDepth),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

func (p *Prefetcher) run() {
	for {
		p.mu.Lock()
		for len(p.cache) >= prefetchDepth && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		want := p.want
		p.mu.Unlock()

		var g errgroup.Group
		sectors := make([][2352]byte, prefetchDepth)
		for i := 0; i < prefetchDepth; i++ {
			i := i
			g.Go(func() error {
				sectors[i] = p.img.ReadSector(want + uint32(i))
				return nil
			})
		}
		g.Wait() // errgroup.Group.Go's funcs here never return an error

		p.mu.Lock()
		if !p.closed {
			for i, s := range sectors {
				p.cache[want+uint32(i)] = s
			}
			p.cond.Broadcast()
		}
		p.mu.Unlock()
	}
}

// ReadSector returns lba's data from the cache if the background
// goroutine already has it, otherwise reads it synchronously and
// nudges the cache toward this new position.
func (p *Prefetcher) ReadSector(lba uint32) [2352]byte {
	p.mu.Lock()
	if s, ok := p.cache[lba]; ok {
		p.mu.Unlock()
		return s
	}
	p.want = lba
	p.cache = make(map[uint32][2352]byte, prefetchDepth)
	p.cond.Broadcast()
	p.mu.Unlock()
	return p.img.ReadSector(lba)
}

func (p *Prefetcher) TrackCount() int { return p.img.TrackCount() }

func (p *Prefetcher) TrackStartLBA(track int) uint32 { return p.img.TrackStartLBA(track) }

// Close stops the background goroutine. Safe to call more than once.
func (p *Prefetcher) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}
