package memmap

// ICache is a minimal direct-mapped instruction cache: a tag plus
// fetched word per line. The R3000A cache is 4KiB / 4 words per line;
// this spec only needs hit/miss bookkeeping, not sub-line timing
// (spec.md §4.2: "its hit/miss does not affect timing in this spec").
const (
	icacheLines = 256
	icacheLineMask = icacheLines - 1
)

type icacheLine struct {
	tag   uint32
	valid bool
	word  uint32
}

// ICache is a direct-mapped cache indexed by (addr>>2) & lineMask.
type ICache struct {
	lines [icacheLines]icacheLine
}

func NewICache() *ICache { return &ICache{} }

func (c *ICache) Lookup(addr uint32) (uint32, bool) {
	idx := (addr >> 2) & icacheLineMask
	line := &c.lines[idx]
	if line.valid && line.tag == addr {
		return line.word, true
	}
	return 0, false
}

func (c *ICache) Fill(addr uint32, word uint32) {
	idx := (addr >> 2) & icacheLineMask
	c.lines[idx] = icacheLine{tag: addr, valid: true, word: word}
}

func (c *ICache) Reset() {
	for i := range c.lines {
		c.lines[i] = icacheLine{}
	}
}
