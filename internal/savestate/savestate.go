// Package savestate implements the tagged, versioned section framing
// spec.md §9 describes: every peripheral writes (or reads) a header of
// its own name and version before its state, so a reader encountering
// an unexpected tag or version can flag the stream as invalid instead
// of silently misinterpreting bytes. It is grounded on the m68k
// example's fixed-layout Serialize/Deserialize pair, generalized from
// a byte-slice target to an io.Writer/io.Reader pair so sections can
// be chained without precomputing a total size up front.
package savestate

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const tagSize = 16

// Writer sequences tagged sections onto an underlying stream.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Err returns the first error encountered by any Section/Value call.
func (sw *Writer) Err() error { return sw.err }

// Section writes tag's header (padded/truncated to 16 bytes) and
// version, then invokes fn to write the section body.
func (sw *Writer) Section(tag string, version uint32, fn func(w io.Writer) error) {
	if sw.err != nil {
		return
	}
	var buf [tagSize]byte
	copy(buf[:], tag)
	if _, err := sw.w.Write(buf[:]); err != nil {
		sw.err = errors.Wrapf(err, "savestate: writing %q tag", tag)
		return
	}
	if err := binary.Write(sw.w, binary.LittleEndian, version); err != nil {
		sw.err = errors.Wrapf(err, "savestate: writing %q version", tag)
		return
	}
	if err := fn(sw.w); err != nil {
		sw.err = errors.Wrapf(err, "savestate: writing %q body", tag)
	}
}

// Value writes v (which must be a fixed-size type or slice/array of
// one, per encoding/binary's rules) directly to the stream.
func (sw *Writer) Value(v any) {
	if sw.err != nil {
		return
	}
	if err := binary.Write(sw.w, binary.LittleEndian, v); err != nil {
		sw.err = errors.Wrap(err, "savestate: writing value")
	}
}

// Reader reads back sections written by a Writer, verifying each
// section's tag and version before handing control to fn.
type Reader struct {
	r   io.Reader
	err error
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

func (sr *Reader) Err() error { return sr.err }

// Section reads a tag+version header and checks it against the
// expected values before invoking fn. A mismatch sets Err and skips
// fn, matching spec.md §9's "mismatch marks the stream error-flag
// set" rule.
func (sr *Reader) Section(tag string, version uint32, fn func(r io.Reader) error) {
	if sr.err != nil {
		return
	}
	var buf [tagSize]byte
	if _, err := io.ReadFull(sr.r, buf[:]); err != nil {
		sr.err = errors.Wrapf(err, "savestate: reading %q tag", tag)
		return
	}
	var gotVersion uint32
	if err := binary.Read(sr.r, binary.LittleEndian, &gotVersion); err != nil {
		sr.err = errors.Wrapf(err, "savestate: reading %q version", tag)
		return
	}
	var wantBuf [tagSize]byte
	copy(wantBuf[:], tag)
	if buf != wantBuf {
		sr.err = errors.Errorf("savestate: expected section %q, got %q", tag, trimTag(buf[:]))
		return
	}
	if gotVersion != version {
		sr.err = errors.Errorf("savestate: section %q version mismatch: want %d, got %d", tag, version, gotVersion)
		return
	}
	if err := fn(sr.r); err != nil {
		sr.err = errors.Wrapf(err, "savestate: reading %q body", tag)
	}
}

// Value reads into v, which must be a pointer to a fixed-size type or
// slice/array of one.
func (sr *Reader) Value(v any) {
	if sr.err != nil {
		return
	}
	if err := binary.Read(sr.r, binary.LittleEndian, v); err != nil {
		sr.err = errors.Wrap(err, "savestate: reading value")
	}
}

func trimTag(buf []byte) string {
	i := 0
	for i < len(buf) && buf[i] != 0 {
		i++
	}
	return string(buf[:i])
}
