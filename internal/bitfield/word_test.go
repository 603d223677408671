package bitfield

import "testing"

func TestWord32Field(t *testing.T) {
	var w Word32 = 0
	w = w.WithField(8, 6, 0x2A)
	if got := w.Field(8, 6); got != 0x2A {
		t.Fatalf("Field: got %#x want %#x", got, 0x2A)
	}
}

func TestWord32Bit(t *testing.T) {
	var w Word32
	w = w.SetBit(31, true)
	if !w.Bit(31) {
		t.Fatal("expected bit 31 set")
	}
	w = w.SetBit(31, false)
	if w.Bit(31) {
		t.Fatal("expected bit 31 cleared")
	}
}

func TestWord32Masked(t *testing.T) {
	prev := Word32(0xFFFFFFFF)
	next := Word32(0x00000000).Masked(prev, 0x0000FFFF)
	if next != 0xFFFF0000 {
		t.Fatalf("Masked: got %#x want %#x", uint32(next), 0xFFFF0000)
	}
}

func TestClamp(t *testing.T) {
	if v, sat := Clamp(10, 0, 5); v != 5 || !sat {
		t.Fatalf("Clamp high: got (%d,%v)", v, sat)
	}
	if v, sat := Clamp(-10, 0, 5); v != 0 || !sat {
		t.Fatalf("Clamp low: got (%d,%v)", v, sat)
	}
	if v, sat := Clamp(3, 0, 5); v != 3 || sat {
		t.Fatalf("Clamp in range: got (%d,%v)", v, sat)
	}
}
