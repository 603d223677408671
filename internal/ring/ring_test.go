package ring

import "testing"

func TestPushPop(t *testing.T) {
	b := New[byte](4)
	if !b.Empty() {
		t.Fatal("expected empty")
	}
	for i := byte(0); i < 4; i++ {
		if !b.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	if !b.Full() {
		t.Fatal("expected full")
	}
	if b.Push(99) {
		t.Fatal("expected overflow push to be dropped")
	}
	for i := byte(0); i < 4; i++ {
		v, ok := b.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got (%d,%v)", i, v, ok)
		}
	}
	if _, ok := b.Pop(); ok {
		t.Fatal("expected underflow pop to fail")
	}
}

func TestWrapAround(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	b.Pop()
	b.Push(3)
	b.Push(4)
	got := b.PopBulk(3)
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestResetZeroFills(t *testing.T) {
	b := New[byte](2)
	b.Push(0xFF)
	b.Push(0xFF)
	b.Reset()
	if !b.Empty() {
		t.Fatal("expected empty after reset")
	}
	for _, v := range b.data {
		if v != 0 {
			t.Fatal("expected zero-filled backing array")
		}
	}
}

func TestPeekAndIgnore(t *testing.T) {
	b := New[int](4)
	b.PushBulk([]int{10, 20, 30})
	v, ok := b.Peek(1)
	if !ok || v != 20 {
		t.Fatalf("peek: got (%d,%v)", v, ok)
	}
	b.Ignore(2)
	if b.Size() != 1 {
		t.Fatalf("size after ignore: got %d", b.Size())
	}
	v, _ = b.Pop()
	if v != 30 {
		t.Fatalf("got %d want 30", v)
	}
}
