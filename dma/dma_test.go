package dma

import "testing"

func TestAllocFreeRoundTrip(t *testing.T) {
	r := NewRegion(4096)

	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h := r.Alloc(buf, 32)

	if h == 0 {
		t.Fatal("expected non-zero handle")
	}

	out := make([]byte, len(buf))
	r.Read(h, 0, out)

	for i := range buf {
		if out[i] != buf[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, out[i], buf[i])
		}
	}

	r.Free(h)
}

func TestAlignment(t *testing.T) {
	r := NewRegion(4096)

	// force a split before the aligned allocation
	r.Alloc(make([]byte, 3), 0)

	h, _ := r.Reserve(512, 32)
	if uint32(h)%32 != 0 {
		t.Fatalf("handle %d is not 32-byte aligned", h)
	}
}

func TestFreeDefragments(t *testing.T) {
	r := NewRegion(1024)

	a := r.Alloc(make([]byte, 100), 0)
	b := r.Alloc(make([]byte, 100), 0)
	c := r.Alloc(make([]byte, 100), 0)

	r.Free(a)
	r.Free(b)
	r.Free(c)

	// whole arena should be allocatable again as a single block
	h := r.Alloc(make([]byte, 1024), 0)
	if h != a {
		t.Fatalf("expected defragmented arena to satisfy a full-size allocation at the arena start (handle %d), got handle %d", a, h)
	}
}

func TestReservedBufferAliasesArena(t *testing.T) {
	r := NewRegion(256)

	h, buf := r.Reserve(16, 0)
	copy(buf, []byte("0123456789abcdef"))

	out := make([]byte, 16)
	r.Read(h, 0, out)

	if string(out) != "0123456789abcdef" {
		t.Fatalf("got %q", out)
	}

	r.Release(h)
}

func TestWriteOutOfBoundsPanics(t *testing.T) {
	r := NewRegion(256)
	h := r.Alloc(make([]byte, 16), 0)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-bounds write")
		}
	}()

	r.Write(h, 0, make([]byte, 32))
}
