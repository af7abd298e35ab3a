package prefetch

import (
	"bytes"
	"testing"
)

func TestTakeServesFromCachedRun(t *testing.T) {
	c := New(4096)
	data := bytes.Repeat([]byte{0xCD}, 4*512)
	c.Fill(1, 100, 512, data)

	served, lbaRemain, countRemain := c.Take(1, 100, 2)
	if !bytes.Equal(served, data[0:1024]) {
		t.Fatalf("served bytes mismatch")
	}
	if lbaRemain != 102 || countRemain != 0 {
		t.Fatalf("lbaRemain/countRemain = %d/%d, want 102/0", lbaRemain, countRemain)
	}
}

func TestTakePartialOverlapReducesRequest(t *testing.T) {
	c := New(4096)
	data := bytes.Repeat([]byte{0xEF}, 4*512)
	c.Fill(1, 100, 512, data)

	// request spans 2 sectors past the end of the cached run of 4.
	served, lbaRemain, countRemain := c.Take(1, 102, 4)
	if len(served) != 2*512 {
		t.Fatalf("served = %d bytes, want 1024", len(served))
	}
	if lbaRemain != 104 || countRemain != 2 {
		t.Fatalf("lbaRemain/countRemain = %d/%d, want 104/2", lbaRemain, countRemain)
	}
}

func TestTakeMissesWrongTarget(t *testing.T) {
	c := New(4096)
	c.Fill(1, 100, 512, bytes.Repeat([]byte{0x11}, 512))

	served, lbaRemain, countRemain := c.Take(2, 100, 1)
	if served != nil {
		t.Fatal("expected a miss for a different target id")
	}
	if lbaRemain != 100 || countRemain != 1 {
		t.Fatal("a miss must return the original range unchanged")
	}
}

func TestTakeMissesLBABeforeCachedRun(t *testing.T) {
	c := New(4096)
	c.Fill(1, 100, 512, bytes.Repeat([]byte{0x11}, 512))

	served, _, _ := c.Take(1, 50, 1)
	if served != nil {
		t.Fatal("expected a miss for an LBA before the cached run")
	}
}

func TestInvalidateClearsCache(t *testing.T) {
	c := New(4096)
	c.Fill(1, 100, 512, bytes.Repeat([]byte{0x11}, 512))
	c.Invalidate()

	served, _, _ := c.Take(1, 100, 1)
	if served != nil {
		t.Fatal("expected a miss after Invalidate")
	}
}

// TestPrefetchCorrectness is §8's invariant: bytes served from cache
// are bitwise identical to an uncached re-read of the same LBA.
func TestPrefetchCorrectness(t *testing.T) {
	uncached := bytes.Repeat([]byte{0x42}, 512)

	c := New(4096)
	c.Fill(7, 200, 512, append([]byte(nil), uncached...))

	served, _, _ := c.Take(7, 200, 1)
	if !bytes.Equal(served, uncached) {
		t.Fatal("cached bytes diverge from the uncached source")
	}
}
