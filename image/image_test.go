package image

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// memFile is a minimal ReadWriteSeekCloser over an in-memory buffer,
// used in place of an *os.File handle in these tests.
type memFile struct {
	buf    []byte
	cursor int64
}

func (m *memFile) Read(p []byte) (int, error) {
	if m.cursor >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.cursor:])
	m.cursor += int64(n)
	return n, nil
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.cursor + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.cursor:end], p)
	m.cursor += int64(n)
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.cursor = offset
	case io.SeekCurrent:
		m.cursor += offset
	case io.SeekEnd:
		m.cursor = int64(len(m.buf)) + offset
	}
	return m.cursor, nil
}

func (m *memFile) Close() error { return nil }

func TestFileStoreReadWrite(t *testing.T) {
	mf := &memFile{buf: make([]byte, 512)}
	store := OpenFile(mf, 512, true, false, 0, 0)

	if err := store.Seek(0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	if err := store.Seek(0); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 5)
	if _, err := store.Read(out); err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello" {
		t.Fatalf("got %q", out)
	}
}

func TestFileStoreReadOnlyRejectsWrite(t *testing.T) {
	mf := &memFile{buf: make([]byte, 512)}
	store := OpenFile(mf, 512, false, false, 0, 0)

	if _, err := store.Write([]byte("x")); err != ErrReadOnly {
		t.Fatalf("Write on read-only store = %v, want ErrReadOnly", err)
	}
}

// fakeBlockDevice is an in-memory BlockDevice for RawRange tests.
type fakeBlockDevice struct {
	blocks map[uint32][]byte
}

func (f *fakeBlockDevice) ReadBlocks(lba uint32, out [][]byte) error {
	for i, buf := range out {
		copy(buf, f.blocks[lba+uint32(i)])
	}
	return nil
}

func (f *fakeBlockDevice) WriteBlocks(lba uint32, in [][]byte) error {
	for i, buf := range in {
		cp := append([]byte(nil), buf...)
		if f.blocks == nil {
			f.blocks = make(map[uint32][]byte)
		}
		f.blocks[lba+uint32(i)] = cp
	}
	return nil
}

func TestRawRangeWriteThenRead(t *testing.T) {
	dev := &fakeBlockDevice{blocks: make(map[uint32][]byte)}
	store := OpenRawRange(dev, 1000, 2000, 512, true)

	block := bytes.Repeat([]byte{0xAB}, 512)
	if err := store.Seek(0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Write(block); err != nil {
		t.Fatal(err)
	}

	if err := store.Seek(0); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 512)
	if _, err := store.Read(out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, block) {
		t.Fatal("round trip mismatch")
	}

	begin, end, ok := store.ContiguousRange()
	if !ok || begin != 1000 || end != 2000 {
		t.Fatalf("ContiguousRange = %d,%d,%v", begin, end, ok)
	}
}

func TestRawRangeRejectsUnalignedAccess(t *testing.T) {
	dev := &fakeBlockDevice{blocks: make(map[uint32][]byte)}
	store := OpenRawRange(dev, 0, 10, 512, true)

	if _, err := store.Write(make([]byte, 100)); err == nil {
		t.Fatal("expected an error for a non-block-aligned write")
	}
}

// fakeFlash is an in-memory FlashReader for Rom tests.
type fakeFlash struct {
	data []byte
}

func (f *fakeFlash) ReadAt(buf []byte, offset int64) (int, error) {
	n := copy(buf, f.data[offset:])
	return n, nil
}

func buildRomRegion(t *testing.T, imageSize uint32, payload []byte) []byte {
	t.Helper()

	header := make([]byte, romHeaderSize)
	copy(header[0:8], romMagic)
	header[8] = 3 // SCSI id
	binary.LittleEndian.PutUint32(header[9:13], imageSize)
	binary.LittleEndian.PutUint32(header[13:17], 512)
	header[17] = 0

	return append(header, payload...)
}

func TestOpenRomValidatesMagic(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, 512)
	region := buildRomRegion(t, 512, payload)
	flash := &fakeFlash{data: region}

	store, err := OpenRom(flash, 0, int64(len(region)))
	if err != nil {
		t.Fatalf("OpenRom: %v", err)
	}

	out := make([]byte, 512)
	if err := store.Seek(0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Read(out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("payload mismatch")
	}
	if store.IsWritable() {
		t.Fatal("Rom store must never be writable")
	}
}

func TestOpenRomRejectsBadMagic(t *testing.T) {
	region := buildRomRegion(t, 512, make([]byte, 512))
	region[0] = 'X' // corrupt magic

	flash := &fakeFlash{data: region}
	if _, err := OpenRom(flash, 0, int64(len(region))); err == nil {
		t.Fatal("expected a magic-mismatch error")
	}
}

func TestOpenRomRejectsOversizeImage(t *testing.T) {
	region := buildRomRegion(t, 1<<20, make([]byte, 512)) // claims 1MiB but region is tiny
	flash := &fakeFlash{data: region}

	if _, err := OpenRom(flash, 0, int64(len(region))); err == nil {
		t.Fatal("expected a bounds-check error for an oversize declared image")
	}
}

func TestParseRawRangeSpec(t *testing.T) {
	begin, end, err := ParseRawRangeSpec("RAW:1000:2000")
	if err != nil {
		t.Fatal(err)
	}
	if begin != 1000 || end != 2000 {
		t.Fatalf("got %d,%d", begin, end)
	}

	if _, _, err := ParseRawRangeSpec("RAW:2000:1000"); err == nil {
		t.Fatal("expected error when end <= begin")
	}
}
