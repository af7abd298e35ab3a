package cdrom

import (
	"bytes"
	"testing"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cue"
)

// fakeStore is a minimal image.Store backed by an in-memory slice,
// sized and filled by the test that constructs it.
type fakeStore struct {
	buf    []byte
	cursor int64
}

func newFakeStore(size int64) *fakeStore {
	return &fakeStore{buf: make([]byte, size)}
}

func (f *fakeStore) Size() int64      { return int64(len(f.buf)) }
func (f *fakeStore) IsWritable() bool { return true }

func (f *fakeStore) Seek(pos int64) error {
	f.cursor = pos
	return nil
}

func (f *fakeStore) Read(p []byte) (int, error) {
	n := copy(p, f.buf[f.cursor:])
	f.cursor += int64(n)
	return n, nil
}

func (f *fakeStore) Write(p []byte) (int, error) {
	n := copy(f.buf[f.cursor:], p)
	f.cursor += int64(n)
	return n, nil
}

func (f *fakeStore) ContiguousRange() (uint32, uint32, bool) { return 0, 0, false }

func singleTrackDisc(size int64) *Disc {
	sheet := cue.Sheet{Tracks: []cue.Track{{
		Number:        1,
		Mode:          cue.Mode1_2048,
		SectorLength:  2048,
		TrackStartLBA: 0,
		DataStartLBA:  0,
		FileOffset:    0,
	}}}
	store := newFakeStore(size)
	return NewDisc(sheet, store, 512)
}

// TestTOCSimpleMatchesScenario3 reproduces §8 scenario 3: READ TOC
// format 0, MSF, a single-track 10MiB data image, CDB
// 43 02 00 00 00 00 00 00 14 00.
func TestTOCSimpleMatchesScenario3(t *testing.T) {
	d := singleTrackDisc(10 * 1024 * 1024)

	data, err := d.TOCSimple(true, 0, 0x14)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 20 {
		t.Fatalf("got %d bytes, want 20", len(data))
	}

	want := []byte{0x00, 0x12, 0x01, 0x01, 0x00, 0x14, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x14, 0xAA, 0x00, 0x00}
	if !bytes.Equal(data[:17], want) {
		t.Fatalf("got % X, want % X...", data, want)
	}

	// leadout LBA, reproducing the hardcoded-block-size quirk: 10MiB / 512.
	wantLBA := int(10 * 1024 * 1024 / 512)
	gotM, gotS, gotF := int(data[17]), int(data[18]), int(data[19])
	if got := cue.MSFToLBA(gotM, gotS, gotF); got != wantLBA {
		t.Fatalf("leadout MSF %d:%d:%d -> LBA %d, want %d", gotM, gotS, gotF, got, wantLBA)
	}
}

func TestLeadOutLBAUsesTrackSectorLength(t *testing.T) {
	d := singleTrackDisc(10 * 1024 * 1024)

	// accurate path: 10MiB / 2048 (the track's real sector length), NOT /512.
	want := int(10 * 1024 * 1024 / 2048)
	if got := d.LeadOutLBA(); got != want {
		t.Fatalf("LeadOutLBA() = %d, want %d", got, want)
	}
}

func TestSynthesizeSectorFraming(t *testing.T) {
	userData := bytes.Repeat([]byte{0xAB}, 2048)
	frame := SynthesizeSector(userData, 0)

	if len(frame) != 2352 {
		t.Fatalf("frame length = %d, want 2352", len(frame))
	}
	wantSync := append([]byte{0x00}, bytes.Repeat([]byte{0xFF}, 10)...)
	wantSync = append(wantSync, 0x00)
	if !bytes.Equal(frame[0:12], wantSync) {
		t.Fatalf("sync pattern = % X", frame[0:12])
	}
	if frame[15] != modeByteMode1 {
		t.Fatalf("mode byte = %#x, want 0x01", frame[15])
	}
	if !bytes.Equal(frame[16:16+2048], userData) {
		t.Fatal("user data region mismatch")
	}
	for _, b := range frame[16+2048:] {
		if b != 0 {
			t.Fatal("ECC region should be zero-filled")
		}
	}
}

// rawTrackDisc builds a single MODE1/2352 track whose backing image
// already stores complete 2352-byte raw frames, the way a real .bin
// ripped in raw mode does.
func rawTrackDisc(sectors int) *Disc {
	sheet := cue.Sheet{Tracks: []cue.Track{{
		Number:        1,
		Mode:          cue.Mode1_2352,
		SectorLength:  2352,
		TrackStartLBA: 0,
		DataStartLBA:  0,
		FileOffset:    0,
	}}}
	store := newFakeStore(int64(sectors) * 2352)
	return NewDisc(sheet, store, 512)
}

// TestReadSectorPassesThroughRawMode1_2352 locks in ReadSector's
// MODE1/2352 path: the on-disc frame's sync/header, user data, and
// ECC region must come back byte-for-byte, not have a second
// synthetic sync/header/ECC wrapped around a mis-sliced 2048 bytes of
// it.
func TestReadSectorPassesThroughRawMode1_2352(t *testing.T) {
	d := rawTrackDisc(2)

	frame1 := SynthesizeSector(bytes.Repeat([]byte{0xAB}, 2048), 0)
	frame1[16+2048] = 0xCD // mark the ECC region so a passthrough is distinguishable
	frame2 := SynthesizeSector(bytes.Repeat([]byte{0xEF}, 2048), 1)

	store := d.Store.(*fakeStore)
	copy(store.buf[0:2352], frame1)
	copy(store.buf[2352:2*2352], frame2)

	got, err := d.ReadSector(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, frame1) {
		t.Fatalf("ReadSector(0) = % X, want the raw frame unchanged", got)
	}

	got, err = d.ReadSector(1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, frame2) {
		t.Fatalf("ReadSector(1) = % X, want the raw frame unchanged", got)
	}
}

func TestReadCDRejectsModeMismatch(t *testing.T) {
	d := singleTrackDisc(2048 * 4)
	if _, err := d.ReadCD(0, 1, true /* wantAudio */, false); err == nil {
		t.Fatal("expected an illegal-mode-for-track error requesting audio from a data track")
	}
	if _, err := d.ReadCD(0, 1, false, false); err != nil {
		t.Fatalf("data read from data track should succeed: %v", err)
	}
}

func TestQSubchannelFields(t *testing.T) {
	track := cue.Track{Number: 1, Mode: cue.Mode1_2048, DataStartLBA: 0, TrackStartLBA: 0}
	q := QSubchannel(track, 100)

	if q[0] != 0x14 {
		t.Fatalf("control/ADR = %#x, want 0x14 for a data track", q[0])
	}
	if q[1] != 1 {
		t.Fatalf("track number = %d, want 1", q[1])
	}
	if q[2] != 1 {
		t.Fatalf("index = %d, want 1 (past pregap)", q[2])
	}
	if q[15] != 0 {
		t.Fatal("P-subchannel byte must be zero")
	}
}

func TestMSFRoundTripViaLeadOut(t *testing.T) {
	d := singleTrackDisc(2048 * 1000)
	lba := d.LeadOutLBA()
	m, s, f := cue.LBAToMSF(lba)
	if got := cue.MSFToLBA(m, s, f); got != lba {
		t.Fatalf("round trip through leadout LBA %d failed: got %d", lba, got)
	}
}
