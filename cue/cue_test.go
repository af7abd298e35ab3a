package cue

import "testing"

const singleTrackData = `FILE "image.bin" BINARY
TRACK 01 MODE1/2048
INDEX 01 00:00:00
`

const audioPlusDataCue = `FILE "disc.bin" BINARY
TRACK 01 MODE1/2352
INDEX 01 00:00:00
TRACK 02 AUDIO
INDEX 00 04:00:00
INDEX 01 04:02:00
`

func TestParseSingleDataTrack(t *testing.T) {
	sheet := Parse(singleTrackData, 10*1024*1024)

	if len(sheet.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(sheet.Tracks))
	}
	tr := sheet.Tracks[0]
	if tr.Mode != Mode1_2048 || tr.SectorLength != 2048 {
		t.Fatalf("track mode/length = %v/%d", tr.Mode, tr.SectorLength)
	}
	if tr.DataStartLBA != 0 || tr.FileOffset != 0 {
		t.Fatalf("track 1 should start at LBA 0 offset 0, got %d/%d", tr.DataStartLBA, tr.FileOffset)
	}
}

func TestParseMultiTrackOffsets(t *testing.T) {
	sheet := Parse(audioPlusDataCue, 100*1024*1024)

	if len(sheet.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(sheet.Tracks))
	}

	t1, t2 := sheet.Tracks[0], sheet.Tracks[1]
	if t1.Number != 1 || t2.Number != 2 {
		t.Fatalf("track numbers = %d, %d", t1.Number, t2.Number)
	}
	if t2.Mode != Audio {
		t.Fatalf("track 2 mode = %v, want Audio", t2.Mode)
	}

	// track 2 pregap starts at MSF 04:00:00 -> LBA 18000 (relative);
	// data starts at 04:02:00 -> LBA 18150.
	if t2.TrackStartLBA != 18000 {
		t.Fatalf("track 2 pregap LBA = %d, want 18000", t2.TrackStartLBA)
	}
	if t2.DataStartLBA != 18150 {
		t.Fatalf("track 2 data LBA = %d, want 18150", t2.DataStartLBA)
	}

	// file_offset for track 2 = sectorLength(track1) * (dataStart[1] - trackStart[0])
	want := int64(t1.SectorLength) * int64(t2.DataStartLBA-t1.TrackStartLBA)
	if t2.FileOffset != want {
		t.Fatalf("track 2 file offset = %d, want %d", t2.FileOffset, want)
	}
}

func TestParseInvalidFallsBackToSyntheticTrack(t *testing.T) {
	sheet := Parse("garbage not a cue sheet\nwith no recognized directives at all\n", 2048*100)

	if len(sheet.Tracks) != 1 {
		t.Fatalf("fallback should produce exactly one track, got %d", len(sheet.Tracks))
	}
	tr := sheet.Tracks[0]
	if tr.Number != 1 || tr.Mode != Mode1_2048 || tr.DataStartLBA != 0 {
		t.Fatalf("fallback track = %+v", tr)
	}
}

func TestParseDecreasingTrackNumberFallsBack(t *testing.T) {
	bad := `FILE "x.bin" BINARY
TRACK 02 MODE1/2048
INDEX 01 00:00:00
TRACK 01 MODE1/2048
INDEX 01 00:10:00
`
	sheet := Parse(bad, 1024*1024)
	if len(sheet.Tracks) != 1 || sheet.Tracks[0].Number != 1 {
		t.Fatal("strictly-increasing violation should trigger the synthetic-track fallback")
	}
}

func TestMSFToLBAAppliesLeadInOffset(t *testing.T) {
	// 00:02:00 absolute == LBA 0 (the 150-frame lead-in is exactly one
	// pregap's worth of frames at the very start of the disc).
	if got := MSFToLBA(0, 2, 0); got != 0 {
		t.Fatalf("MSFToLBA(0,2,0) = %d, want 0", got)
	}
}

func TestMSFToLBARelativeHasNoOffset(t *testing.T) {
	if got := MSFToLBARelative(0, 2, 0); got != 150 {
		t.Fatalf("MSFToLBARelative(0,2,0) = %d, want 150", got)
	}
}

func TestMSFRoundTrip(t *testing.T) {
	for lba := 0; lba <= 449849; lba += 997 {
		m, s, f := LBAToMSF(lba)
		if got := MSFToLBA(m, s, f); got != lba {
			t.Fatalf("round trip for LBA %d: MSF %02d:%02d:%02d -> %d", lba, m, s, f, got)
		}
	}
	// endpoints explicitly, not just the stride sample above.
	for _, lba := range []int{0, 449849} {
		m, s, f := LBAToMSF(lba)
		if got := MSFToLBA(m, s, f); got != lba {
			t.Fatalf("round trip for LBA %d: MSF %02d:%02d:%02d -> %d", lba, m, s, f, got)
		}
	}
}
