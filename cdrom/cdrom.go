// Package cdrom is the CD Sector Formatter: TOC generation, raw
// 2352-byte sector synthesis with ECC framing, Q-subchannel
// construction, and the handful of read-family MMC commands a CD-ROM
// target answers (§4.6).
//
// It operates on a cue.Sheet describing track layout and an
// image.Store holding the backing sectors (2048 user-data bytes per
// sector, or whole 2352-byte raw frames for a MODE1/2352 track); it
// never touches the SCSI phase sequencer directly, matching the
// command package's split between formatting a response and driving
// the bus (§4.8).
package cdrom

import (
	"fmt"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cue"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/image"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"
)

// modeByteMode1 is the header mode byte SynthesizeSector writes and
// ReadHeader reports for a data track (Mode 1).
const modeByteMode1 = 0x01

// Disc pairs a parsed cue.Sheet with the image.Store backing it.
// BlockSize is the store's own, un-cue-derived notion of block size —
// kept distinct from a track's Mode.SectorLength() because the legacy
// no-cue-sheet TOC path (TOCSimple, below) reports capacity in terms
// of this raw block size rather than the track's real sector length,
// reproducing doReadTOCSimple's quirk (§9 Design Notes).
type Disc struct {
	Sheet     cue.Sheet
	Store     image.Store
	BlockSize int64
}

// NewDisc builds a Disc over sheet/store with the given raw block size.
func NewDisc(sheet cue.Sheet, store image.Store, blockSize int64) *Disc {
	return &Disc{Sheet: sheet, Store: store, BlockSize: blockSize}
}

// TrackAt returns the track containing lba, mirroring getTrackFromLBA:
// the last track whose TrackStartLBA is <= lba. Falls back to a
// synthetic Mode1/2048 track 1 if the sheet has none (should not
// happen — cue.Parse always falls back to one itself).
func (d *Disc) TrackAt(lba int) cue.Track {
	var result cue.Track
	found := false
	for _, t := range d.Sheet.Tracks {
		if t.TrackStartLBA <= lba {
			result = t
			found = true
		} else {
			break
		}
	}
	if !found {
		return cue.Track{Number: 1, Mode: cue.Mode1_2048, SectorLength: 2048}
	}
	return result
}

func (d *Disc) lastTrack() cue.Track {
	return d.Sheet.Tracks[len(d.Sheet.Tracks)-1]
}

// LeadOutLBA is the accurate lead-out position, grounded on
// getLeadOutLBA: the last track's data_start plus however many whole
// sectors of its own length remain in the image past its file_offset.
// Used by every TOC path except TOCSimple.
func (d *Disc) LeadOutLBA() int {
	last := d.lastTrack()
	remaining := d.Store.Size() - last.FileOffset
	if remaining < 0 || last.SectorLength == 0 {
		return last.DataStartLBA
	}
	blocks := remaining / int64(last.SectorLength)
	return last.DataStartLBA + int(blocks)
}

// CheckTrackMode returns sense.IllegalModeForTrack if a request for an
// audio sector lands on a data track or vice versa (§4.6).
func (d *Disc) CheckTrackMode(lba int, wantAudio bool) error {
	t := d.TrackAt(lba)
	isAudio := t.Mode == cue.Audio
	if isAudio != wantAudio {
		return senseError{sense.IllegalModeForTrack()}
	}
	return nil
}

// senseError wraps a sense.Condition as an error so callers that only
// care about "did this fail" can still use errors.As to recover the
// condition to latch.
type senseError struct {
	Condition sense.Condition
}

func (e senseError) Error() string { return e.Condition.String() }

// AsCondition extracts the sense.Condition from err if it was produced
// by this package, otherwise reports ok=false.
func AsCondition(err error) (sense.Condition, bool) {
	se, ok := err.(senseError)
	return se.Condition, ok
}

// ReadSector returns one 2352-byte raw CD frame for lba (§4.6). A
// MODE1/2048 track stores only the 2048 user-data bytes per sector, so
// this synthesizes the sync pattern, BCD MSF + mode header, and
// zero-filled ECC around what it reads. A MODE1/2352 track's image
// already stores the complete raw frame — sync/header, user data, and
// a real ECC region — at that offset, so it is read and passed through
// untouched rather than re-synthesized around what would otherwise be
// a wrong 2048-byte slice of it (16 bytes of sync/header plus only
// 2032 real user bytes).
func (d *Disc) ReadSector(lba int) ([]byte, error) {
	t := d.TrackAt(lba)
	if t.Mode == cue.Audio {
		return nil, senseError{sense.IllegalModeForTrack()}
	}

	offset := t.FileOffset + int64(lba-t.DataStartLBA)*int64(t.SectorLength)
	if err := d.Store.Seek(offset); err != nil {
		return nil, fmt.Errorf("cdrom: seek to lba %d: %w", lba, err)
	}

	if t.SectorLength == 2352 {
		frame := make([]byte, 2352)
		if _, err := d.Store.Read(frame); err != nil {
			return nil, fmt.Errorf("cdrom: read lba %d: %w", lba, err)
		}
		return frame, nil
	}

	userData := make([]byte, 2048)
	if _, err := d.Store.Read(userData); err != nil {
		return nil, fmt.Errorf("cdrom: read lba %d: %w", lba, err)
	}

	return SynthesizeSector(userData, lba), nil
}

// SynthesizeSector builds a 2352-byte raw frame around 2048 bytes of
// user data at the given absolute lba (§4.6 step 1-4).
func SynthesizeSector(userData []byte, lba int) []byte {
	frame := make([]byte, 2352)

	// 12-byte sync: 00 FF*10 00
	frame[0] = 0x00
	for i := 1; i <= 10; i++ {
		frame[i] = 0xFF
	}
	frame[11] = 0x00

	m, s, f := cue.LBAToMSF(lba)
	frame[12] = toBCD(m)
	frame[13] = toBCD(s)
	frame[14] = toBCD(f)
	frame[15] = modeByteMode1

	copy(frame[16:16+2048], userData)
	// frame[16+2048 : 2352] (288 bytes) is the zero-filled ECC region,
	// already zero from make().

	return frame
}

func toBCD(v int) byte {
	return byte(((v / 10) << 4) | (v % 10))
}
