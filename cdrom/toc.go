package cdrom

import (
	"encoding/binary"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cue"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"
)

// simpleTOCTemplate and leadoutTOCTemplate are the hardcoded TOC
// bodies used when no cue sheet is present — ported verbatim from
// SimpleTOC/LeadoutTOC, the no-cue-sheet path of doReadTOCSimple.
var simpleTOCTemplate = []byte{
	0x00, 0x12, 0x01, 0x01,
	0x00, 0x14, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x14, 0xAA, 0x00, 0x00, 0x00, 0x00, 0x00,
}

var leadoutTOCTemplate = []byte{
	0x00, 0x0A, 0x01, 0x01,
	0x00, 0x14, 0xAA, 0x00, 0x00, 0x00, 0x00, 0x00,
}

var sessionTOCTemplate = []byte{
	0x00, 0x0A, 0x01, 0x01,
	0x00, 0x14, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// naiveCapacity reproduces doReadTOCSimple's leadout bug: it reports
// capacity in units of the store's configured block size rather than
// the true first track's sector length, so a CD-ROM image whose
// default BlockSize was left at the generic 512-byte value reports a
// leadout as if every sector were 512 bytes (§9 Design Notes, and the
// Open Question decision recorded in DESIGN.md: reproduced for the
// no-cue-sheet path only — LeadOutLBA, used by every format that does
// have a cue sheet, is accurate).
func (d *Disc) naiveCapacity() int {
	if d.BlockSize == 0 {
		return 0
	}
	return int(d.Store.Size() / d.BlockSize)
}

func truncate(data []byte, allocLen int) []byte {
	if allocLen >= 0 && allocLen < len(data) {
		return data[:allocLen]
	}
	return data
}

// TOCSimple is the no-cue-sheet READ TOC format 0 path (doReadTOCSimple).
func (d *Disc) TOCSimple(msf bool, track int, allocLen int) ([]byte, error) {
	capacity := d.naiveCapacity()

	if track == 0xAA {
		data := append([]byte(nil), leadoutTOCTemplate...)
		writeLeadoutField(data, 8, capacity, msf)
		return truncate(data, allocLen), nil
	}

	if track <= 1 {
		data := append([]byte(nil), simpleTOCTemplate...)
		if msf {
			data[10] = 0x02 // track 1 always starts at LBA 0 == MSF 00:02:00
		}
		writeLeadoutField(data, 16, capacity, msf)
		return truncate(data, allocLen), nil
	}

	return nil, senseError{sense.InvalidCDBField()}
}

func writeLeadoutField(data []byte, at int, lba int, msf bool) {
	if msf {
		data[at] = 0
		m, s, f := cue.LBAToMSF(lba)
		data[at+1], data[at+2], data[at+3] = byte(m), byte(s), byte(f)
	} else {
		binary.BigEndian.PutUint32(data[at:at+4], uint32(lba))
	}
}

// formatTrackInfo renders one 8-byte TOC track descriptor (MMC-4
// "Response Format 0000b: Formatted TOC"), grounded on formatTrackInfo.
func formatTrackInfo(t cue.Track, msf bool) []byte {
	dest := make([]byte, 8)
	controlADR := byte(0x14)
	if t.Mode == cue.Audio {
		controlADR = 0x10
	}
	dest[1] = controlADR
	dest[2] = byte(t.Number)

	if msf {
		m, s, f := cue.LBAToMSF(t.DataStartLBA)
		dest[5], dest[6], dest[7] = byte(m), byte(s), byte(f)
	} else {
		binary.BigEndian.PutUint32(dest[4:8], uint32(t.DataStartLBA))
	}
	return dest
}

// TOC renders the cue-sheet-accurate READ TOC format 0 response
// (doReadTOC's cue-sheet branch): every track descriptor from track
// onward, plus an accurate lead-out descriptor.
func (d *Disc) TOC(msf bool, track int, allocLen int) ([]byte, error) {
	var body []byte
	firstTrack := 0
	var lastTrack cue.Track

	included := 0
	for _, t := range d.Sheet.Tracks {
		if firstTrack == 0 {
			firstTrack = t.Number
		}
		lastTrack = t
		if track <= t.Number {
			body = append(body, formatTrackInfo(t, msf)...)
			included++
		}
	}

	leadout := cue.Track{Number: 0xAA, Mode: lastTrack.Mode, DataStartLBA: d.LeadOutLBA()}
	body = append(body, formatTrackInfo(leadout, msf)...)
	included++

	if track != 0xAA && included < 2 {
		return nil, senseError{sense.InvalidCDBField()}
	}

	header := make([]byte, 4)
	tocLength := 2 + len(body)
	binary.BigEndian.PutUint16(header[0:2], uint16(tocLength))
	header[2] = byte(firstTrack)
	header[3] = byte(lastTrack.Number)

	out := append(header, body...)
	return truncate(out, allocLen), nil
}

// SessionInfo answers READ TOC format 1 (session info): first/last
// session number plus the first track's descriptor, grounded on
// doReadSessionInfoSimple/doReadSessionInfo.
func (d *Disc) SessionInfo(msf bool) []byte {
	data := append([]byte(nil), sessionTOCTemplate...)
	if len(d.Sheet.Tracks) > 0 {
		first := d.Sheet.Tracks[0]
		data[6] = byte(first.Number)
		if msf {
			m, s, f := cue.LBAToMSF(first.DataStartLBA)
			data[8], data[9], data[10] = byte(m), byte(s), byte(f)
		} else {
			binary.BigEndian.PutUint32(data[8:12], uint32(first.DataStartLBA))
		}
	}
	return data
}

// DiscInformation answers READ DISC INFORMATION, grounded on the
// hardcoded DiscInformation template — this target is always a
// finalized, single-session, non-rewritable disc.
func (d *Disc) DiscInformation() []byte {
	data := make([]byte, 34)
	data[1] = 0x20
	data[2] = 0x0E
	data[3] = 1 // first track number
	data[4] = 1 // number of sessions (LSB)
	data[5] = 1 // first track in last session (LSB)
	last := byte(1)
	if len(d.Sheet.Tracks) > 0 {
		last = byte(d.Sheet.Tracks[len(d.Sheet.Tracks)-1].Number)
	}
	data[6] = last
	return data
}

// TrackInformation answers READ TRACK INFORMATION for the track
// containing lba (or numbered track if byTrackNumber), grounded on
// doReadTrackInformationSimple/doReadTrackInformation.
func (d *Disc) TrackInformation(byTrackNumber bool, value int) ([]byte, error) {
	var t cue.Track
	if byTrackNumber {
		found := false
		for _, cand := range d.Sheet.Tracks {
			if cand.Number == value {
				t = cand
				found = true
				break
			}
		}
		if !found {
			return nil, senseError{sense.InvalidCDBField()}
		}
	} else {
		t = d.TrackAt(value)
	}

	data := make([]byte, 28)
	data[1] = 0x1A
	data[2] = byte(t.Number)
	data[3] = 1 // session number
	data[5] = 0x04
	data[6] = 0x8F
	binary.BigEndian.PutUint32(data[8:12], uint32(t.DataStartLBA))
	data[12], data[13], data[14], data[15] = 0xFF, 0xFF, 0xFF, 0xFF // NWA: not writable

	trackSize := 0
	for i, cand := range d.Sheet.Tracks {
		if cand.Number != t.Number {
			continue
		}
		if i+1 < len(d.Sheet.Tracks) {
			trackSize = d.Sheet.Tracks[i+1].TrackStartLBA - cand.DataStartLBA
		} else {
			trackSize = d.LeadOutLBA() - cand.DataStartLBA
		}
	}
	binary.BigEndian.PutUint32(data[24:28], uint32(trackSize))

	return data, nil
}

// ReadHeader answers READ HEADER: the data mode byte plus the track's
// start address, grounded on doReadHeader.
func (d *Disc) ReadHeader(msf bool, lba int) []byte {
	t := d.TrackAt(lba)
	data := make([]byte, 8)
	if t.Mode == cue.Audio {
		data[0] = 0x00
	} else {
		data[0] = modeByteMode1
	}
	if msf {
		m, s, f := cue.LBAToMSF(lba)
		data[4], data[5], data[6] = byte(m), byte(s), byte(f)
	} else {
		binary.BigEndian.PutUint32(data[4:8], uint32(lba))
	}
	return data
}

// ReadCapacity answers READ CAPACITY(10): the last readable LBA and
// the block size, grounded on doReadCapacity.
func (d *Disc) ReadCapacity() (lastLBA uint32, blockSize uint32) {
	leadout := d.LeadOutLBA()
	if leadout <= 0 {
		return 0, uint32(d.lastTrack().SectorLength)
	}
	return uint32(leadout - 1), uint32(d.lastTrack().SectorLength)
}
