package cdrom

import (
	"encoding/binary"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cue"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sdio"
)

// QSubchannel builds the 16-byte Q-subchannel reported alongside a CD
// sector or via READ SUBCHANNEL, per §4.6: control/ADR, track number,
// index number, relative MSF, absolute MSF, a CRC16 (may legitimately
// read back as zero for a synthesized disc), three pad bytes, and the
// always-zero P-subchannel byte.
func QSubchannel(t cue.Track, lba int) []byte {
	q := make([]byte, 16)

	controlADR := byte(0x14)
	if t.Mode == cue.Audio {
		controlADR = 0x10
	}
	q[0] = controlADR
	q[1] = byte(t.Number)

	index := byte(1)
	if lba < t.DataStartLBA {
		index = 0
	}
	q[2] = index

	relM, relS, relF := cue.LBAToMSFRelative(lba - t.TrackStartLBA)
	q[3], q[4], q[5] = byte(relM), byte(relS), byte(relF)
	// q[6] is the Q-subchannel "zero" byte between relative and
	// absolute time, left at its zero value.

	absM, absS, absF := cue.LBAToMSF(lba)
	q[7], q[8], q[9] = byte(absM), byte(absS), byte(absF)

	crc := sdio.CRC16(q[0:10])
	binary.BigEndian.PutUint16(q[10:12], crc)
	// q[12:15] pad, q[15] P-subchannel: both left zero.

	return q
}

// ReadSubchannel answers READ SUBCHANNEL with current-position data
// (parameter list 0x01), the only subchannel format this target
// reports, grounded on doReadSubchannel.
func (d *Disc) ReadSubchannel(lba int) []byte {
	t := d.TrackAt(lba)
	q := QSubchannel(t, lba)

	data := make([]byte, 4+len(q))
	data[1] = 0x00 // audio status: not supported / no audio in progress
	binary.BigEndian.PutUint16(data[2:4], uint16(len(q)))
	copy(data[4:], q)
	return data
}
