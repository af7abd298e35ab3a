package command

import (
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cdrom"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"
)

func asSenseCondition(err error) (sense.Condition, bool) { return cdrom.AsCondition(err) }

// readTOC answers READ TOC/PMA/ATIP, dispatching on the format field
// (CDB byte 2, low nibble) to the matching cdrom.Disc method (§4.6).
// Only meaningful for a CD-ROM target — a direct-access target has no
// Disc and this opcode was never reachable for it in practice, but
// Execute still routes here rather than special-casing the opcode
// table, so the "not a CD-ROM" case answers the same way any other
// nonsensical request would.
func (c *Core) readTOC(t *Target, cdb []byte) Result {
	if !t.isCDROM() {
		return fail(t, sense.InvalidCommandOpcode())
	}

	msf := cdb[1]&0x02 != 0
	format := cdb[2] & 0x0F
	track := int(cdb[6])
	allocLen := int(cdb[7])<<8 | int(cdb[8])

	var data []byte
	var err error
	switch format {
	case 0:
		if len(t.Disc.Sheet.Tracks) == 0 {
			data, err = t.Disc.TOCSimple(msf, track, allocLen)
		} else {
			data, err = t.Disc.TOC(msf, track, allocLen)
		}
	case 1:
		data = t.Disc.SessionInfo(msf)
	default:
		return fail(t, sense.InvalidCDBField())
	}

	if err != nil {
		if cond, ok := asSenseCondition(err); ok {
			return fail(t, cond)
		}
		return fail(t, sense.InvalidCDBField())
	}

	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: sense.NoSense(), DataIn: data}
}

// eventStatusNotification answers GET EVENT STATUS NOTIFICATION,
// delegating to the target's media.Target state machine; only a
// CD-ROM target carries one (§4.7).
func (c *Core) eventStatusNotification(t *Target, cdb []byte) Result {
	if !t.isCDROM() {
		return fail(t, sense.InvalidCommandOpcode())
	}

	immed := cdb[1]&1 != 0
	data, err := t.Media.EventStatusNotification(immed)
	if err != nil {
		return fail(t, sense.InvalidCDBField())
	}

	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: sense.NoSense(), DataIn: data}
}

// readCD answers READ CD (§4.6): it decodes the expected sector type
// and sub-channel request out of the CDB and delegates the actual
// frame synthesis to cdrom.Disc.ReadCD.
func (c *Core) readCD(t *Target, cdb []byte) Result {
	if !t.isCDROM() {
		return fail(t, sense.InvalidCommandOpcode())
	}

	sectorType := (cdb[1] >> 2) & 0x07
	wantAudio := sectorType == 1

	lba := int(be32(cdb[2:6]))
	count := int(cdb[6])<<16 | int(cdb[7])<<8 | int(cdb[8])
	includeSubchannel := cdb[10]&0x07 != 0

	if count == 0 {
		return ok200(t)
	}

	data, err := t.Disc.ReadCD(lba, count, wantAudio, includeSubchannel)
	if err != nil {
		if cond, ok := asSenseCondition(err); ok {
			return fail(t, cond)
		}
		return fail(t, sense.UnrecoveredReadError())
	}

	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: sense.NoSense(), DataIn: data}
}
