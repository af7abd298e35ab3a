package cdrom

import "encoding/binary"

// ReadCD synthesizes count raw 2352-byte sectors starting at lba,
// optionally appending the 16-byte Q-subchannel after each sector
// (§4.6 READ CD / READ CD MSF). wantAudio selects which track mode
// the request expects; a mismatch against the actual track returns
// the illegal-mode-for-track sense condition via CheckTrackMode.
func (d *Disc) ReadCD(lba, count int, wantAudio bool, includeSubchannel bool) ([]byte, error) {
	var out []byte
	for i := 0; i < count; i++ {
		cur := lba + i
		if err := d.CheckTrackMode(cur, wantAudio); err != nil {
			return nil, err
		}

		sector, err := d.ReadSector(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, sector...)

		if includeSubchannel {
			t := d.TrackAt(cur)
			out = append(out, QSubchannel(t, cur)...)
		}
	}
	return out, nil
}

// GetConfiguration answers GET CONFIGURATION with the minimal feature
// set a read-only CD-ROM target needs to report: current profile
// 0x0008 (CD-ROM), grounded on doGetConfiguration's "rt=0 all
// features" path reduced to what a non-writer emulator supports.
func GetConfiguration() []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint16(data[6:8], 0x0008) // current profile: CD-ROM
	return data
}

// MechanismStatus answers MECHANISM STATUS for a single-slot drive
// with no changer, grounded on doMechanismStatus.
func MechanismStatus() []byte {
	data := make([]byte, 8)
	data[7] = 0 // zero slots beyond the implicit current one
	return data
}
