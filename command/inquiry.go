package command

import "github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"

// padField pads s on the right with spaces (or truncates) to exactly n bytes,
// grounded on formatDriveInfoField's left-alignment default.
func padField(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	return out
}

// inquiry answers INQUIRY(6) with the 36-byte standard response,
// grounded on SCSI2SD's inquiry.c StandardResponse layout, with the
// Apple-quirk vendor/product substitution from BlueSCSI_disk.cpp's
// APPLE_DRIVEINFO_FIXED table (§4.12 supplemented feature).
func (c *Core) inquiry(t *Target, cdb []byte) Result {
	evpd := cdb[1] & 1
	pageCode := cdb[2]
	if evpd != 0 || pageCode != 0 {
		return fail(t, sense.InvalidCDBField())
	}

	vendor, product, version := t.Vendor, t.Product, t.Version
	if t.Quirks == QuirksApple && vendor == "" {
		vendor, product = "SEAGATE", "ST32430N"
	}

	data := make([]byte, 36)
	data[0] = 0x00 // direct-access device
	data[1] = 0x00
	data[2] = 0x02 // claims SCSI-2 compliance
	data[3] = 0x02 // response data format
	data[4] = 0x1F // additional length
	copy(data[8:16], padField(vendor, 8))
	copy(data[16:32], padField(product, 16))
	copy(data[32:36], padField(version, 4))

	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: sense.NoSense(), DataIn: data}
}

// modeSense answers MODE SENSE(6) with a minimal 4-byte header
// (no block descriptor) followed by whatever page was asked for,
// covering the page codes named in §6: 0x03 format, 0x04 geometry,
// 0x08 caching, 0x0A control, 0x0D CD-ROM, 0x0E CD-audio, 0x30 Apple
// vendor, and 0x3F (the format, geometry, caching and control pages
// concatenated; the CD-ROM, CD-audio and Apple pages are not included).
func (c *Core) modeSense(t *Target, cdb []byte) Result {
	pageCode := cdb[2] & 0x3F

	var body []byte
	switch pageCode {
	case 0x03:
		body = modePageFormat(t)
	case 0x04:
		body = modePageGeometry(t)
	case 0x08:
		body = modePageCaching()
	case 0x0A:
		body = modePageControl()
	case 0x0D:
		body = modePageCDROM()
	case 0x0E:
		body = modePageCDAudio()
	case 0x30:
		if t.Quirks != QuirksApple {
			return fail(t, sense.InvalidCDBField())
		}
		body = modePageApple()
	case 0x3F:
		body = append(body, modePageFormat(t)...)
		body = append(body, modePageGeometry(t)...)
		body = append(body, modePageCaching()...)
		body = append(body, modePageControl()...)
	default:
		return fail(t, sense.InvalidCDBField())
	}

	header := make([]byte, 4)
	header[0] = byte(3 + len(body)) // mode data length, excluding itself
	data := append(header, body...)

	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: sense.NoSense(), DataIn: data}
}

func modePage(code byte, params ...byte) []byte {
	page := append([]byte{code, byte(len(params))}, params...)
	return page
}

func modePageFormat(t *Target) []byte {
	params := make([]byte, 22)
	be16put(params[10:12], 1) // sectors per track placeholder, always 1
	be16put(params[2:4], uint16(t.BlockSize))
	return modePage(0x03, params...)
}

func modePageGeometry(t *Target) []byte {
	params := make([]byte, 20)
	return modePage(0x04, params...)
}

func modePageCaching() []byte {
	params := make([]byte, 10)
	params[0] = 0x01 // read cache disabled (RCD bit)
	return modePage(0x08, params...)
}

func modePageControl() []byte {
	params := make([]byte, 8)
	params[2] = 0x00 // tagged queuing disabled
	return modePage(0x0A, params...)
}

func modePageCDROM() []byte {
	params := make([]byte, 6)
	return modePage(0x0D, params...)
}

func modePageCDAudio() []byte {
	params := make([]byte, 14) // 4 audio ports
	return modePage(0x0E, params...)
}

func modePageApple() []byte {
	params := make([]byte, 18)
	return modePage(0x30, params...)
}

func be16put(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// startStopUnit answers START STOP UNIT, handling CD-ROM load/eject
// via the bit layout in §6/§8 scenario 5 (`LoEj=1, Start=0`).
func (c *Core) startStopUnit(t *Target, cdb []byte) Result {
	immed := cdb[1]&1 != 0
	_ = immed
	loEj := cdb[4]&0x02 != 0
	start := cdb[4]&0x01 != 0

	if !t.isCDROM() || !loEj {
		return ok200(t)
	}

	if start {
		t.Media.CloseTray()
	} else {
		c.logger().WithField("target", t.ID).Info("CD-ROM tray ejected")
		t.Media.Eject()
		c.Prefetch.Invalidate()
	}
	return ok200(t)
}
