// Package command is the SCSI Command Core: CDB decoding, opcode
// dispatch, and the double-buffered read/write data path (§4.8). It
// is the one package that ties every other component together —
// image.Store for backing data, cdrom.Disc and media.Target for
// CD-ROM targets, prefetch.Cache for read-ahead, and sense.Condition
// for the error taxonomy it surfaces.
//
// Core.Execute is deliberately phy-agnostic: it takes a CDB and
// whatever DATA OUT bytes already arrived and returns the status,
// sense condition, and DATA IN bytes to send back, so it can be
// exercised directly by tests without a simulated bus. The firmware
// entry point (Loop, in loop.go) is the thin layer that drives a real
// phy.State/xfer.Engine pair through that same Execute call.
package command

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/cdrom"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/dma"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/image"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/media"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/prefetch"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"
)

// Quirks selects the vendor-compatibility behavior a target presents,
// grounded on config.c's S2S_CFG_QUIRKS enum (§6 Quirks config key).
type Quirks int

const (
	QuirksNone Quirks = iota
	QuirksApple
	QuirksX68000
)

// Target is the configuration and live state of one SCSI id (§3).
type Target struct {
	ID        int
	BlockSize int
	Vendor    string
	Product   string
	Version   string
	Serial    string
	Quirks    Quirks

	Store image.Store
	Disc  *cdrom.Disc   // non-nil only for CD-ROM targets
	Media *media.Target // non-nil only for CD-ROM targets

	PrefetchBytes int
	Sense         sense.Condition
}

func (t *Target) isCDROM() bool { return t.Disc != nil }

// latch stores cond as the sticky sense condition the next REQUEST
// SENSE will read back, per §6 "REQUEST SENSE returns the sticky
// triple set by the prior command".
func (t *Target) latch(cond sense.Condition) {
	t.Sense = cond
}

// Core dispatches CDBs across a fixed set of targets, sharing one
// scratch buffer and one CDB trace ring (§5 "shared resources").
type Core struct {
	Targets  map[int]*Target
	Prefetch *prefetch.Cache
	trace    Trace

	// Scratch is the shared DMA-safe landing arena the double-buffered
	// read/write path stages blocks through on their way between the
	// backing store and the caller's buffer (§4.8), rather than letting
	// each transfer allocate its own GC-heap slice.
	Scratch *dma.Region

	// parityFault is set by the phase sequencer (Loop) when
	// phy.State.ParityErrorLatched() came back true for the DATA OUT
	// phase just collected, and consumed by the next write() call —
	// mirroring doWrite's "check the latched parity flag once the
	// whole transfer phase is over" ordering (§7 Protocol).
	parityFault bool

	// Log is where command outcomes worth a human's attention are
	// recorded with field context (target, lba, phase); defaults to
	// logrus's standard logger.
	Log *logrus.Logger
}

// SetParityFault records that the DATA OUT phase just completed saw a
// latched wire parity error; the next WRITE-family command aborts
// before committing any data, per §8 scenario 4.
func (c *Core) SetParityFault() { c.parityFault = true }

// NewCore returns a Core with an empty trace ring and a 64KiB prefetch cache.
func NewCore() *Core {
	return &Core{
		Targets:  make(map[int]*Target),
		Prefetch: prefetch.New(64 * 1024),
		Scratch:  dma.NewRegion(4 * scratchHalf),
		Log:      logrus.StandardLogger(),
	}
}

func (c *Core) logger() *logrus.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

// Trace returns the CDB trace ring, grounded on SCSI2SD's trace.c (§4.12).
func (c *Core) Trace() *Trace { return &c.trace }

// Result is what Execute returns: the final SCSI status, the sense
// condition to latch (sense.NoSense() on success), and any DATA IN
// payload to send to the initiator.
type Result struct {
	Status  sense.Status
	Sense   sense.Condition
	DataIn  []byte
}

// cdbLength returns the CDB byte count implied by opcode's group
// (§4.8): group 0 (0x00-0x1F) is 6 bytes, group 1 (0x20-0x3F) and
// group 2 (0x40-0x5F) are 10, group 5 (0xA0-0xBF) is 12, group 4
// (0x80-0x9F) is 16 — this core dispatches nothing in group 4 today
// but still reports its length correctly so an unsupported command
// is rejected for the right reason (bad opcode, not a length
// mismatch).
func cdbLength(opcode byte) int {
	switch {
	case opcode < 0x20:
		return 6
	case opcode < 0x60:
		return 10
	case opcode >= 0xA0 && opcode < 0xC0:
		return 12
	case opcode >= 0x80 && opcode < 0xA0:
		return 16
	default:
		return 10
	}
}

// CDBLength is the exported form of cdbLength, used by the phase
// sequencer to know how many more bytes to read after the opcode.
func CDBLength(opcode byte) int { return cdbLength(opcode) }

// Execute decodes cdb against target id and runs it to completion,
// consuming dataOut for write-family commands. It records the CDB in
// the trace ring unconditionally, mirroring trace.c's "every command,
// successful or not" policy.
func (c *Core) Execute(targetID int, cdb []byte, dataOut []byte) (Result, error) {
	c.trace.Record(cdb)

	t, ok := c.Targets[targetID]
	if !ok {
		return Result{}, fmt.Errorf("command: no target configured for id %d", targetID)
	}

	if len(cdb) == 0 {
		return fail(t, sense.InvalidCDBField()), nil
	}

	opcode := cdb[0]
	want := cdbLength(opcode)
	if len(cdb) < want {
		return fail(t, sense.InvalidCDBField()), nil
	}
	cdb = cdb[:want]

	// A pending media-change UNIT ATTENTION (set by media.Target.CloseTray,
	// §4.7) must surface on the next command issued against this target.
	// REQUEST SENSE is let through to actually report it; every other
	// opcode is failed outright, matching "cleared by one REQUEST SENSE"
	// (GLOSSARY) rather than being silently overwritten by that command's
	// own success path.
	if t.isCDROM() && !t.Media.UnitAttention.IsNone() {
		cond := t.Media.UnitAttention
		t.Media.UnitAttention = sense.NoSense()
		if opcode != 0x03 {
			return fail(t, cond), nil
		}
		t.latch(cond)
	}

	switch opcode {
	case 0x00: // TEST UNIT READY
		return c.testUnitReady(t), nil
	case 0x03: // REQUEST SENSE
		return c.requestSense(t), nil
	case 0x04: // FORMAT UNIT
		return ok200(t), nil
	case 0x08: // READ(6)
		lba := int(cdb[1]&0x1F)<<16 | int(cdb[2])<<8 | int(cdb[3])
		blocks := int(cdb[4])
		if blocks == 0 {
			blocks = 256
		}
		return c.read(t, lba, blocks), nil
	case 0x0A: // WRITE(6)
		lba := int(cdb[1]&0x1F)<<16 | int(cdb[2])<<8 | int(cdb[3])
		blocks := int(cdb[4])
		if blocks == 0 {
			blocks = 256
		}
		return c.write(t, lba, blocks, dataOut), nil
	case 0x0B: // SEEK(6)
		return ok200(t), nil
	case 0x12: // INQUIRY
		return c.inquiry(t, cdb), nil
	case 0x15: // MODE SELECT(6)
		return ok200(t), nil
	case 0x1A: // MODE SENSE(6)
		return c.modeSense(t, cdb), nil
	case 0x1B: // START STOP UNIT
		return c.startStopUnit(t, cdb), nil
	case 0x25: // READ CAPACITY
		return c.readCapacity(t), nil
	case 0x28: // READ(10)
		lba := be32(cdb[2:6])
		blocks := int(be16(cdb[7:9]))
		return c.read(t, int(lba), blocks), nil
	case 0x2A: // WRITE(10)
		lba := be32(cdb[2:6])
		blocks := int(be16(cdb[7:9]))
		return c.write(t, int(lba), blocks, dataOut), nil
	case 0x2F: // VERIFY
		return ok200(t), nil
	case 0x35: // SYNCHRONIZE CACHE
		return ok200(t), nil
	case 0x43: // READ TOC
		return c.readTOC(t, cdb), nil
	case 0x4A: // GET EVENT STATUS NOTIFICATION
		return c.eventStatusNotification(t, cdb), nil
	case 0xA8: // READ(12)
		lba := be32(cdb[2:6])
		blocks := int(be32(cdb[6:10]))
		return c.read(t, int(lba), blocks), nil
	case 0xBE: // READ CD
		return c.readCD(t, cdb), nil
	default:
		return fail(t, sense.InvalidCommandOpcode()), nil
	}
}

func ok200(t *Target) Result {
	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: sense.NoSense()}
}

func fail(t *Target, cond sense.Condition) Result {
	t.latch(cond)
	return Result{Status: sense.StatusCheckCondition, Sense: cond}
}

func (c *Core) testUnitReady(t *Target) Result {
	if t.isCDROM() && t.Media.Ejected() {
		return fail(t, sense.MediumNotPresent())
	}
	if !t.Sense.IsNone() {
		cond := t.Sense
		return fail(t, cond)
	}
	return ok200(t)
}

func (c *Core) requestSense(t *Target) Result {
	cond := t.Sense
	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: cond, DataIn: cond.Bytes()}
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
