package command

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"
)

// withScratch stages size bytes through c's shared DMA arena: fill
// works on the reserved landing buffer (copying data into or out of it
// itself), and the handle is released once fill returns; fill's error
// is returned unchanged. Using the arena
// rather than a plain make([]byte) keeps every block that crosses the
// backing-store boundary passing through the same DMA-safe memory a
// real PIO/DMA chain would require.
func (c *Core) withScratch(size int, fill func(buf []byte) error) error {
	h, buf := c.Scratch.Reserve(size, 0)
	defer c.Scratch.Release(h)
	return fill(buf)
}

// scratchHalf is one half of the double-buffered 16KiB scratch area
// (§4.8): one half is handed to the SD card while the other is on the
// wire, so the PIO/DMA pipeline never stalls waiting on a card.
const scratchHalf = 8 * 1024

// read answers READ(6)/READ(10)/READ(12): it fills DataIn with
// blocks sectors of t.BlockSize bytes starting at lba, checking the
// prefetch cache first and falling back to the store for whatever the
// cache couldn't serve (§4.9), then refills the cache with this read's
// own sectors; nothing past the end of the read is fetched ahead.
func (c *Core) read(t *Target, lba, blocks int) Result {
	if !t.ready() {
		return fail(t, t.notReadyCondition())
	}
	if blocks <= 0 {
		return ok200(t)
	}
	if lba < 0 || int64(lba+blocks)*int64(t.BlockSize) > t.Store.Size() {
		return fail(t, sense.LBAOutOfRange())
	}

	out := make([]byte, blocks*t.BlockSize)
	served, lbaRemain, countRemain := c.Prefetch.Take(t.ID, uint32(lba), uint32(blocks))
	copy(out, served)

	if countRemain > 0 {
		offset := int64(lbaRemain-uint32(lba)) * int64(t.BlockSize)
		rest := out[offset:]
		if err := c.readStore(t, int(lbaRemain), rest); err != nil {
			c.logger().WithFields(logrus.Fields{"target": t.ID, "lba": lba, "phase": "data-in"}).
				WithError(err).Error("read from backing store failed")
			return fail(t, sense.UnrecoveredReadError())
		}
	}

	c.Prefetch.Fill(t.ID, uint32(lba), t.BlockSize, out)

	return Result{Status: sense.StatusGood, Sense: sense.NoSense(), DataIn: out}
}

// readStore performs the split double-buffered read: two halves of
// the scratch window are filled concurrently via errgroup, mirroring
// the teacher's paired-buffer DMA pump used for both halves of a
// transfer in flight at once.
func (c *Core) readStore(t *Target, lba int, dst []byte) error {
	if len(dst) <= scratchHalf {
		return c.readRange(t, lba, dst)
	}

	mid := len(dst) / 2
	midSectors := mid / t.BlockSize
	var g errgroup.Group
	g.Go(func() error { return c.readRange(t, lba, dst[:mid]) })
	g.Go(func() error { return c.readRange(t, lba+midSectors, dst[mid:]) })
	return g.Wait()
}

func (c *Core) readRange(t *Target, lba int, dst []byte) error {
	if err := t.Store.Seek(int64(lba) * int64(t.BlockSize)); err != nil {
		return err
	}
	return c.withScratch(len(dst), func(buf []byte) error {
		_, err := t.Store.Read(buf)
		copy(dst, buf)
		return err
	})
}

// write answers WRITE(6)/WRITE(10): it commits dataOut to the store
// at lba, unless a parity fault was latched during the DATA OUT phase
// just collected, in which case nothing is written and the command
// fails with ABORTED COMMAND/SCSI PARITY ERROR (§8 scenario 4 — "the
// offending sector must not be written").
func (c *Core) write(t *Target, lba, blocks int, dataOut []byte) Result {
	if c.parityFault {
		c.parityFault = false
		c.logger().WithFields(logrus.Fields{"target": t.ID, "lba": lba, "phase": "data-out"}).
			Warn("write aborted: parity error latched during transfer")
		return fail(t, sense.ParityError())
	}
	if !t.ready() {
		return fail(t, t.notReadyCondition())
	}
	if !t.Store.IsWritable() {
		return fail(t, sense.WriteFault())
	}
	if blocks <= 0 {
		return ok200(t)
	}
	if lba < 0 || int64(lba+blocks)*int64(t.BlockSize) > t.Store.Size() {
		return fail(t, sense.LBAOutOfRange())
	}
	want := blocks * t.BlockSize
	if len(dataOut) < want {
		return fail(t, sense.InvalidCDBField())
	}

	if err := c.writeStore(t, lba, dataOut[:want]); err != nil {
		c.logger().WithFields(logrus.Fields{"target": t.ID, "lba": lba, "phase": "data-out"}).
			WithError(err).Error("write to backing store failed")
		return fail(t, sense.WriteFault())
	}

	c.Prefetch.Invalidate()
	return ok200(t)
}

func (c *Core) writeStore(t *Target, lba int, src []byte) error {
	if len(src) <= scratchHalf {
		return c.writeRange(t, lba, src)
	}

	mid := len(src) / 2
	midSectors := mid / t.BlockSize
	var g errgroup.Group
	g.Go(func() error { return c.writeRange(t, lba, src[:mid]) })
	g.Go(func() error { return c.writeRange(t, lba+midSectors, src[mid:]) })
	return g.Wait()
}

func (c *Core) writeRange(t *Target, lba int, src []byte) error {
	if err := t.Store.Seek(int64(lba) * int64(t.BlockSize)); err != nil {
		return err
	}
	return c.withScratch(len(src), func(buf []byte) error {
		copy(buf, src)
		_, err := t.Store.Write(buf)
		return err
	})
}

// ready reports whether t can currently service a READ/WRITE: a
// CD-ROM target with its tray open has no medium present.
func (t *Target) ready() bool {
	return !t.isCDROM() || !t.Media.Ejected()
}

func (t *Target) notReadyCondition() sense.Condition {
	return sense.MediumNotPresent()
}

// readCapacity answers READ CAPACITY(10): the last addressable LBA
// and block size, drawn from the CD-ROM Disc when present, otherwise
// from the store's own size and BlockSize.
func (c *Core) readCapacity(t *Target) Result {
	var lastLBA, blockSize uint32
	if t.isCDROM() {
		lastLBA, blockSize = t.Disc.ReadCapacity()
	} else {
		blockSize = uint32(t.BlockSize)
		total := t.Store.Size() / int64(t.BlockSize)
		if total > 0 {
			lastLBA = uint32(total - 1)
		}
	}

	data := make([]byte, 8)
	be32put(data[0:4], lastLBA)
	be32put(data[4:8], blockSize)

	t.latch(sense.NoSense())
	return Result{Status: sense.StatusGood, Sense: sense.NoSense(), DataIn: data}
}

func be32put(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
