// Package xfer is the accelerated transfer engine: the PIO+DMA
// pipeline that drives the REQ/ACK handshake at line rate in both
// asynchronous and synchronous SCSI transfer modes (§4.2).
//
// The channel-chain model (READ_ADDR/WRITE_ADDR/TRANS_COUNT/CTRL_TRIG,
// setTREQ_SEL/setChainTo, busy()/abort()) mirrors the register and
// method naming retrieved from tinygo-org/pio's piolib DMA helper, not
// imported directly — that package's hardware layer requires TinyGo's
// device/rp register definitions, which are not a resolvable
// standalone module outside a TinyGo build — reimplemented here over
// this repo's own internal/reg-backed channel type so the same
// channel-chaining shape can be driven by a software Engine under
// plain go test.
package xfer

import "github.com/BlueSCSI/BlueSCSI-v2-sub004/internal/reg"

// dreq selects which PIO FIFO paces a DMA channel, mirroring piolib's
// _DREQ_PIO0_TX0-style constants, generalized to this firmware's two
// SCSI state machines instead of enumerating every peripheral.
type dreq uint32

const (
	dreqSMData dreq = iota
	dreqSMParity
	dreqPermanent
)

// channel is one DMA channel of a chain. On real hardware Base points
// at the channel's READ_ADDR register and the rest follow at fixed
// offsets, exactly as dmaChannelHW lays them out; CTRL_TRIG plays the
// same role as the teacher's trigger-on-write register.
type channel struct {
	Base uint32 // 0 on a software-only channel used purely for its counters

	readAddr  uint32
	writeAddr uint32
	transCnt  uint32
	chainTo   int
	treqSel   dreq
	enabled   bool
	running   bool
}

const (
	chanReadAddrOff  = 0x00
	chanWriteAddrOff = 0x04
	chanTransCntOff  = 0x08
	chanCtrlTrigOff  = 0x0C
)

func newChannel(base uint32, self int) *channel {
	return &channel{Base: base, chainTo: self}
}

// configure sets the DREQ pacing the channel waits on and the channel
// it chains to on completion, mirroring dmaChannelConfig's setters.
func (c *channel) configure(treq dreq, chainTo int) {
	c.treqSel = treq
	c.chainTo = chainTo
}

// trigger starts (or re-triggers, via CHAIN_TO) a transfer of count
// 32-bit words from read to write.
func (c *channel) trigger(read, write, count uint32) {
	c.readAddr = read
	c.writeAddr = write
	c.transCnt = count
	c.running = count > 0

	if c.Base != 0 {
		reg.Write(c.Base+chanReadAddrOff, read)
		reg.Write(c.Base+chanWriteAddrOff, write)
		reg.Write(c.Base+chanTransCntOff, count)
		reg.Or(c.Base+chanCtrlTrigOff, 1)
	}
}

// busy reports whether the channel still has words left to transfer.
func (c *channel) busy() bool {
	return c.running && c.transCnt > 0
}

// step simulates one DMA beat firing (used by the software Engine path
// exercised in tests; real hardware retires these autonomously).
func (c *channel) step() {
	if c.transCnt > 0 {
		c.transCnt--
	}
	if c.transCnt == 0 {
		c.running = false
	}
}

// abort halts the channel immediately, used when reset_flag fires.
func (c *channel) abort() {
	c.running = false
	c.transCnt = 0

	if c.Base != 0 {
		reg.Write(c.Base+chanCtrlTrigOff, 0)
	}
}
