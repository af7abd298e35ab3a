package xfer

import (
	"errors"
	"time"
	"unsafe"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/phy"
)

// ErrTimeout is returned by any wait loop in this package whose
// deadline expired; per the Design Notes' centralized watchdog
// strategy, no loop silently continues on a flipped boolean — it
// returns this error instead. Waits beyond maxWait additionally set
// phy.State's reset_flag (§4.2 "Overflow / timeouts").
var ErrTimeout = errors.New("xfer: wait exceeded deadline")

// maxWait is the absolute ceiling any single handshake wait is allowed
// to take before reset_flag is raised (§4.2).
const maxWait = 5 * time.Second

// SpeedClass names one row of the synchronous timing table (§4.2).
type SpeedClass int

const (
	Async SpeedClass = iota
	Fast20
	Fast10
	SCSI5
)

// Timing holds one SpeedClass row. Period stays in 4ns ticks to match
// how the initiator negotiates it over the wire (SDTR message); the
// rest are durations.
type Timing struct {
	PeriodTicks int // exclusive upper bound of this row, in 4ns ticks
	DataSetup   time.Duration
	ReqPulse    time.Duration
	Hold        time.Duration
}

// timingTable reproduces §4.2's table, with the 11.5 ns setup and
// 16.5 ns hold minimums rounded up to whole nanoseconds, the finest
// step a time.Duration holds.
var timingTable = map[SpeedClass]Timing{
	Fast20: {PeriodTicks: 25, DataSetup: 12 * time.Nanosecond, ReqPulse: 15 * time.Nanosecond, Hold: 17 * time.Nanosecond},
	Fast10: {PeriodTicks: 50, DataSetup: 12 * time.Nanosecond, ReqPulse: 30 * time.Nanosecond, Hold: 0},
	SCSI5:  {PeriodTicks: 1 << 30, DataSetup: 25 * time.Nanosecond, ReqPulse: 90 * time.Nanosecond, Hold: 90 * time.Nanosecond},
}

// ClassForPeriod classifies a negotiated sync period (4ns ticks) into
// its timing row.
func ClassForPeriod(periodTicks int) SpeedClass {
	switch {
	case periodTicks < timingTable[Fast20].PeriodTicks:
		return Fast20
	case periodTicks < timingTable[Fast10].PeriodTicks:
		return Fast10
	default:
		return SCSI5
	}
}

// TimingFor returns the timing row for a speed class.
func TimingFor(c SpeedClass) Timing { return timingTable[c] }

// buffer is one slot of the queueing contract. tailAddr is the address
// one past the last byte of the caller-supplied slice this buffer was
// last extended with, used to recognize a later StartWrite call whose
// buffer picks up exactly where this one's source left off (§4.2
// "contiguous with the live buffer").
type buffer struct {
	data     []byte
	offset   int
	tailAddr uintptr
}

func newBuffer(buf []byte) *buffer {
	b := &buffer{data: append([]byte(nil), buf...)}
	b.setTail(buf)
	return b
}

func (b *buffer) setTail(buf []byte) {
	if len(buf) == 0 {
		return
	}
	b.tailAddr = uintptr(unsafe.Pointer(&buf[0])) + uintptr(len(buf))
}

// contiguousWith reports whether buf begins exactly where the slice b
// was last built from ends, i.e. the two are adjacent spans of the same
// backing array.
func (b *buffer) contiguousWith(buf []byte) bool {
	if b == nil || len(buf) == 0 || b.tailAddr == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&buf[0])) == b.tailAddr
}

// merge appends buf's bytes to b and advances its tail address, folding
// a contiguous continuation into the same buffer instead of queueing it
// separately.
func (b *buffer) merge(buf []byte) {
	b.data = append(b.data, buf...)
	b.setTail(buf)
}

func (b *buffer) remaining() int { return len(b.data) - b.offset }
func (b *buffer) done() bool     { return b.remaining() == 0 }

// Engine is the accelerated transfer engine bound to one phy.State. It
// owns the queueing contract (StartWrite/FinishWrite, §4.2) and the
// byte-level REQ/ACK handshake used in async mode; the DMA channel
// pair (dmaB/dmaC) tracks the same word-count accounting a real
// PIO/DMA pipeline would, so tests can assert on transfer progress
// without real silicon.
type Engine struct {
	phy *phy.State

	live   *buffer
	queued *buffer

	dmaB *channel
	dmaC *channel

	speed    SpeedClass
	reqDelay time.Duration
	reqPulse time.Duration
}

// New constructs an Engine bound to s. base, if non-zero, is the MMIO
// base of the first of this engine's DMA channels on real hardware; a
// software-only Engine (as used in tests) passes 0.
func New(s *phy.State, base uint32) *Engine {
	e := &Engine{
		phy:  s,
		dmaB: newChannel(base, 0),
		dmaC: newChannel(baseOrZero(base, 0x40), 1),
	}
	e.dmaB.configure(dreqSMParity, 1)
	e.dmaC.configure(dreqSMData, 0)
	e.SetSpeedClass(Async)
	return e
}

func baseOrZero(base uint32, off uint32) uint32 {
	if base == 0 {
		return 0
	}
	return base + off
}

// SetSpeedClass selects timing row c and stores its data-setup delay
// and REQ pulse width, which pumpOneByte passes to phy.WriteByte. No
// PIO program is generated or uploaded.
func (e *Engine) SetSpeedClass(c SpeedClass) {
	e.speed = c
	t := TimingFor(c)
	e.reqDelay = t.DataSetup
	e.reqPulse = t.ReqPulse
}

// StartWrite enqueues buf for transmission. If buf is contiguous with
// the live buffer — the direct continuation of the same backing
// array — it is merged into the live buffer instead of taking a slot
// of its own. Otherwise, if a buffer is already draining (live) and
// nothing is queued, buf becomes the queued-next buffer. A third call
// while both slots are full blocks, pumping the live buffer to
// completion; the queued buffer then becomes live and buf is queued —
// the "blocks until the live buffer drains" case of §4.2's queueing
// contract.
func (e *Engine) StartWrite(buf []byte) error {
	if e.live != nil && e.live.contiguousWith(buf) {
		e.live.merge(buf)
		return nil
	}

	nb := newBuffer(buf)

	if e.live == nil {
		e.live = nb
		return nil
	}

	if e.queued == nil {
		e.queued = nb
		return nil
	}

	if err := e.drainLive(); err != nil {
		return err
	}
	e.promoteQueued()
	e.queued = nb
	return nil
}

func (e *Engine) promoteQueued() {
	e.live = e.queued
	e.queued = nil
}

// drainLive pumps the live buffer byte-by-byte until empty.
func (e *Engine) drainLive() error {
	deadline := time.Now().Add(maxWait)

	for e.live != nil && !e.live.done() {
		if err := e.pumpOneByte(deadline); err != nil {
			return err
		}
	}
	return nil
}

// pumpOneByte drives a single async-write handshake cycle for the
// next unsent byte of the live buffer via SM-DATA's contract: drive
// data bus, delay req_delay for data-preset time, assert REQ, wait for
// ACK low, release REQ. The looked-up GPIO word and the DMA-B/DMA-C
// address-chase that feeds SM-DATA's TX FIFO on real hardware are
// represented here by one dmaC word stepped per byte.
func (e *Engine) pumpOneByte(deadline time.Time) error {
	if e.live == nil || e.live.done() {
		return nil
	}

	b := e.live.data[e.live.offset]

	e.dmaB.trigger(0, 0, 1)
	e.dmaC.trigger(0, 0, 1)
	e.dmaB.step()
	e.dmaC.step()

	if err := e.phy.WriteByte(b, e.reqDelay, e.reqPulse, deadline); err != nil {
		e.phy.SetReset()
		return ErrTimeout
	}

	e.live.offset++
	return nil
}

// FinishWrite blocks until the live (and any queued) buffer has been
// fully transmitted and the last ACK observed. It must not return
// until the TX path is empty, the state machine has returned to its
// idle label, and SCSI ACK reads deasserted — modeled here as draining
// both buffer slots via the byte handshake.
func (e *Engine) FinishWrite() error {
	if err := e.drainLive(); err != nil {
		return err
	}

	if e.queued != nil {
		e.promoteQueued()
		return e.FinishWrite()
	}

	e.live = nil
	return nil
}

// ReadBytes drives n async-read handshake cycles and returns the
// assembled bytes. A latched parity error is reported via
// e.phy.ParityErrorLatched after the call, not as a return value,
// matching §4.1's "surfaced at the end of the transfer" policy.
func (e *Engine) ReadBytes(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	deadline := time.Now().Add(maxWait)

	for i := 0; i < n; i++ {
		b, err := e.phy.ReadByte(deadline)
		if err != nil {
			e.phy.SetReset()
			return out, ErrTimeout
		}
		out = append(out, b)
	}

	return out, nil
}
