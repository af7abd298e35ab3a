package phy

import "time"

// FakeBus is an in-memory Bus used by this package's tests and by the
// higher packages (xfer, command) that need to drive a State without
// real PIO/GPIO hardware. Sleep is a no-op so tests run at full speed;
// SetDataBus/ReadDataBus model a wire directly connecting target and
// initiator with no propagation delay.
type FakeBus struct {
	pins map[Pin]bool
	data uint16

	// AutoACK, when true (the default), makes the fake act as an
	// immediately-responding initiator: asserting REQ echoes ACK on the
	// same call, and deasserting REQ echoes ACK low. This lets tests
	// drive WriteByte/ReadByte without a second goroutine. Set false to
	// script ACK by hand via SetACK for timeout/negative-path tests.
	AutoACK bool

	// CorruptNextWrite, when true, flips the parity bit of the next
	// SetDataBus word and clears itself — used to simulate an in-flight
	// bit flip for parity-check tests.
	CorruptNextWrite bool
}

func NewFakeBus() *FakeBus {
	return &FakeBus{pins: make(map[Pin]bool), AutoACK: true}
}

func (f *FakeBus) SetPin(name Pin, active bool) {
	f.pins[name] = active

	if f.AutoACK && name == PinREQ {
		f.pins[PinACK] = active
	}
}

func (f *FakeBus) ReadPin(name Pin) bool { return f.pins[name] }

func (f *FakeBus) SetDataBus(wire uint16) {
	if f.CorruptNextWrite {
		wire ^= 1 << 8
		f.CorruptNextWrite = false
	}
	f.data = wire
}

func (f *FakeBus) ReadDataBus() uint16 { return f.data }
func (f *FakeBus) Sleep(time.Duration) {}

// SetACK is a test helper mirroring what an initiator does in response
// to REQ.
func (f *FakeBus) SetACK(active bool) { f.SetPin(PinACK, active) }
