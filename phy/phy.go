// Package phy drives the SCSI bus at the pin level: phase changes,
// byte-wide data transfer with odd parity, and the reset/attention/
// parity sticky flags an ISR sets; the ACK wait gives up as soon as a
// reset is latched.
//
// Pin access is expressed through the Bus interface (mirroring the
// teacher's soc/nxp/gpio.Pin Out/In/High/Low/Value shape, generalized
// from a single pin to a named one) so tests can drive State against
// an in-memory fake instead of real GPIO/PIO hardware, per the
// testability split the rest of this repo follows for every
// hardware-facing package.
package phy

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrPhaseTimeout is returned by WriteByte/ReadByte when the
// initiator's ACK did not arrive before the caller's deadline, or a
// bus reset was latched while waiting for it.
var ErrPhaseTimeout = errors.New("phy: ack wait exceeded deadline")

// Pin names the SCSI bus wires this package drives or senses. Wide
// (16-bit) variants add DB8-15 and DBP1; this package always treats
// the bus as logical bytes and leaves wide-vs-narrow wiring to Bus.
type Pin int

const (
	PinBSY Pin = iota
	PinSEL
	PinCD
	PinIO
	PinMSG
	PinREQ
	PinACK
	PinATN
	PinRST
	PinDBP // data bus parity bit
)

// Phase is the SCSI bus phase, encoded on MSG/CD/IO (SCSI-2 table 12).
type Phase int

const (
	PhaseBusFree Phase = iota
	PhaseArbitration
	PhaseSelection
	PhaseReselection
	PhaseCommand
	PhaseDataIn
	PhaseDataOut
	PhaseStatus
	PhaseMessageIn
	PhaseMessageOut
)

// busSettle is the minimum delay after a phase change: 400ns data
// release plus 400ns phase settle (§4.1).
const busSettle = 800 * time.Nanosecond

// resetPulseMin is the minimum RST assertion width SCSI-2 requires a
// target to recognize (§6).
const resetPulseMin = 25 * time.Microsecond

// Bus is the pin-level contract a real PIO/GPIO backend, or a test
// fake, implements.
type Bus interface {
	// SetPin drives name to the logical asserted/deasserted level given
	// by active. The wire itself is open-collector active-low; callers
	// always reason in terms of the asserted boolean.
	SetPin(name Pin, active bool)

	// ReadPin returns the logical asserted sense of name.
	ReadPin(name Pin) bool

	// SetDataBus drives the 8 (or 16) data lines plus parity for one
	// transfer cycle; wire value is the inverted-and-parity-tagged word
	// WireByte produces.
	SetDataBus(wire uint16)

	// ReadDataBus samples the data lines plus parity for one transfer cycle.
	ReadDataBus() uint16

	// Sleep blocks the calling goroutine for d, used for bus-settle and
	// release delays; a fake may make this a no-op to keep tests fast.
	Sleep(d time.Duration)
}

// State is the single long-lived Bus-PHY state: current phase, the
// ISR-settable sticky flags, and sync negotiation parameters. There is
// exactly one per firmware instance, constructed once and passed
// explicitly to every subsystem that needs it (Design Note, no
// process-wide singletons).
type State struct {
	bus Bus

	phase    Phase
	syncOff  int
	syncPer  int // 4ns units
	initID   int

	resetFlag    atomic.Bool
	atnFlag      atomic.Bool
	parityError  atomic.Bool
}

// New constructs a State bound to bus.
func New(bus Bus) *State {
	return &State{bus: bus, phase: PhaseBusFree}
}

// Phase returns the current bus phase.
func (s *State) Phase() Phase { return s.phase }

// SetPhase programs the CD/IO/MSG wires for phase and waits one
// bus-settle interval.
func (s *State) SetPhase(phase Phase) {
	msg, cd, io := phaseWires(phase)

	s.bus.SetPin(PinMSG, msg)
	s.bus.SetPin(PinCD, cd)
	s.bus.SetPin(PinIO, io)

	s.phase = phase
	s.bus.Sleep(busSettle)
}

// phaseWires maps a Phase to (MSG, C/D, I/O) asserted levels.
func phaseWires(p Phase) (msg, cd, io bool) {
	switch p {
	case PhaseCommand:
		return false, true, false
	case PhaseDataIn:
		return false, false, true
	case PhaseDataOut:
		return false, false, false
	case PhaseStatus:
		return false, true, true
	case PhaseMessageIn:
		return true, true, true
	case PhaseMessageOut:
		return true, true, false
	default:
		return false, false, false
	}
}

// ReleaseOutputs drives every outbound wire to de-asserted, waits 1ms,
// then (on a real Bus) tri-states them.
func (s *State) ReleaseOutputs() {
	for _, p := range []Pin{PinBSY, PinSEL, PinCD, PinIO, PinMSG, PinREQ} {
		s.bus.SetPin(p, false)
	}
	s.bus.Sleep(1 * time.Millisecond)
	s.phase = PhaseBusFree
}

// EnableDataOut flips the external bus transceiver to drive the data
// lines from the target towards the initiator.
func (s *State) EnableDataOut() {
	s.bus.SetPin(PinIO, true)
}

// ReleaseDataAndReq flips the transceiver back to input and releases REQ.
func (s *State) ReleaseDataAndReq() {
	s.bus.SetPin(PinREQ, false)
	s.bus.SetPin(PinIO, false)
}

// SetReset is called from the RST ISR.
func (s *State) SetReset()          { s.resetFlag.Store(true) }
func (s *State) ClearReset()        { s.resetFlag.Store(false) }
func (s *State) ResetPending() bool { return s.resetFlag.Load() }

// SetAttention is called from the ATN-sense ISR.
func (s *State) SetAttention()   { s.atnFlag.Store(true) }
func (s *State) ClearAttention() { s.atnFlag.Store(false) }
func (s *State) AttentionPending() bool { return s.atnFlag.Load() }

// SetParityError latches a sticky parity failure, surfaced at the end
// of the current transfer.
func (s *State) SetParityError()       { s.parityError.Store(true) }
func (s *State) ClearParityError()     { s.parityError.Store(false) }
func (s *State) ParityErrorLatched() bool { return s.parityError.Load() }

// SetSync records negotiated synchronous transfer parameters.
func (s *State) SetSync(offset, period int) {
	s.syncOff = offset
	s.syncPer = period
}

func (s *State) SyncOffset() int { return s.syncOff }
func (s *State) SyncPeriod() int { return s.syncPer }

func (s *State) SetInitiatorID(id int) { s.initID = id }
func (s *State) InitiatorID() int      { return s.initID }

// WriteByte drives one byte onto the data bus with its odd-parity bit,
// pulses REQ for reqPulse, and blocks (with deadline) for the
// initiator to respond with ACK low before releasing REQ. This is
// SM-DATA's async-write cycle (§4.2): drive data bus, delay req_delay
// for data-preset time, assert REQ, wait for ACK low, release REQ.
func (s *State) WriteByte(data byte, reqDelay, reqPulse time.Duration, deadline time.Time) error {
	s.bus.SetDataBus(WireByte(data))
	s.bus.Sleep(reqDelay)

	s.bus.SetPin(PinREQ, true)
	s.bus.Sleep(reqPulse)

	if !s.waitPin(PinACK, true, deadline) {
		return ErrPhaseTimeout
	}

	s.bus.SetPin(PinREQ, false)
	return nil
}

// ReadByte asserts REQ, waits for the initiator's ACK, samples the
// data bus, and releases REQ. It reports a parity failure by setting
// the sticky parity_error flag rather than returning it, since SCSI
// parity errors are only surfaced at the end of the whole transfer
// (§4.1).
func (s *State) ReadByte(deadline time.Time) (data byte, err error) {
	s.bus.SetPin(PinREQ, true)

	if !s.waitPin(PinACK, true, deadline) {
		return 0, ErrPhaseTimeout
	}

	wire := s.bus.ReadDataBus()
	data, ok := CheckParity(wire)
	if !ok {
		s.SetParityError()
	}

	s.bus.SetPin(PinREQ, false)
	s.waitPin(PinACK, false, deadline)

	return data, nil
}

func (s *State) waitPin(p Pin, want bool, deadline time.Time) bool {
	for s.bus.ReadPin(p) != want {
		if s.ResetPending() || time.Now().After(deadline) {
			return false
		}
	}
	return true
}
