package phy

import "testing"

func TestOddParityInvariant(t *testing.T) {
	for b := 0; b < 256; b++ {
		wire := WireByte(byte(b))
		data, ok := CheckParity(wire)

		if !ok {
			t.Fatalf("byte %#x: parity check failed on its own wire image", b)
		}
		if data != byte(b) {
			t.Fatalf("byte %#x: round-tripped as %#x", b, data)
		}

		// flipping the parity bit alone must break the check
		flipped := wire ^ (1 << 8)
		if _, ok := CheckParity(flipped); ok {
			t.Fatalf("byte %#x: parity-bit flip was not detected", b)
		}
	}
}

func TestSetPhaseDrivesPhaseWires(t *testing.T) {
	bus := NewFakeBus()
	s := New(bus)

	s.SetPhase(PhaseCommand)

	if s.Phase() != PhaseCommand {
		t.Fatalf("phase = %v, want PhaseCommand", s.Phase())
	}
	if !bus.ReadPin(PinCD) {
		t.Fatal("C/D should be asserted in Command phase")
	}
	if bus.ReadPin(PinIO) {
		t.Fatal("I/O should be deasserted in Command phase")
	}
}

func TestReleaseOutputsReturnsToBusFree(t *testing.T) {
	bus := NewFakeBus()
	s := New(bus)

	s.SetPhase(PhaseStatus)
	s.ReleaseOutputs()

	if s.Phase() != PhaseBusFree {
		t.Fatalf("phase after ReleaseOutputs = %v, want PhaseBusFree", s.Phase())
	}
	for _, p := range []Pin{PinBSY, PinSEL, PinCD, PinIO, PinMSG, PinREQ} {
		if bus.ReadPin(p) {
			t.Fatalf("pin %v still asserted after ReleaseOutputs", p)
		}
	}
}

func TestStickyFlags(t *testing.T) {
	s := New(NewFakeBus())

	if s.ResetPending() || s.AttentionPending() || s.ParityErrorLatched() {
		t.Fatal("flags should start clear")
	}

	s.SetReset()
	s.SetAttention()
	s.SetParityError()

	if !s.ResetPending() || !s.AttentionPending() || !s.ParityErrorLatched() {
		t.Fatal("flags did not latch")
	}

	s.ClearReset()
	s.ClearAttention()
	s.ClearParityError()

	if s.ResetPending() || s.AttentionPending() || s.ParityErrorLatched() {
		t.Fatal("flags did not clear")
	}
}
