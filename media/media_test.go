package media

import (
	"bytes"
	"testing"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/sense"
)

func TestSwitchNextImageWrapsToFirst(t *testing.T) {
	tr := NewTarget(true, []string{"c.bin", "a.bin", "b.bin"})
	if tr.CurrentImage() != "a.bin" {
		t.Fatalf("initial image = %q, want lexically-first a.bin", tr.CurrentImage())
	}

	tr.SwitchNextImage()
	if tr.CurrentImage() != "b.bin" {
		t.Fatalf("after one switch = %q, want b.bin", tr.CurrentImage())
	}
	tr.SwitchNextImage()
	if tr.CurrentImage() != "c.bin" {
		t.Fatalf("after two switches = %q, want c.bin", tr.CurrentImage())
	}
	tr.SwitchNextImage()
	if tr.CurrentImage() != "a.bin" {
		t.Fatalf("after wrap = %q, want a.bin", tr.CurrentImage())
	}
}

// TestEjectThenEventSequence reproduces §8 scenario 5: START STOP
// UNIT eject, then two GET EVENT STATUS NOTIFICATION polls.
func TestEjectThenEventSequence(t *testing.T) {
	tr := NewTarget(true, []string{"disc1.bin", "disc2.bin"})

	tr.Eject()
	if !tr.Ejected() {
		t.Fatal("expected ejected=true after Eject()")
	}

	first, err := tr.EventStatusNotification(true)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x06, 0x04, 0x04, 0x03, 0x01, 0x00, 0x00}
	if !bytes.Equal(first, want) {
		t.Fatalf("first poll = % X, want % X", first, want)
	}

	second, err := tr.EventStatusNotification(true)
	if err != nil {
		t.Fatal(err)
	}
	wantNone := []byte{0x00, 0x02, 0x00, 0x04}
	if !bytes.Equal(second, wantNone) {
		t.Fatalf("second poll = % X, want % X", second, wantNone)
	}

	if tr.CurrentImage() != "disc2.bin" {
		t.Fatalf("eject should have switched to the next image, got %q", tr.CurrentImage())
	}
}

func TestEventStatusNotificationRequiresImmed(t *testing.T) {
	tr := NewTarget(true, nil)
	if _, err := tr.EventStatusNotification(false); err == nil {
		t.Fatal("expected an error for non-immediate event notification")
	}
}

func TestCloseTraySetsUnitAttention(t *testing.T) {
	tr := NewTarget(true, []string{"only.bin"})
	tr.Eject()
	tr.CloseTray()

	if tr.UnitAttention != sense.NotReadyToReadyTransition() {
		t.Fatalf("UnitAttention = %v, want NotReadyToReadyTransition", tr.UnitAttention)
	}
}

func TestReinsertAfterEjectAutoClosesOnNextPoll(t *testing.T) {
	tr := NewTarget(true, []string{"only.bin"})
	tr.ReinsertAfterEject = true
	tr.Eject()

	if _, err := tr.EventStatusNotification(true); err != nil {
		t.Fatal(err)
	}
	if tr.Ejected() {
		t.Fatal("ReinsertAfterEject should have auto-closed the tray after the first poll")
	}
}

// TestEjectIsolation is §8's "eject isolation" invariant: ejecting one
// target must not alter another's state.
func TestEjectIsolation(t *testing.T) {
	var m Manager
	m.Targets[0] = NewTarget(true, []string{"a.bin"})
	m.Targets[1] = NewTarget(true, []string{"b.bin"})

	m.SampleButtons(0b00000011)
	m.SampleButtons(0b00000010) // button 0 released, button 1 still held
	m.ApplyPendingEjects()

	if !m.Targets[0].Ejected() {
		t.Fatal("target 0's button was released, expected it ejected")
	}
	if m.Targets[1].Ejected() {
		t.Fatal("target 1's button was never released, expected it untouched")
	}
	if !m.Targets[1].UnitAttention.IsNone() {
		t.Fatal("ejecting target 0 must not post unit attention on target 1")
	}
}
