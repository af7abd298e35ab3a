package media

// ButtonDebouncer samples an 8-bit eject-button bitmask (one bit per
// target id) on the bus-idle polling loop and latches 1→0 edges — a
// button released — into a pending set, executed only once the
// current command completes (§4.7, §5 "suspension points").
type ButtonDebouncer struct {
	prevMask byte
	pending  byte
}

// Sample records the current button state, adding any newly-released
// button (bit transitioned 1→0 since the last Sample) to the pending set.
func (d *ButtonDebouncer) Sample(mask byte) {
	released := d.prevMask &^ mask
	d.pending |= released
	d.prevMask = mask
}

// TakePending returns and clears the accumulated pending-release bits.
func (d *ButtonDebouncer) TakePending() byte {
	p := d.pending
	d.pending = 0
	return p
}

// Manager ties a ButtonDebouncer to up to 8 targets addressed by SCSI
// id, applying debounced ejects only between commands so an eject
// mid-transfer cannot corrupt an in-flight read/write (§5).
type Manager struct {
	Targets  [8]*Target
	debounce ButtonDebouncer
}

// SampleButtons feeds one poll of the eject-button bitmask into the debouncer.
func (m *Manager) SampleButtons(mask byte) {
	m.debounce.Sample(mask)
}

// ApplyPendingEjects ejects every target whose button was released
// since the last call, to be invoked once per completed command.
// Ejecting one target never touches another's UnitAttention or
// pendingEvent state (§8 "eject isolation").
func (m *Manager) ApplyPendingEjects() {
	pending := m.debounce.TakePending()
	for id := 0; id < 8; id++ {
		if pending&(1<<uint(id)) == 0 {
			continue
		}
		if t := m.Targets[id]; t != nil && t.IsCDROM {
			t.Eject()
		}
	}
}
