package sdio

import "github.com/BlueSCSI/BlueSCSI-v2-sub004/bits"

// CardStatus decodes the 32-bit card status field carried in an R1
// response (SendCommand's resp[1:5], big-endian), grounded on the
// teacher's bits package for named-bit register access — the same
// Get/GetN primitives the teacher uses for MMIO registers, applied
// here to the wire-format status word a card echoes back on every
// R1-bearing command.
type CardStatus struct {
	OutOfRange       bool
	AddressError     bool
	BlockLenError    bool
	EraseParam       bool
	WPViolation      bool
	CardIsLocked     bool
	LockUnlockFailed bool
	ComCrcError      bool
	IllegalCommand   bool
	CardEccFailed    bool
	CCError          bool
	Error            bool
	CSDOverwrite     bool
	WPEraseSkip      bool
	EraseReset       bool
	CurrentState     uint32
	ReadyForData     bool
	AppCmd           bool
}

// decodeCardStatus unpacks an R1 response's 32-bit status word. resp
// must be the raw bytes SendCommand returned for a RespR1 command;
// the status word occupies resp[1:5].
func decodeCardStatus(resp []byte) (CardStatus, bool) {
	if len(resp) < 5 {
		return CardStatus{}, false
	}

	word := uint32(resp[1])<<24 | uint32(resp[2])<<16 | uint32(resp[3])<<8 | uint32(resp[4])

	return CardStatus{
		OutOfRange:       bits.Get(&word, 31),
		AddressError:     bits.Get(&word, 30),
		BlockLenError:    bits.Get(&word, 29),
		EraseParam:       bits.Get(&word, 27),
		WPViolation:      bits.Get(&word, 26),
		CardIsLocked:     bits.Get(&word, 25),
		LockUnlockFailed: bits.Get(&word, 24),
		ComCrcError:      bits.Get(&word, 23),
		IllegalCommand:   bits.Get(&word, 22),
		CardEccFailed:    bits.Get(&word, 21),
		CCError:          bits.Get(&word, 20),
		Error:            bits.Get(&word, 19),
		CSDOverwrite:     bits.Get(&word, 16),
		WPEraseSkip:      bits.Get(&word, 15),
		EraseReset:       bits.Get(&word, 13),
		CurrentState:     bits.GetN(&word, 9, 0xF),
		ReadyForData:     bits.Get(&word, 8),
		AppCmd:           bits.Get(&word, 5),
	}, true
}

// hasErrorBits reports whether any of the status word's error flags
// are set — the set an R1 response must be clean of before the driver
// trusts the command it answered for.
func (s CardStatus) hasErrorBits() bool {
	return s.OutOfRange || s.AddressError || s.BlockLenError || s.EraseParam ||
		s.WPViolation || s.LockUnlockFailed || s.ComCrcError || s.IllegalCommand ||
		s.CardEccFailed || s.CCError || s.Error
}

// checkR1 decodes resp and, if the card reported an error bit, returns
// RespCode; a response too short to carry a status word or with no
// byte carried to check against returns nil (RespNone/RespR2 commands
// never call this).
func checkR1(resp []byte) error {
	status, ok := decodeCardStatus(resp)
	if !ok {
		return nil
	}
	if status.hasErrorBits() {
		return RespCode
	}
	return nil
}
