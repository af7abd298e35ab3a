// Package sense carries the SCSI status/sense data surfaced to an
// initiator at the end of a command, and the fixed sense-key/ASC/ASCQ
// presets the command core returns for the error conditions it knows
// about. It is the SCSI-visible counterpart to the plain Go errors
// returned by the hardware-facing packages (dma, internal/reg, sdio):
// those wrap low-level failures with fmt.Errorf, this carries the wire
// triple a host actually reads back via REQUEST SENSE.
package sense

import "fmt"

// Status is the one-byte SCSI status returned in the STATUS phase.
type Status byte

const (
	StatusGood           Status = 0x00
	StatusCheckCondition Status = 0x02
)

// Sense keys (SPC-3 table 27).
const (
	KeyNoSense        byte = 0x0
	KeyNotReady       byte = 0x2
	KeyMediumError    byte = 0x3
	KeyHardwareError  byte = 0x4
	KeyIllegalRequest byte = 0x5
	KeyUnitAttention  byte = 0x6
	KeyAbortedCommand byte = 0xB
)

// Condition is the (key, ASC, ASCQ) triple latched by a failing command
// and returned verbatim by the next REQUEST SENSE; it is cleared to
// NoSense() once read.
type Condition struct {
	Key  byte
	ASC  byte
	ASCQ byte
}

// NoSense reports no outstanding sense data — the REQUEST SENSE idle state.
func NoSense() Condition { return Condition{Key: KeyNoSense} }

func (c Condition) String() string {
	return fmt.Sprintf("KEY=%02x ASC=%02x ASCQ=%02x", c.Key, c.ASC, c.ASCQ)
}

// IsNone reports whether c carries no sense data.
func (c Condition) IsNone() bool {
	return c.Key == KeyNoSense && c.ASC == 0 && c.ASCQ == 0
}

// Bytes renders c as a fixed-format sense buffer (SPC-3 §4.5.3), the
// payload returned for REQUEST SENSE.
func (c Condition) Bytes() []byte {
	buf := make([]byte, 18)
	buf[0] = 0x70 // fixed, current
	buf[2] = c.Key
	buf[7] = 0x0a // additional sense length
	buf[12] = c.ASC
	buf[13] = c.ASCQ
	return buf
}

// Preset constructors mirroring the retrieved go-tcmu SCSICmd preset
// idiom (CheckCondition/MediumError/IllegalRequest), adapted to this
// phase sequencer's own command object instead of a kernel TCMU command.

// ParityError is ABORTED COMMAND / SCSI PARITY ERROR (§7 Protocol).
func ParityError() Condition { return Condition{Key: KeyAbortedCommand, ASC: 0x47, ASCQ: 0x00} }

// InvalidCDBField is ILLEGAL REQUEST / INVALID FIELD IN CDB.
func InvalidCDBField() Condition { return Condition{Key: KeyIllegalRequest, ASC: 0x24, ASCQ: 0x00} }

// LBAOutOfRange is ILLEGAL REQUEST / LOGICAL BLOCK ADDRESS OUT OF RANGE.
func LBAOutOfRange() Condition { return Condition{Key: KeyIllegalRequest, ASC: 0x21, ASCQ: 0x00} }

// UnrecoveredReadError is MEDIUM ERROR / UNRECOVERED READ ERROR.
func UnrecoveredReadError() Condition { return Condition{Key: KeyMediumError, ASC: 0x11, ASCQ: 0x00} }

// WriteFault is MEDIUM ERROR / WRITE FAULT.
func WriteFault() Condition { return Condition{Key: KeyMediumError, ASC: 0x0C, ASCQ: 0x03} }

// MediumNotPresent is NOT READY / MEDIUM NOT PRESENT.
func MediumNotPresent() Condition { return Condition{Key: KeyNotReady, ASC: 0x3A, ASCQ: 0x00} }

// NotReadyToReadyTransition is UNIT ATTENTION / NOT READY TO READY TRANSITION,
// posted on media insertion.
func NotReadyToReadyTransition() Condition {
	return Condition{Key: KeyUnitAttention, ASC: 0x28, ASCQ: 0x00}
}

// IllegalModeForTrack is ILLEGAL REQUEST / ASC=0x64, raised when a CD-ROM
// read asks for an audio sector from a data track or vice versa.
func IllegalModeForTrack() Condition {
	return Condition{Key: KeyIllegalRequest, ASC: 0x64, ASCQ: 0x00}
}

// SequenceError is ILLEGAL REQUEST / COMMAND SEQUENCE ERROR.
func SequenceError() Condition { return Condition{Key: KeyIllegalRequest, ASC: 0x2C, ASCQ: 0x00} }

// InvalidCommandOpcode mirrors go-tcmu's NotHandled() preset for an
// opcode this core does not implement.
func InvalidCommandOpcode() Condition {
	return Condition{Key: KeyIllegalRequest, ASC: 0x20, ASCQ: 0x00}
}
