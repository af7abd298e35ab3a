package command

import (
	"fmt"

	"github.com/BlueSCSI/BlueSCSI-v2-sub004/phy"
	"github.com/BlueSCSI/BlueSCSI-v2-sub004/xfer"
)

// Loop drives one command to completion against a real (or faked)
// SCSI bus: it enters COMMAND phase, reads the opcode byte to learn
// the CDB length, reads the remainder, pulls in any DATA OUT payload
// a write-family opcode needs, calls Execute, and drives DATA IN/
// STATUS/MESSAGE IN back out (§4.8 "On selection..."). targetID is
// the initiator-selected id, already resolved by whatever arbitration
// code called Loop.
func (c *Core) Loop(targetID int, s *phy.State, e *xfer.Engine) error {
	s.SetPhase(phy.PhaseCommand)
	opcode, err := e.ReadBytes(1)
	if err != nil {
		return err
	}

	rest, err := e.ReadBytes(CDBLength(opcode[0]) - 1)
	if err != nil {
		return err
	}
	cdb := append(opcode, rest...)

	var dataOut []byte
	if isWriteOpcode(cdb[0]) {
		t, ok := c.Targets[targetID]
		if !ok {
			return fmt.Errorf("command: no target configured for id %d", targetID)
		}
		s.SetPhase(phy.PhaseDataOut)
		n := writeBlockCount(cdb) * t.BlockSize
		dataOut, err = e.ReadBytes(n)
		if err != nil {
			return err
		}
		if s.ParityErrorLatched() {
			c.SetParityFault()
			s.ClearParityError()
		}
	}

	result, err := c.Execute(targetID, cdb, dataOut)
	if err != nil {
		return err
	}

	if len(result.DataIn) > 0 {
		s.SetPhase(phy.PhaseDataIn)
		if err := e.StartWrite(result.DataIn); err != nil {
			return err
		}
		if err := e.FinishWrite(); err != nil {
			return err
		}
	}

	s.SetPhase(phy.PhaseStatus)
	if err := e.StartWrite([]byte{byte(result.Status)}); err != nil {
		return err
	}
	if err := e.FinishWrite(); err != nil {
		return err
	}

	s.SetPhase(phy.PhaseMessageIn)
	if err := e.StartWrite([]byte{0x00}); err != nil { // COMMAND COMPLETE
		return err
	}
	return e.FinishWrite()
}

func isWriteOpcode(opcode byte) bool {
	switch opcode {
	case 0x0A, 0x2A:
		return true
	default:
		return false
	}
}

// writeBlockCount reads the transfer length out of a write-family CDB
// already known (by isWriteOpcode) to be WRITE(6) or WRITE(10).
func writeBlockCount(cdb []byte) int {
	if len(cdb) == 6 {
		blocks := int(cdb[4])
		if blocks == 0 {
			blocks = 256
		}
		return blocks
	}
	blocks := int(cdb[7])<<8 | int(cdb[8])
	return blocks
}
