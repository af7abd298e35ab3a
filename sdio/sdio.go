// Package sdio implements the 4-bit SD-mode host driver that feeds
// and drains the accelerated transfer engine at line rate (§4.3):
// command/response exchange with CRC7, multi-block data transfer with
// per-line CRC16, and the init sequence that brings a card up from
// power-on to 4-bit transfer mode.
package sdio

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Error is the SDIO driver's error taxonomy (§4.3).
type Error int

const (
	Ok Error = iota
	Busy
	RespTimeout
	RespCrc
	RespCode
	DataTimeout
	DataCrc
	WriteCrc
	WriteFail
)

func (e Error) Error() string {
	switch e {
	case Ok:
		return "ok"
	case Busy:
		return "sdio: card busy"
	case RespTimeout:
		return "sdio: command response timeout"
	case RespCrc:
		return "sdio: command response CRC7 mismatch"
	case RespCode:
		return "sdio: command response error bits set"
	case DataTimeout:
		return "sdio: data phase timeout"
	case DataCrc:
		return "sdio: data block CRC16 mismatch"
	case WriteCrc:
		return "sdio: write response reported CRC error"
	case WriteFail:
		return "sdio: write response reported write failure"
	default:
		return "sdio: unknown error"
	}
}

// Command response timeout and data-phase progress timeout (§4.3).
const (
	respTimeout = 2 * time.Millisecond
	dataTimeout = 1 * time.Second
)

// SD/MMC command indices used by the init sequence and data path.
const (
	cmd0GoIdle           = 0
	cmd2AllSendCID       = 2
	cmd3SendRCA          = 3
	cmd6Switch           = 6
	cmd7SelectCard       = 7
	cmd8SendIfCond       = 8
	cmd9SendCSD          = 9
	cmd11VoltageSwitch   = 11
	cmd12StopTransmission = 12
	cmd16SetBlockLen     = 16
	cmd18ReadMultiple    = 18
	cmd25WriteMultiple   = 25
	acmd6SetBusWidth     = 6
	acmd23SetWrBlkEraseCount = 23
	acmd41SdSendOpCond   = 41
	cmd55AppCmd          = 55
)

const (
	blockStartToken    = 0xFE
	blockWriteToken    = 0xFC
	blockWriteEndToken = 0xFFFFFFFF
)

// write-response 5-bit acceptance tokens (§4.3).
const (
	writeRespAccepted byte = 0b00101
	writeRespCrcError byte = 0b01011
	writeRespWriteFail byte = 0b01101
)

// writeRespScanWindow is the number of trailing bytes scanned for the
// 5-bit write-response token. Preserved verbatim per the Design Notes
// "write-response polling ambiguity" quirk: the source retries up to 8
// bytes because the token's exact byte position is sensitive to clock
// phasing. This is not tightened here.
const writeRespScanWindow = 8

// State is the SDIO driver's state machine (§3 SdioState).
type State int

const (
	Idle State = iota
	Rx
	Tx
	TxWaitIdle
)

// RespType selects which command-response shape Host.SendCommand waits
// for: 48-bit R1/R3 or 136-bit R2 (CID/CSD).
type RespType int

const (
	RespR1 RespType = iota
	RespR3
	RespR2
	RespNone
)

// Host is the PIO-level contract a real SD-mode PIO program, or a test
// fake, implements. It mirrors the teacher's uSDHC transfer()/
// transferBlocks() split: one call per command, one per data block,
// so the driver's state machine and error taxonomy stay hardware
// independent and testable.
type Host interface {
	// SendCommand transmits index|arg with its CRC7 and returns the
	// raw response bytes (5 for R1/R3, 17 for R2) once the card
	// replies, or an error if no response arrived within respTimeout.
	SendCommand(index byte, arg uint32, resp RespType) ([]byte, error)

	// ReadBlock receives one 512-byte data block plus its 8 CRC bytes
	// (two per DAT line) after a start token, within dataTimeout.
	ReadBlock(buf []byte) (crcOK bool, err error)

	// WriteBlock transmits one 512-byte data block plus CRC16s and
	// returns the raw write-response scan window bytes.
	WriteBlock(buf []byte) (respWindow []byte, err error)

	// CardBusy reports whether the card is still asserting busy on D0.
	CardBusy() bool

	// SetClock reprograms the SD clock divisor for the given target
	// rate (25/50/200 MHz classes).
	SetClock(hz int)

	// SetBusWidth switches between 1-bit and 4-bit DAT mode.
	SetBusWidth(bits int)
}

// CardInfo mirrors the fields the driver exposes to the rest of the
// firmware once Detect succeeds, grounded on the teacher's own
// CardInfo shape in soc/nxp/usdhc/usdhc.go.
type CardInfo struct {
	RCA        uint16
	HighSpeed  bool
	UHS        bool
	BlockCount uint32
	BlockSize  int
}

// Driver is the SDIO host driver bound to one Host implementation.
type Driver struct {
	host Host

	state State
	card  CardInfo

	blocksDone        int
	totalBlocks       int
	blocksChecksummed int
	checksumErrors    int

	// lastCRCResidue is the packed per-DAT-line CRC16 breakdown
	// (crc.go's packCRCResidue) of the most recent block ReadBlocks saw
	// fail its checksum, kept for diagnostics.
	lastCRCResidue uint64
}

// LastCRCResidue returns the four per-DAT-line CRC16 values recorded
// for the most recent checksum failure ReadBlocks observed, unpacked
// from the 64-bit residue word.
func (d *Driver) LastCRCResidue() [4]uint16 {
	return unpackCRCResidue(d.lastCRCResidue)
}

// New constructs a Driver bound to host.
func New(host Host) *Driver {
	return &Driver{host: host, state: Idle}
}

// State returns the driver's current state machine value.
func (d *Driver) State() State { return d.state }

// Detect runs the init sequence (§4.3): CMD0 → CMD8 (retry x5) →
// ACMD41 poll (<=1s) → CMD2 → CMD3 → CMD9 → CMD7 → ACMD6 → CMD6
// high-speed switch (at 50 MHz and above), trying 200, 50 and 25 MHz
// in turn. No 1.8V switch (CMD11) is issued and the card is not
// power-cycled between attempts. Every attempt's error is accumulated
// so multierror reports every speed mode tried, not just the last
// failure.
func (d *Driver) Detect() (CardInfo, error) {
	var errs *multierror.Error

	for _, mode := range []int{200_000_000, 50_000_000, 25_000_000} {
		card, err := d.detectAt(mode)
		if err == nil {
			d.card = card
			return card, nil
		}
		errs = multierror.Append(errs, fmt.Errorf("mode %d Hz: %w", mode, err))
	}

	return CardInfo{}, errs.ErrorOrNil()
}

func (d *Driver) detectAt(hz int) (CardInfo, error) {
	if _, err := d.host.SendCommand(cmd0GoIdle, 0, RespNone); err != nil {
		return CardInfo{}, fmt.Errorf("cmd0: %w", err)
	}

	var ifCondOK bool
	for try := 0; try < 5; try++ {
		if _, err := d.host.SendCommand(cmd8SendIfCond, 0x1AA, RespR1); err == nil {
			ifCondOK = true
			break
		}
	}
	if !ifCondOK {
		return CardInfo{}, fmt.Errorf("cmd8: no response after 5 tries")
	}

	deadline := time.Now().Add(1 * time.Second)
	var ocrReady bool
	for time.Now().Before(deadline) {
		if _, err := d.host.SendCommand(cmd55AppCmd, 0, RespR1); err != nil {
			continue
		}
		resp, err := d.host.SendCommand(acmd41SdSendOpCond, 0x40FF8000, RespR3)
		if err != nil {
			continue
		}
		if len(resp) > 0 && resp[0]&0x80 != 0 {
			ocrReady = true
			break
		}
	}
	if !ocrReady {
		return CardInfo{}, fmt.Errorf("acmd41: OCR not ready within 1s")
	}

	cidResp, err := d.host.SendCommand(cmd2AllSendCID, 0, RespR2)
	if err != nil {
		return CardInfo{}, fmt.Errorf("cmd2: %w", err)
	}
	_ = cidResp

	rcaResp, err := d.host.SendCommand(cmd3SendRCA, 0, RespR1)
	if err != nil {
		return CardInfo{}, fmt.Errorf("cmd3: %w", err)
	}
	var rca uint16
	if len(rcaResp) >= 2 {
		rca = uint16(rcaResp[0])<<8 | uint16(rcaResp[1])
	}

	if _, err := d.host.SendCommand(cmd9SendCSD, uint32(rca)<<16, RespR2); err != nil {
		return CardInfo{}, fmt.Errorf("cmd9: %w", err)
	}

	selResp, err := d.host.SendCommand(cmd7SelectCard, uint32(rca)<<16, RespR1)
	if err != nil {
		return CardInfo{}, fmt.Errorf("cmd7: %w", err)
	}
	if err := checkR1(selResp); err != nil {
		return CardInfo{}, fmt.Errorf("cmd7: %w", err)
	}

	if _, err := d.host.SendCommand(cmd55AppCmd, uint32(rca)<<16, RespR1); err != nil {
		return CardInfo{}, fmt.Errorf("acmd6 app prefix: %w", err)
	}
	if _, err := d.host.SendCommand(acmd6SetBusWidth, 0x2, RespR1); err != nil {
		return CardInfo{}, fmt.Errorf("acmd6: %w", err)
	}
	d.host.SetBusWidth(4)

	highSpeed := hz >= 50_000_000
	if highSpeed {
		if _, err := d.host.SendCommand(cmd6Switch, 0x80FFFFF1, RespR1); err != nil {
			return CardInfo{}, fmt.Errorf("cmd6: %w", err)
		}
	}

	d.host.SetClock(hz)
	d.state = Idle

	return CardInfo{RCA: rca, HighSpeed: highSpeed, UHS: hz >= 200_000_000, BlockSize: 512}, nil
}

// ReadBlocks implements §4.3's read block sequence: CMD16 set block
// len, CMD18 multi-block read, one ReadBlock per block (each reporting
// its own checksum result), CMD12 stop. Checksum mismatches are counted
// and the first one sets DataCrc, reported only at the end of the
// transfer so the host sees one failed command, not one per block
// (§7 propagation policy).
func (d *Driver) ReadBlocks(lba uint32, out [][]byte) error {
	if d.state != Idle {
		return Busy
	}
	d.state = Rx
	defer func() { d.state = Idle }()

	blkLenResp, err := d.host.SendCommand(cmd16SetBlockLen, 512, RespR1)
	if err != nil {
		return RespTimeout
	}
	if err := checkR1(blkLenResp); err != nil {
		return err
	}
	readResp, err := d.host.SendCommand(cmd18ReadMultiple, lba, RespR1)
	if err != nil {
		return RespTimeout
	}
	if err := checkR1(readResp); err != nil {
		return err
	}

	d.totalBlocks = len(out)
	d.blocksDone = 0
	d.blocksChecksummed = 0
	d.checksumErrors = 0

	var firstErr error

	for _, buf := range out {
		ok, err := d.host.ReadBlock(buf)
		if err != nil {
			firstErr = DataTimeout
		}
		d.blocksDone++
		d.blocksChecksummed++
		if !ok {
			d.checksumErrors++
			d.lastCRCResidue = packCRCResidue(lineCRC16(buf))
			if firstErr == nil {
				firstErr = DataCrc
			}
		}
	}

	if _, err := d.host.SendCommand(cmd12StopTransmission, 0, RespR1); err != nil && firstErr == nil {
		firstErr = RespTimeout
	}

	return firstErr
}

// Poll advances checksum verification for finished blocks; in this
// software model ReadBlocks already verifies synchronously, so Poll
// simply reports whether all queued blocks have been checksummed —
// kept as a distinct call so callers written against the async
// contract (DMA in flight, checksums trailing) do not need to change
// when a future Host implementation overlaps the two for real.
func (d *Driver) Poll() (done bool, err Error) {
	if d.blocksChecksummed < d.totalBlocks {
		return false, Ok
	}
	if d.checksumErrors > 0 {
		return true, DataCrc
	}
	return true, Ok
}

// WriteBlocks implements §4.3's write block sequence: CMD16, ACMD23
// pre-erase hint, CMD25 multi-block write, one WriteBlock per block
// with the 8-byte write-response scan-window quirk preserved verbatim,
// next block started only after the previous block's response token
// is classified (CRCs still overlap with I/O inside WriteBlock on real
// hardware; this driver just sequences the calls).
func (d *Driver) WriteBlocks(lba uint32, in [][]byte) error {
	if d.state != Idle {
		return Busy
	}
	d.state = Tx
	defer func() { d.state = Idle }()

	blkLenResp, err := d.host.SendCommand(cmd16SetBlockLen, 512, RespR1)
	if err != nil {
		return RespTimeout
	}
	if err := checkR1(blkLenResp); err != nil {
		return err
	}
	if _, err := d.host.SendCommand(cmd55AppCmd, 0, RespR1); err != nil {
		return RespTimeout
	}
	if _, err := d.host.SendCommand(acmd23SetWrBlkEraseCount, uint32(len(in)), RespR1); err != nil {
		return RespTimeout
	}
	writeResp, err := d.host.SendCommand(cmd25WriteMultiple, lba, RespR1)
	if err != nil {
		return RespTimeout
	}
	if err := checkR1(writeResp); err != nil {
		return err
	}

	for _, buf := range in {
		window, err := d.host.WriteBlock(buf)
		if err != nil {
			return DataTimeout
		}

		token, found := scanWriteResponse(window)
		if !found {
			return WriteFail
		}

		switch token {
		case writeRespCrcError:
			return WriteCrc
		case writeRespWriteFail:
			return WriteFail
		case writeRespAccepted:
			// continue
		default:
			return RespCode
		}

		d.state = TxWaitIdle
		deadline := time.Now().Add(dataTimeout)
		for d.host.CardBusy() {
			if time.Now().After(deadline) {
				return DataTimeout
			}
		}
		d.state = Tx
	}

	if _, err := d.host.SendCommand(cmd12StopTransmission, 0, RespR1); err != nil {
		return RespTimeout
	}

	return nil
}

// scanWriteResponse scans up to writeRespScanWindow trailing bytes of
// window for the one whose low 5 bits hold the write-response token —
// which byte carries it is sensitive to exact clock phasing, hence the
// scan (§9 "write-response polling ambiguity", preserved verbatim).
func scanWriteResponse(window []byte) (token byte, found bool) {
	n := len(window)
	if n > writeRespScanWindow {
		window = window[n-writeRespScanWindow:]
	}

	for _, b := range window {
		candidate := b & 0x1F
		if candidate == writeRespAccepted || candidate == writeRespCrcError || candidate == writeRespWriteFail {
			return candidate, true
		}
	}

	return 0, false
}
