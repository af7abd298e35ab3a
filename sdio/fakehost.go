package sdio

// FakeHost is an in-memory Host used by this package's tests. It
// accepts the init sequence unconditionally and serves ReadBlock/
// WriteBlock from/to an in-memory block store, so higher packages
// (command, image) can exercise SDIO-backed paths without real
// silicon.
type FakeHost struct {
	Blocks map[uint32][]byte

	// CorruptBlockIndex, if >= 0, makes the ReadBlock call with that
	// zero-based index, counted over the host's lifetime, report a CRC
	// failure.
	CorruptBlockIndex int

	readCount int
	busWidth  int
	clockHz   int
	busy      bool

	// WriteResponses, if non-nil, is consumed one entry per WriteBlock
	// call to script the response window a test wants to see.
	WriteResponses [][]byte
	writeCount     int
}

func NewFakeHost() *FakeHost {
	return &FakeHost{Blocks: make(map[uint32][]byte), CorruptBlockIndex: -1}
}

func (f *FakeHost) SendCommand(index byte, arg uint32, resp RespType) ([]byte, error) {
	switch resp {
	case RespR2:
		return make([]byte, 17), nil
	case RespR3:
		return []byte{0x80, 0, 0xFF, 0x80, 0}, nil
	case RespNone:
		return nil, nil
	default:
		return []byte{0, 0, 0, 0, 0}, nil
	}
}

func (f *FakeHost) ReadBlock(buf []byte) (bool, error) {
	idx := f.readCount
	f.readCount++

	src := f.Blocks[uint32(idx)]
	copy(buf, src)

	if idx == f.CorruptBlockIndex {
		return false, nil
	}
	return true, nil
}

func (f *FakeHost) WriteBlock(buf []byte) ([]byte, error) {
	f.Blocks[uint32(f.writeCount)] = append([]byte(nil), buf...)

	var resp []byte
	if f.writeCount < len(f.WriteResponses) {
		resp = f.WriteResponses[f.writeCount]
	} else {
		resp = []byte{0xFF, 0xFF, 0xE0 | writeRespAccepted, 0xFF}
	}
	f.writeCount++

	return resp, nil
}

func (f *FakeHost) CardBusy() bool     { return false }
func (f *FakeHost) SetClock(hz int)    { f.clockHz = hz }
func (f *FakeHost) SetBusWidth(n int)  { f.busWidth = n }
