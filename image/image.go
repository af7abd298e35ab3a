// Package image is the Image Store: a uniform read/write interface
// over the three backing kinds a Target's disk image can take — a
// regular file on the SD filesystem, a raw LBA range on the SD card,
// or a read-only region of MCU internal flash (§4.4, §6).
//
// Store is a closed sum type (exactly three implementations) per the
// Design Notes: "Tagged image variants... use a sum type with
// exhaustive matching; the callsites are open/close/size/seek/
// read/write/flush only" — callers never branch on a kind enum.
package image

import (
	"errors"
	"fmt"
	"io"
)

// ErrReadOnly is returned by Write on a Store that IsWritable reports false for.
var ErrReadOnly = errors.New("image: store is read-only")

// ErrOutOfRange is returned when Seek or a Read/Write would cross the
// store's addressable range.
var ErrOutOfRange = errors.New("image: position out of range")

// Store is the uniform contract every backing kind implements.
type Store interface {
	// Size returns the image's total addressable size in bytes.
	Size() int64

	// IsWritable reports whether Write is permitted on this store.
	IsWritable() bool

	// Seek repositions the store's read/write cursor.
	Seek(pos int64) error

	// Read reads len(buf) bytes from the current cursor, advancing it.
	Read(buf []byte) (int, error)

	// Write writes len(buf) bytes at the current cursor, advancing it.
	// Returns ErrReadOnly if IsWritable is false.
	Write(buf []byte) (int, error)

	// ContiguousRange reports the backing SD LBA span for file-backed
	// images whose on-card extent is a single run, letting callers turn
	// SCSI I/O into direct SDIO block I/O and skip filesystem overhead.
	// ok is false for stores with no such notion (Rom, or a fragmented File).
	ContiguousRange() (beginLBA, endLBA uint32, ok bool)
}

// ReadWriteSeekCloser is what a File-backed Store needs from the
// underlying SD filesystem; *os.File satisfies it, and so does any
// FAT library's file handle.
type ReadWriteSeekCloser interface {
	io.ReadWriteSeeker
	io.Closer
}

// File backs a Store with a regular file on the SD filesystem.
type File struct {
	f          ReadWriteSeekCloser
	size       int64
	writable   bool
	contiguous bool
	beginLBA   uint32
	endLBA     uint32
}

// OpenFile wraps f as a File-backed Store. size is the file's size in
// bytes (the caller already has it from a Stat call, so this package
// does not depend on *os.File directly and can be exercised against
// any ReadWriteSeekCloser). If contiguous is true, beginLBA/endLBA
// describe its on-card extent for the SDIO fast path.
func OpenFile(f ReadWriteSeekCloser, size int64, writable bool, contiguous bool, beginLBA, endLBA uint32) *File {
	return &File{f: f, size: size, writable: writable, contiguous: contiguous, beginLBA: beginLBA, endLBA: endLBA}
}

func (i *File) Size() int64      { return i.size }
func (i *File) IsWritable() bool { return i.writable }

func (i *File) Seek(pos int64) error {
	if pos < 0 || pos > i.size {
		return ErrOutOfRange
	}
	_, err := i.f.Seek(pos, io.SeekStart)
	return err
}

func (i *File) Read(buf []byte) (int, error) { return i.f.Read(buf) }

func (i *File) Write(buf []byte) (int, error) {
	if !i.writable {
		return 0, ErrReadOnly
	}
	return i.f.Write(buf)
}

func (i *File) ContiguousRange() (uint32, uint32, bool) {
	if !i.contiguous {
		return 0, 0, false
	}
	return i.beginLBA, i.endLBA, true
}

// Close releases the underlying file handle.
func (i *File) Close() error { return i.f.Close() }

// BlockDevice is the raw SD card access a RawRange needs — direct LBA
// read/write, bypassing the filesystem entirely.
type BlockDevice interface {
	ReadBlocks(lba uint32, out [][]byte) error
	WriteBlocks(lba uint32, in [][]byte) error
}

// RawRange backs a Store with exclusive ownership of a partition on
// the SD card ("RAW:<begin>:<end>", §6).
type RawRange struct {
	dev        BlockDevice
	beginLBA   uint32
	endLBA     uint32
	blockSize  int
	cursor     int64
	writable   bool
}

// OpenRawRange constructs a RawRange store over [beginLBA, endLBA).
func OpenRawRange(dev BlockDevice, beginLBA, endLBA uint32, blockSize int, writable bool) *RawRange {
	return &RawRange{dev: dev, beginLBA: beginLBA, endLBA: endLBA, blockSize: blockSize, writable: writable}
}

func (r *RawRange) Size() int64 {
	return int64(r.endLBA-r.beginLBA) * int64(r.blockSize)
}

func (r *RawRange) IsWritable() bool { return r.writable }

func (r *RawRange) Seek(pos int64) error {
	if pos < 0 || pos > r.Size() {
		return ErrOutOfRange
	}
	r.cursor = pos
	return nil
}

func (r *RawRange) Read(buf []byte) (int, error) {
	return r.transfer(buf, false)
}

func (r *RawRange) Write(buf []byte) (int, error) {
	if !r.writable {
		return 0, ErrReadOnly
	}
	return r.transfer(buf, true)
}

// transfer moves len(buf) bytes, which must be a multiple of
// blockSize starting on a block boundary — the only access pattern
// the command core's double-buffered read/write path produces.
func (r *RawRange) transfer(buf []byte, write bool) (int, error) {
	if len(buf)%r.blockSize != 0 || r.cursor%int64(r.blockSize) != 0 {
		return 0, fmt.Errorf("image: raw range access must be block-aligned (size=%d cursor=%d blockSize=%d)", len(buf), r.cursor, r.blockSize)
	}

	nblocks := len(buf) / r.blockSize
	lba := r.beginLBA + uint32(r.cursor/int64(r.blockSize))

	if uint64(lba)+uint64(nblocks) > uint64(r.endLBA) {
		return 0, ErrOutOfRange
	}

	bufs := make([][]byte, nblocks)
	for i := range bufs {
		bufs[i] = buf[i*r.blockSize : (i+1)*r.blockSize]
	}

	var err error
	if write {
		err = r.dev.WriteBlocks(lba, bufs)
	} else {
		err = r.dev.ReadBlocks(lba, bufs)
	}
	if err != nil {
		return 0, err
	}

	r.cursor += int64(len(buf))
	return len(buf), nil
}

func (r *RawRange) ContiguousRange() (uint32, uint32, bool) {
	return r.beginLBA, r.endLBA, true
}
