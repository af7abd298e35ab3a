// Package config defines the struct shape the command core's Target
// and Core wiring is built from (§6 "Configuration file"). It decodes
// TOML with BurntSushi/toml; the physical file read off the SD card
// and the watch-for-changes logic that reacts to it live outside this
// repo's scope (spec.md's explicit Non-goal).
package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// Quirks selects the vendor-compatibility behavior a target presents,
// mirroring command.Quirks's three values without importing the
// command package (config must not depend on the core it configures).
type Quirks string

const (
	QuirksNone   Quirks = ""
	QuirksApple  Quirks = "Apple"
	QuirksX68000 Quirks = "X68000"
)

// Target is one [[Target]] TOML table, mirroring spec.md §6's
// per-target key list.
type Target struct {
	ID   int    `toml:"ID"`
	Type string `toml:"Type"` // "fixed", "removable", "cdrom", "tape", "zip"

	BlockSize int    `toml:"BlockSize"`
	Vendor    string `toml:"Vendor"`
	Product   string `toml:"Product"`
	Version   string `toml:"Version"`
	Serial    string `toml:"Serial"`

	SectorsPerTrack  int `toml:"SectorsPerTrack"`
	HeadsPerCylinder int `toml:"HeadsPerCylinder"`
	PrefetchBytes    int `toml:"PrefetchBytes"`

	ReinsertCDOnInquiry bool `toml:"ReinsertCDOnInquiry"`
	ReinsertAfterEject  bool `toml:"ReinsertAfterEject"`
	EjectButton         int  `toml:"EjectButton"`

	ImgDir            string `toml:"ImgDir"`
	CDAVolume         int    `toml:"CDAVolume"`
	RightAlignStrings bool   `toml:"RightAlignStrings"`
	NameFromImage     bool   `toml:"NameFromImage"`
}

// Global is the top-level [Global] TOML table.
type Global struct {
	MaxSyncSpeed   int    `toml:"MaxSyncSpeed"` // MB/s
	SelectionDelay int    `toml:"SelectionDelay"` // ms
	EnableParity   bool   `toml:"EnableParity"`
	EnableSCSI2    bool   `toml:"EnableSCSI2"`
	Quirks         Quirks `toml:"Quirks"`
}

// File is the whole decoded configuration document: one Global table
// plus however many [[Target]] tables were present.
type File struct {
	Global  Global   `toml:"Global"`
	Targets []Target `toml:"Target"`
}

// Decode reads and parses a TOML config document from r.
func Decode(r io.Reader) (File, error) {
	var f File
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return File{}, fmt.Errorf("config: decode: %w", err)
	}
	return f, nil
}
