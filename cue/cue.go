// Package cue parses a CD-ROM .cue sheet into an ordered sequence of
// Tracks (§4.5). The parser is deliberately small and line-oriented —
// cue text is bounded to half of the command scratch buffer — and
// falls back to a single synthetic track on anything it cannot make
// sense of, rather than failing a disc open outright.
package cue

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Mode is a track's sector encoding.
type Mode int

const (
	Audio Mode = iota
	Mode1_2048
	Mode1_2352
)

func (m Mode) String() string {
	switch m {
	case Audio:
		return "AUDIO"
	case Mode1_2048:
		return "MODE1/2048"
	case Mode1_2352:
		return "MODE1/2352"
	default:
		return "UNKNOWN"
	}
}

// SectorLength returns the on-disc sector size for m; unknown modes
// default to the 2352-byte raw frame, matching the parser's "still
// surfaced" handling of a mode it doesn't recognize.
func (m Mode) SectorLength() int {
	if m == Mode1_2048 {
		return 2048
	}
	return 2352
}

// Track is one entry of a parsed cue sheet (§3).
type Track struct {
	Number        int
	Mode          Mode
	SectorLength  int
	TrackStartLBA int // pregap start
	DataStartLBA  int // after pregap
	FileOffset    int64
	Warning       string
}

// Sheet is the ordered result of parsing one .cue file, all tracks
// against a single backing .bin (FILE ... BINARY).
type Sheet struct {
	BinFile string
	Tracks  []Track
}

// framesPerSecond is the CD-DA frame rate used by every MSF conversion
// in this package and in the cdrom package (§4.6).
const framesPerSecond = 75

// leadInFrames is the 2-second lead-in offset baked into absolute MSF
// addresses (150 frames at 75fps).
const leadInFrames = 150

// MSFToLBA converts minute:second:frame to an absolute LBA, applying
// the 150-frame lead-in offset (§4.5, §4.6).
func MSFToLBA(m, s, f int) int {
	return (m*60+s)*framesPerSecond + f - leadInFrames
}

// MSFToLBARelative converts without the lead-in offset, used for
// INDEX fields which are relative to the start of their FILE.
func MSFToLBARelative(m, s, f int) int {
	return (m*60+s)*framesPerSecond + f
}

// LBAToMSF is the inverse of MSFToLBA, re-applying the 150-frame
// lead-in offset (§4.6, §8 MSF round trip invariant).
func LBAToMSF(lba int) (m, s, f int) {
	return framesToMSF(lba + leadInFrames)
}

// LBAToMSFRelative is the inverse of MSFToLBARelative.
func LBAToMSFRelative(lba int) (m, s, f int) {
	return framesToMSF(lba)
}

func framesToMSF(frames int) (m, s, f int) {
	f = frames % framesPerSecond
	rest := frames / framesPerSecond
	s = rest % 60
	m = rest / 60
	return m, s, f
}

// Parse parses cue sheet text. On any structural problem it returns a
// single synthetic track covering imageSizeBytes (Mode1/2048, track 1,
// data_start=0) instead of an error, per §4.5's explicit fallback —
// a malformed cue sheet should still present *a* usable disc.
func Parse(text string, imageSizeBytes int64) Sheet {
	sheet, err := parseStrict(text)
	if err != nil || len(sheet.Tracks) == 0 {
		return fallbackSheet(imageSizeBytes)
	}
	return sheet
}

func fallbackSheet(imageSizeBytes int64) Sheet {
	return Sheet{
		Tracks: []Track{{
			Number:        1,
			Mode:          Mode1_2048,
			SectorLength:  2048,
			TrackStartLBA: 0,
			DataStartLBA:  0,
			FileOffset:    0,
		}},
	}
}

func parseStrict(text string) (Sheet, error) {
	var sheet Sheet
	var cur *Track

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := tokenize(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToUpper(fields[0]) {
		case "FILE":
			if len(fields) < 3 {
				return Sheet{}, fmt.Errorf("cue: malformed FILE line %q", line)
			}
			sheet.BinFile = fields[1]

		case "TRACK":
			if cur != nil {
				sheet.Tracks = append(sheet.Tracks, *cur)
			}
			if len(fields) < 3 {
				return Sheet{}, fmt.Errorf("cue: malformed TRACK line %q", line)
			}
			num, err := strconv.Atoi(fields[1])
			if err != nil || num < 1 || num > 99 {
				return Sheet{}, fmt.Errorf("cue: invalid track number %q", fields[1])
			}
			if len(sheet.Tracks) > 0 && num <= sheet.Tracks[len(sheet.Tracks)-1].Number {
				return Sheet{}, fmt.Errorf("cue: track numbers must strictly increase, got %d after %d", num, sheet.Tracks[len(sheet.Tracks)-1].Number)
			}

			mode, warn := parseMode(fields[2])
			cur = &Track{Number: num, Mode: mode, SectorLength: mode.SectorLength(), Warning: warn}

		case "INDEX":
			if cur == nil || len(fields) < 3 {
				return Sheet{}, fmt.Errorf("cue: INDEX outside of a TRACK: %q", line)
			}
			m, s, f, err := parseMSF(fields[2])
			if err != nil {
				return Sheet{}, err
			}

			switch fields[1] {
			case "00":
				cur.TrackStartLBA = MSFToLBARelative(m, s, f)
			case "01":
				cur.DataStartLBA = MSFToLBARelative(m, s, f)
				if cur.TrackStartLBA == 0 {
					cur.TrackStartLBA = cur.DataStartLBA
				}
			}

		case "PREGAP":
			// Pregap duration without an explicit INDEX 00; recorded but
			// not separately modeled — TrackStartLBA already defaults to
			// DataStartLBA when no INDEX 00 appears.

		default:
			// unrecognized directive, ignored
		}
	}

	if cur != nil {
		sheet.Tracks = append(sheet.Tracks, *cur)
	}

	if len(sheet.Tracks) == 0 {
		return Sheet{}, fmt.Errorf("cue: no tracks found")
	}

	// file_offset accumulates as sector_length × (data_start_lba −
	// prev_track_start_lba), starting at 0 for the first track (§4.5):
	// each track's offset is the previous track's offset plus however
	// many bytes of the shared .bin the previous track's data occupied.
	for i := range sheet.Tracks {
		if i == 0 {
			sheet.Tracks[0].FileOffset = 0
			continue
		}
		prev := sheet.Tracks[i-1]
		t := &sheet.Tracks[i]
		t.FileOffset = prev.FileOffset + int64(prev.SectorLength)*int64(t.DataStartLBA-prev.TrackStartLBA)
	}

	// ordering invariant: data_start_lba[i] <= track_start_lba[i+1]
	for i := 0; i+1 < len(sheet.Tracks); i++ {
		if sheet.Tracks[i].DataStartLBA > sheet.Tracks[i+1].TrackStartLBA {
			return Sheet{}, fmt.Errorf("cue: track %d data start overruns track %d start", sheet.Tracks[i].Number, sheet.Tracks[i+1].Number)
		}
	}

	return sheet, nil
}

func parseMode(s string) (Mode, string) {
	switch strings.ToUpper(s) {
	case "AUDIO":
		return Audio, ""
	case "MODE1/2048":
		return Mode1_2048, ""
	case "MODE1/2352":
		return Mode1_2352, ""
	default:
		return Mode1_2352, fmt.Sprintf("unrecognized track mode %q, treating as MODE1/2352", s)
	}
}

func parseMSF(s string) (m, sec, f int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("cue: malformed MSF %q", s)
	}

	vals := make([]int, 3)
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("cue: malformed MSF %q: %w", s, convErr)
		}
		vals[i] = v
	}

	return vals[0], vals[1], vals[2], nil
}

// tokenize splits a cue line into fields, treating a quoted filename
// as a single field (FILE "track01.bin" BINARY).
func tokenize(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}

	return fields
}
